// Package migration implements the pipeline engine: folder and document
// discovery, typed document search, folder preparation, move execution, the
// post-move property update pass and the orchestrator that sequences the
// phases over durable checkpoints.
package migration

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/dkovacevic/dossier-migrate/internal/observability/metrics"
)

// ErrorTracker is the cross-cutting advisory counter of timeout and
// retry-exhaustion events. It never halts anything itself; phases and the
// orchestrator consult ShouldStopMigration explicitly.
type ErrorTracker struct {
	maxTimeouts       int64
	maxRetryExhausted int64
	maxTotal          int64

	timeouts       atomic.Int64
	retryExhausted atomic.Int64

	warnMu sync.Mutex
	warned map[string]bool

	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewErrorTracker builds a tracker with the configured stop thresholds. A
// threshold of zero or less disables that limit. Metrics may be nil.
func NewErrorTracker(settings *conf.TrackerSettings, m *metrics.PipelineMetrics) *ErrorTracker {
	return &ErrorTracker{
		maxTimeouts:       int64(settings.MaxTimeouts),
		maxRetryExhausted: int64(settings.MaxRetryExhausted),
		maxTotal:          int64(settings.MaxTotal),
		warned:            make(map[string]bool),
		metrics:           m,
		logger:            logging.ForService("error-tracker"),
	}
}

// RecordTimeout counts one operation timeout.
func (t *ErrorTracker) RecordTimeout(operation string, elapsed time.Duration) {
	count := t.timeouts.Add(1)
	t.logger.Warn("operation timed out",
		"operation", operation,
		"elapsed", elapsed,
		"timeouts", count)
	if t.metrics != nil {
		t.metrics.TrackerTimeouts.Set(float64(count))
	}
	t.checkWarning("timeouts", count, t.maxTimeouts)
	t.checkWarning("total", count+t.retryExhausted.Load(), t.maxTotal)
}

// RecordRetryExhausted counts one operation whose retries were used up.
func (t *ErrorTracker) RecordRetryExhausted(operation string, attempts int) {
	count := t.retryExhausted.Add(1)
	t.logger.Warn("operation retries exhausted",
		"operation", operation,
		"attempts", attempts,
		"retry_exhausted", count)
	if t.metrics != nil {
		t.metrics.TrackerRetryExhausted.Set(float64(count))
	}
	t.checkWarning("retry_exhausted", count, t.maxRetryExhausted)
	t.checkWarning("total", t.timeouts.Load()+count, t.maxTotal)
}

// Timeouts returns the timeout event count.
func (t *ErrorTracker) Timeouts() int64 {
	return t.timeouts.Load()
}

// RetryExhausted returns the retry-exhaustion event count.
func (t *ErrorTracker) RetryExhausted() int64 {
	return t.retryExhausted.Load()
}

// ShouldStopMigration reports whether any configured threshold has been
// reached. Advisory only.
func (t *ErrorTracker) ShouldStopMigration() bool {
	timeouts := t.timeouts.Load()
	exhausted := t.retryExhausted.Load()
	switch {
	case t.maxTimeouts > 0 && timeouts >= t.maxTimeouts:
		return true
	case t.maxRetryExhausted > 0 && exhausted >= t.maxRetryExhausted:
		return true
	case t.maxTotal > 0 && timeouts+exhausted >= t.maxTotal:
		return true
	default:
		return false
	}
}

// checkWarning emits a warning exactly once per counter, when the count lands
// exactly on 75% of its threshold. Thresholds not divisible by four can skip
// the warning entirely; the stop check in ShouldStopMigration is unaffected.
func (t *ErrorTracker) checkWarning(name string, count, threshold int64) {
	if threshold <= 0 {
		return
	}
	warnAt := threshold * 3 / 4
	if count != warnAt {
		return
	}
	t.warnMu.Lock()
	already := t.warned[name]
	t.warned[name] = true
	t.warnMu.Unlock()
	if already {
		return
	}
	t.logger.Warn("error tracker approaching stop threshold",
		"counter", name,
		"count", count,
		"threshold", threshold)
}
