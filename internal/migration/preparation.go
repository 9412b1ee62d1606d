// preparation.go: creates the destination folder hierarchies implied by the
// staged documents, in parallel, resumable via checkpoint.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/dkovacevic/dossier-migrate/internal/observability/metrics"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

// maxLoggedPrepErrors caps how many collected folder errors are logged at the
// end of a preparation run.
const maxLoggedPrepErrors = 10

// FolderPreparation resolves every unique destination folder referenced by
// staged documents. Creation is idempotent through the resolver, so re-running
// after an interruption is always safe.
type FolderPreparation struct {
	ds          datastore.Interface
	resolver    *repository.Resolver
	checkpoints *datastore.CheckpointStore
	parallelism int
	interval    int
	metrics     *metrics.PipelineMetrics
	logger      *slog.Logger
}

// NewFolderPreparation builds the preparation service. Metrics may be nil.
func NewFolderPreparation(ds datastore.Interface, resolver *repository.Resolver, checkpoints *datastore.CheckpointStore, settings *conf.Settings, m *metrics.PipelineMetrics) *FolderPreparation {
	return &FolderPreparation{
		ds:          ds,
		resolver:    resolver,
		checkpoints: checkpoints,
		parallelism: settings.Pipeline.PrepareParallelism,
		interval:    settings.Pipeline.CheckpointInterval,
		metrics:     m,
		logger:      logging.ForService("folder-preparation"),
	}
}

// Run creates every unique destination folder hierarchy. Per-folder errors
// are collected without aborting the run; the first few are logged at the
// end. The checkpoint is advanced periodically so an interrupted run resumes
// by skipping already-completed entries in the same store ordering.
func (p *FolderPreparation) Run(ctx context.Context) error {
	destinations, err := p.ds.UniqueDestinations(ctx)
	if err != nil {
		return errors.New(err).
			Component("folder-preparation").
			Category(errors.CategoryDatabase).
			Context("operation", "unique-destinations").
			Build()
	}

	if err := p.checkpoints.SetTotalItems(ctx, datastore.PhaseFolderPreparation, len(destinations)); err != nil {
		return err
	}

	start := 0
	if cp, err := p.checkpoints.Get(ctx, datastore.PhaseFolderPreparation); err == nil {
		if cp.LastProcessedIndex > 0 && cp.LastProcessedIndex < len(destinations) {
			start = cp.LastProcessedIndex
			p.logger.Info("resuming folder preparation",
				"skip", start, "total", len(destinations))
		}
	}

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, p.parallelism)
		errMu     sync.Mutex
		prepErrs  []error
		progress  = newProgressTracker(start)
	)

	for i := start; i < len(destinations); i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		dest := destinations[i]

		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int, dest datastore.Destination) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := p.resolver.Resolve(ctx, dest.RootID, dest.Path); err != nil {
				errMu.Lock()
				prepErrs = append(prepErrs, fmt.Errorf("folder %s under %s: %w", dest.Path, dest.RootID, err))
				errMu.Unlock()
				if p.metrics != nil {
					p.metrics.FolderErrors.Inc()
				}
				return
			}
			if p.metrics != nil {
				p.metrics.FoldersCreated.Inc()
			}

			frontier, processed := progress.complete(index)
			if processed%p.interval == 0 {
				// Best-effort checkpoint. The recorded index is the highest
				// contiguous completed one, so a resume never skips entries
				// that were still in flight when the checkpoint was written.
				if err := p.checkpoints.UpdateProgress(ctx, datastore.PhaseFolderPreparation, frontier, dest.Path, start+processed); err != nil {
					p.logger.Warn("checkpoint update failed", "error", err)
				}
			}
		}(i, dest)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("folder-preparation").
			Category(errors.CategoryCancellation).
			Build()
	}

	frontier, doneCount := progress.snapshot()
	if err := p.checkpoints.UpdateProgress(ctx, datastore.PhaseFolderPreparation, frontier, "", start+doneCount); err != nil {
		p.logger.Warn("final checkpoint update failed", "error", err)
	}

	if len(prepErrs) > 0 {
		logged := min(len(prepErrs), maxLoggedPrepErrors)
		for _, e := range prepErrs[:logged] {
			p.logger.Error("folder preparation error", "error", e)
		}
		p.logger.Warn("folder preparation completed with errors",
			"failed", len(prepErrs),
			"created", doneCount,
			"logged", logged)
	} else {
		p.logger.Info("folder preparation completed",
			"created", doneCount,
			"skipped", start,
			"total", len(destinations))
	}
	return nil
}

// progressTracker tracks the highest contiguous completed index across the
// parallel preparation goroutines. Checkpoints record only the contiguous
// frontier, since entries with smaller indices may still be in flight when a
// later entry finishes.
type progressTracker struct {
	mu       sync.Mutex
	next     int
	finished map[int]bool
	done     int
}

func newProgressTracker(start int) *progressTracker {
	return &progressTracker{next: start, finished: make(map[int]bool)}
}

// complete marks index as finished and returns the contiguous frontier (the
// next index not yet known to be complete) together with the completed count.
func (t *progressTracker) complete(index int) (frontier, done int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished[index] = true
	t.done++
	for t.finished[t.next] {
		delete(t.finished, t.next)
		t.next++
	}
	return t.next, t.done
}

func (t *progressTracker) snapshot() (frontier, done int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next, t.done
}
