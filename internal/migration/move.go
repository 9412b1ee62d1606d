// move.go: moves staged documents into their prepared destination folders.
package migration

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/dkovacevic/dossier-migrate/internal/observability/metrics"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

// MoveExecutor drains ready documents in batches, resolving each document's
// destination path and performing the move. Each document's outcome is
// independent; a failure never blocks the rest of the batch.
type MoveExecutor struct {
	ds        datastore.Interface
	writer    repository.Writer
	resolver  *repository.Resolver
	batchSize int
	tracker   *ErrorTracker
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// NewMoveExecutor builds the move service. The tracker and metrics arguments
// may be nil.
func NewMoveExecutor(ds datastore.Interface, writer repository.Writer, resolver *repository.Resolver, settings *conf.Settings, tracker *ErrorTracker, m *metrics.PipelineMetrics) *MoveExecutor {
	return &MoveExecutor{
		ds:        ds,
		writer:    writer,
		resolver:  resolver,
		batchSize: settings.Pipeline.DocBatchSize,
		tracker:   tracker,
		metrics:   m,
		logger:    logging.ForService("move-executor"),
	}
}

// Run claims and moves batches until no ready documents remain.
func (m *MoveExecutor) Run(ctx context.Context) error {
	var moved, failed int64
	for {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("move-executor").
				Category(errors.CategoryCancellation).
				Build()
		}
		if m.tracker != nil && m.tracker.ShouldStopMigration() {
			return errors.Newf("error tracker stop threshold reached").
				Component("move-executor").
				Category(errors.CategoryState).
				Context("timeouts", m.tracker.Timeouts()).
				Context("retry_exhausted", m.tracker.RetryExhausted()).
				Build()
		}

		docs, err := m.ds.TakeReadyDocsBatch(ctx, m.batchSize)
		if err != nil {
			return errors.New(err).
				Component("move-executor").
				Category(errors.CategoryDatabase).
				Context("operation", "take-docs").
				Build()
		}
		if len(docs) == 0 {
			break
		}

		for i := range docs {
			if m.moveOne(ctx, &docs[i]) {
				moved++
			} else {
				failed++
			}
		}
	}
	m.logger.Info("move execution finished", "moved", moved, "failed", failed)
	return nil
}

// moveOne performs the move for one claimed document and records its outcome.
func (m *MoveExecutor) moveOne(ctx context.Context, doc *datastore.DocStaging) bool {
	destID := doc.DossierDestFolderID
	if destID == "" {
		resolved, err := m.resolver.Resolve(ctx, doc.DestRootID, doc.ToPath)
		if err != nil {
			m.recordFailure(ctx, doc, "destination resolve failed: "+err.Error())
			return false
		}
		destID = resolved
	}

	start := time.Now()
	ok, err := m.writer.MoveDocument(ctx, doc.NodeID, destID)
	switch {
	case err != nil:
		m.recordFailure(ctx, doc, err.Error())
		if m.tracker != nil && isTimeout(err) {
			m.tracker.RecordTimeout("move-document", time.Since(start))
		}
		return false
	case !ok:
		// Logical rejection by the repository, not an exception.
		m.recordFailure(ctx, doc, "move rejected by repository")
		return false
	}

	if err := m.ds.SetDocStatus(ctx, doc.ID, datastore.DocDone); err != nil {
		m.logger.Error("failed to mark document done", "node_id", doc.NodeID, "error", err)
		return false
	}
	if m.metrics != nil {
		m.metrics.RecordMove(true)
	}
	return true
}

func (m *MoveExecutor) recordFailure(ctx context.Context, doc *datastore.DocStaging, message string) {
	m.logger.Warn("document move failed",
		"node_id", doc.NodeID,
		"to_path", doc.ToPath,
		"error", message)
	if m.metrics != nil {
		m.metrics.RecordMove(false)
	}
	if err := m.ds.FailDoc(ctx, doc.ID, message); err != nil {
		m.logger.Error("failed to record move failure", "node_id", doc.NodeID, "error", err)
	}
}

// isTimeout reports whether an error is a timeout worth counting in the
// advisory tracker.
func isTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) ||
		errors.IsCategory(err, errors.CategoryTimeout)
}

// MoveService is the alternate move variant working from the narrow ready
// projection of node id and already-resolved destination folder id. It keeps
// local advisory success and failure counters.
type MoveService struct {
	ds        datastore.Interface
	writer    repository.Writer
	batchSize int

	// Advisory counters, read between runs. Not synchronized with the store.
	Succeeded int
	Failed    int

	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewMoveService builds the folder-id based move variant. Metrics may be nil.
func NewMoveService(ds datastore.Interface, writer repository.Writer, settings *conf.Settings, m *metrics.PipelineMetrics) *MoveService {
	return &MoveService{
		ds:        ds,
		writer:    writer,
		batchSize: settings.Pipeline.DocBatchSize,
		metrics:   m,
		logger:    logging.ForService("move-service"),
	}
}

// Run drains the ready projection until it is empty.
func (s *MoveService) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, err := s.ds.TakeReadyMoveRefs(ctx, s.batchSize)
		if err != nil {
			return errors.New(err).
				Component("move-service").
				Category(errors.CategoryDatabase).
				Context("operation", "take-move-refs").
				Build()
		}
		if len(refs) == 0 {
			s.logger.Info("move service finished", "succeeded", s.Succeeded, "failed", s.Failed)
			return nil
		}
		for i := range refs {
			s.moveRef(ctx, &refs[i])
		}
	}
}

func (s *MoveService) moveRef(ctx context.Context, ref *datastore.MoveRef) {
	ok, err := s.writer.MoveDocument(ctx, ref.NodeID, ref.DestFolderID)
	if err != nil || !ok {
		message := "move rejected by repository"
		if err != nil {
			message = err.Error()
		}
		s.Failed++
		if s.metrics != nil {
			s.metrics.RecordMove(false)
		}
		if failErr := s.ds.FailDoc(ctx, ref.ID, message); failErr != nil {
			s.logger.Error("failed to record move failure", "node_id", ref.NodeID, "error", failErr)
		}
		return
	}
	if err := s.ds.SetDocStatus(ctx, ref.ID, datastore.DocDone); err != nil {
		s.logger.Error("failed to mark document done", "node_id", ref.NodeID, "error", err)
		s.Failed++
		return
	}
	s.Succeeded++
	if s.metrics != nil {
		s.metrics.RecordMove(true)
	}
}
