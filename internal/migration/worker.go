// worker.go: the orchestrator that sequences the pipeline phases over durable
// checkpoints.
package migration

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/dkovacevic/dossier-migrate/internal/observability/metrics"
)

// Status is the externally visible state of the pipeline.
type Status struct {
	CurrentPhase    string
	Status          string
	ProgressPercent float64
	Elapsed         time.Duration
	ErrorMessage    string
}

// Worker runs the four pipeline phases strictly in order, each gated by its
// checkpoint. A phase that is already Completed is skipped; a phase failure
// is recorded in the checkpoint and halts the pipeline (fail-fast, no
// automatic retry).
//
// Checkpoint bookkeeping goes through the CheckpointStore's own database
// connection, never through whatever connection a phase service holds, so
// long-running phase transactions cannot block checkpoint writes.
type Worker struct {
	ds          datastore.Interface
	checkpoints *datastore.CheckpointStore

	folderDiscovery *FolderDiscovery
	docDiscovery    *DocDiscovery
	preparation     *FolderPreparation
	move            *MoveExecutor

	cleanupIncomplete bool
	metrics           *metrics.PipelineMetrics
	logger            *slog.Logger
}

// NewWorker wires the orchestrator over the phase services. Metrics may be
// nil.
func NewWorker(
	ds datastore.Interface,
	checkpoints *datastore.CheckpointStore,
	folderDiscovery *FolderDiscovery,
	docDiscovery *DocDiscovery,
	preparation *FolderPreparation,
	move *MoveExecutor,
	cleanupIncomplete bool,
	m *metrics.PipelineMetrics,
) *Worker {
	return &Worker{
		ds:                ds,
		checkpoints:       checkpoints,
		folderDiscovery:   folderDiscovery,
		docDiscovery:      docDiscovery,
		preparation:       preparation,
		move:              move,
		cleanupIncomplete: cleanupIncomplete,
		metrics:           m,
		logger:            logging.ForService("migration-worker"),
	}
}

// Run executes every pending phase in order. It returns the first phase
// error; completed phases are never re-executed on a subsequent call.
func (w *Worker) Run(ctx context.Context) error {
	if w.cleanupIncomplete {
		removed, err := w.ds.DeleteIncomplete(ctx)
		if err != nil {
			return errors.New(err).
				Component("migration-worker").
				Category(errors.CategoryDatabase).
				Context("operation", "delete-incomplete").
				Build()
		}
		if removed > 0 {
			w.logger.Info("removed incomplete rows from previous run", "rows", removed)
		}
	}

	runID := uuid.NewString()
	w.logger.Info("pipeline run starting", "run_id", runID)

	for _, phase := range datastore.Phases() {
		cp, err := w.checkpoints.Get(ctx, phase)
		if err != nil {
			return err
		}
		if cp.Status == datastore.CheckpointCompleted {
			w.logger.Info("phase already completed, skipping", "phase", phase.String())
			w.publishPhaseStatus(phase, datastore.CheckpointCompleted)
			continue
		}

		if err := w.runPhase(ctx, phase, runID); err != nil {
			return err
		}
	}

	w.logger.Info("pipeline run finished", "run_id", runID)
	return nil
}

// runPhase marks a phase in progress, invokes it, and records the outcome.
func (w *Worker) runPhase(ctx context.Context, phase datastore.Phase, runID string) error {
	if err := w.checkpoints.MarkInProgress(ctx, phase, runID); err != nil {
		return err
	}
	w.publishPhaseStatus(phase, datastore.CheckpointInProgress)
	w.logger.Info("phase starting", "phase", phase.String(), "run_id", runID)

	start := time.Now()
	err := w.invoke(ctx, phase)
	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.ObservePhaseDuration(phase.String(), elapsed.Seconds())
	}

	if err != nil {
		if markErr := w.checkpoints.MarkFailed(ctx, phase, err.Error()); markErr != nil {
			w.logger.Error("failed to record phase failure", "phase", phase.String(), "error", markErr)
		}
		w.publishPhaseStatus(phase, datastore.CheckpointFailed)
		w.logger.Error("phase failed", "phase", phase.String(), "elapsed", elapsed, "error", err)
		return err
	}

	if err := w.checkpoints.MarkCompleted(ctx, phase); err != nil {
		return err
	}
	w.publishPhaseStatus(phase, datastore.CheckpointCompleted)
	w.logger.Info("phase completed", "phase", phase.String(), "elapsed", elapsed)
	return nil
}

func (w *Worker) invoke(ctx context.Context, phase datastore.Phase) error {
	switch phase {
	case datastore.PhaseFolderDiscovery:
		return w.folderDiscovery.Run(ctx)
	case datastore.PhaseDocumentDiscovery:
		return w.docDiscovery.RunAll(ctx)
	case datastore.PhaseFolderPreparation:
		return w.preparation.Run(ctx)
	case datastore.PhaseMove:
		return w.move.Run(ctx)
	default:
		return errors.Newf("unknown phase %d", phase).
			Component("migration-worker").
			Category(errors.CategoryState).
			Build()
	}
}

// GetStatus derives the overall pipeline state from the checkpoints:
// completed phases each contribute an equal share, plus the in-progress
// phase's fractional progress where its total is known.
func (w *Worker) GetStatus(ctx context.Context) (Status, error) {
	checkpoints, err := w.checkpoints.All(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{CurrentPhase: datastore.PhaseFolderDiscovery.String(), Status: string(datastore.CheckpointNotStarted)}
	share := 100.0 / float64(len(checkpoints))
	var progress float64
	var earliestStart *time.Time

	for i := range checkpoints {
		cp := &checkpoints[i]
		if cp.StartedAt != nil && (earliestStart == nil || cp.StartedAt.Before(*earliestStart)) {
			earliestStart = cp.StartedAt
		}
		switch cp.Status {
		case datastore.CheckpointCompleted:
			progress += share
		case datastore.CheckpointInProgress, datastore.CheckpointFailed:
			status.CurrentPhase = cp.Phase.String()
			status.Status = string(cp.Status)
			status.ErrorMessage = cp.ErrorMessage
			if cp.TotalItems != nil && *cp.TotalItems > 0 {
				fraction := float64(cp.TotalProcessed) / float64(*cp.TotalItems)
				progress += share * min(fraction, 1)
			}
		}
	}

	// All phases done.
	if last := checkpoints[len(checkpoints)-1]; last.Status == datastore.CheckpointCompleted {
		status.CurrentPhase = last.Phase.String()
		status.Status = string(datastore.CheckpointCompleted)
	}

	status.ProgressPercent = progress
	if earliestStart != nil {
		status.Elapsed = time.Since(*earliestStart)
	}
	return status, nil
}

// Reset clears every phase checkpoint back to NotStarted.
func (w *Worker) Reset(ctx context.Context) error {
	w.logger.Info("resetting all phase checkpoints")
	return w.checkpoints.ResetAll(ctx)
}

// ResetPhase clears one phase checkpoint back to NotStarted.
func (w *Worker) ResetPhase(ctx context.Context, phase datastore.Phase) error {
	w.logger.Info("resetting phase checkpoint", "phase", phase.String())
	return w.checkpoints.Reset(ctx, phase)
}

func (w *Worker) publishPhaseStatus(phase datastore.Phase, status datastore.CheckpointStatus) {
	if w.metrics == nil {
		return
	}
	var code float64
	switch status {
	case datastore.CheckpointInProgress:
		code = 1
	case datastore.CheckpointCompleted:
		code = 2
	case datastore.CheckpointFailed:
		code = 3
	}
	w.metrics.SetPhaseStatus(phase.String(), code)
}
