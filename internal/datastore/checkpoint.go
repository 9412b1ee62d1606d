// checkpoint.go: durable per-phase progress records for the orchestrator
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// CheckpointStore persists phase checkpoints on its own database connection,
// deliberately isolated from whatever connection the phase services use. A
// phase may hold long-running transactions; checkpoint writes must never block
// behind them or share their transaction context.
type CheckpointStore struct {
	db *gorm.DB
}

// NewCheckpointStore opens an independent connection to the staging database
// for checkpoint bookkeeping.
func NewCheckpointStore(settings *conf.Settings) (*CheckpointStore, error) {
	var db *gorm.DB
	var err error

	switch {
	case settings.Database.SQLite.Enabled:
		dsn := settings.Database.SQLite.Path + "?_journal_mode=WAL&_busy_timeout=5000"
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	case settings.Database.MySQL.Enabled:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			settings.Database.MySQL.Username, settings.Database.MySQL.Password,
			settings.Database.MySQL.Host, settings.Database.MySQL.Port,
			settings.Database.MySQL.Database)
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	default:
		return nil, errors.Newf("no staging database enabled").
			Component("checkpoint-store").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("checkpoint-store").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Build()
	}

	if err := db.AutoMigrate(&PhaseCheckpoint{}); err != nil {
		return nil, errors.New(err).
			Component("checkpoint-store").
			Category(errors.CategoryDatabase).
			Context("operation", "auto-migrate").
			Build()
	}

	return &CheckpointStore{db: db}, nil
}

// Close releases the checkpoint connection.
func (cs *CheckpointStore) Close() error {
	sqlDB, err := cs.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get returns the checkpoint for a phase, creating a NotStarted row on first
// access.
func (cs *CheckpointStore) Get(ctx context.Context, phase Phase) (PhaseCheckpoint, error) {
	var cp PhaseCheckpoint
	err := cs.db.WithContext(ctx).
		Where(PhaseCheckpoint{Phase: phase}).
		Attrs(PhaseCheckpoint{Status: CheckpointNotStarted}).
		FirstOrCreate(&cp).Error
	if err != nil {
		return PhaseCheckpoint{}, cs.wrap(err, "get", phase)
	}
	return cp, nil
}

// All returns the checkpoints for every phase in execution order.
func (cs *CheckpointStore) All(ctx context.Context) ([]PhaseCheckpoint, error) {
	checkpoints := make([]PhaseCheckpoint, 0, len(Phases()))
	for _, phase := range Phases() {
		cp, err := cs.Get(ctx, phase)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}

// MarkInProgress transitions a phase to InProgress with a fresh start time.
func (cs *CheckpointStore) MarkInProgress(ctx context.Context, phase Phase, runID string) error {
	now := time.Now()
	err := cs.update(ctx, phase, map[string]any{
		"status":        CheckpointInProgress,
		"run_id":        runID,
		"started_at":    &now,
		"completed_at":  nil,
		"error_message": "",
	})
	if err != nil {
		return cs.wrap(err, "mark-in-progress", phase)
	}
	return nil
}

// MarkCompleted transitions a phase to Completed.
func (cs *CheckpointStore) MarkCompleted(ctx context.Context, phase Phase) error {
	now := time.Now()
	err := cs.update(ctx, phase, map[string]any{
		"status":       CheckpointCompleted,
		"completed_at": &now,
	})
	if err != nil {
		return cs.wrap(err, "mark-completed", phase)
	}
	return nil
}

// MarkFailed transitions a phase to Failed with a truncated error message.
func (cs *CheckpointStore) MarkFailed(ctx context.Context, phase Phase, message string) error {
	err := cs.update(ctx, phase, map[string]any{
		"status":        CheckpointFailed,
		"error_message": errors.TruncateMessage(message),
	})
	if err != nil {
		return cs.wrap(err, "mark-failed", phase)
	}
	return nil
}

// UpdateProgress records mid-phase progress so an interrupted run can resume
// at LastProcessedIndex within the phase's deterministic work ordering.
func (cs *CheckpointStore) UpdateProgress(ctx context.Context, phase Phase, lastIndex int, lastID string, totalProcessed int) error {
	err := cs.update(ctx, phase, map[string]any{
		"last_processed_index": lastIndex,
		"last_processed_id":    lastID,
		"total_processed":      totalProcessed,
	})
	if err != nil {
		return cs.wrap(err, "update-progress", phase)
	}
	return nil
}

// SetTotalItems records the phase's total work item count once known.
func (cs *CheckpointStore) SetTotalItems(ctx context.Context, phase Phase, total int) error {
	err := cs.update(ctx, phase, map[string]any{"total_items": &total})
	if err != nil {
		return cs.wrap(err, "set-total-items", phase)
	}
	return nil
}

// Reset clears one phase back to NotStarted.
func (cs *CheckpointStore) Reset(ctx context.Context, phase Phase) error {
	err := cs.update(ctx, phase, map[string]any{
		"status":               CheckpointNotStarted,
		"run_id":               "",
		"started_at":           nil,
		"completed_at":         nil,
		"last_processed_index": 0,
		"last_processed_id":    "",
		"total_processed":      0,
		"total_items":          nil,
		"error_message":        "",
	})
	if err != nil {
		return cs.wrap(err, "reset", phase)
	}
	return nil
}

// ResetAll clears every phase back to NotStarted.
func (cs *CheckpointStore) ResetAll(ctx context.Context) error {
	for _, phase := range Phases() {
		if err := cs.Reset(ctx, phase); err != nil {
			return err
		}
	}
	return nil
}

func (cs *CheckpointStore) update(ctx context.Context, phase Phase, fields map[string]any) error {
	// Ensure the row exists before updating it.
	if _, err := cs.Get(ctx, phase); err != nil {
		return err
	}
	return cs.db.WithContext(ctx).Model(&PhaseCheckpoint{}).
		Where("phase = ?", phase).
		Updates(fields).Error
}

func (cs *CheckpointStore) wrap(err error, operation string, phase Phase) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return errors.New(err).
		Component("checkpoint-store").
		Category(errors.CategoryCheckpoint).
		Context("operation", operation).
		Context("phase", phase.String()).
		Build()
}
