// propertyupdate.go: post-move transformation that restores the final
// document type on the newest document of each (core id, type) group.
package migration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/dkovacevic/dossier-migrate/internal/mapping"
	"github.com/dkovacevic/dossier-migrate/internal/observability/metrics"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

// PropertyUpdateService applies the final document type to the most recently
// created document per (CoreId, DocumentType) group. Older documents in a
// group keep their migration-marked type; only the newest one is promoted.
type PropertyUpdateService struct {
	ds          datastore.Interface
	writer      repository.Writer
	table       *mapping.Table
	parallelism int
	metrics     *metrics.PipelineMetrics
	logger      *slog.Logger
}

// NewPropertyUpdateService builds the post-move update service. Metrics may
// be nil.
func NewPropertyUpdateService(ds datastore.Interface, writer repository.Writer, table *mapping.Table, settings *conf.Settings, m *metrics.PipelineMetrics) *PropertyUpdateService {
	parallelism := settings.Pipeline.UpdateParallelism
	if parallelism <= 0 {
		parallelism = 5
	}
	return &PropertyUpdateService{
		ds:          ds,
		writer:      writer,
		table:       table,
		parallelism: parallelism,
		metrics:     m,
		logger:      logging.ForService("property-update"),
	}
}

// Run updates the newest document of every group, a bounded number of
// repository calls at a time. Item failures are logged and skipped; the
// staging row is only written when the repository update succeeded, so both
// type columns always change together.
func (s *PropertyUpdateService) Run(ctx context.Context) error {
	docs, err := s.ds.LatestDocsPerGroup(ctx)
	if err != nil {
		return errors.New(err).
			Component("property-update").
			Category(errors.CategoryDatabase).
			Context("operation", "latest-docs").
			Build()
	}
	if len(docs) == 0 {
		return nil
	}

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, s.parallelism)
	)
	for i := range docs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		semaphore <- struct{}{}
		go func(doc *datastore.DocStaging) {
			defer wg.Done()
			defer func() { <-semaphore }()
			s.updateOne(ctx, doc)
		}(&docs[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("property-update").
			Category(errors.CategoryCancellation).
			Build()
	}
	s.logger.Info("property update pass finished", "groups", len(docs))
	return nil
}

func (s *PropertyUpdateService) updateOne(ctx context.Context, doc *datastore.DocStaging) {
	// The migration-time type carries the migration marker; the final type is
	// the original clean code.
	migrationType := doc.NewDocumentCode
	if migrationType == "" {
		migrationType = s.table.GetMigratedCode(doc.DocumentType)
	}
	finalType := doc.DocumentType

	ok, err := s.writer.UpdateNodeProperties(ctx, doc.NodeID, map[string]any{
		propDocType: finalType,
	})
	if err != nil || !ok {
		s.logger.Warn("property update failed",
			"node_id", doc.NodeID,
			"core_id", doc.CoreID,
			"error", err)
		if s.metrics != nil {
			s.metrics.RecordPropertyUpdate(false)
		}
		return
	}

	if err := s.ds.SetFinalDocumentType(ctx, doc.ID, migrationType, finalType); err != nil {
		s.logger.Error("failed to record final document type",
			"node_id", doc.NodeID, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPropertyUpdate(true)
	}
}
