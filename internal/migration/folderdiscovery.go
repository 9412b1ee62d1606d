// folderdiscovery.go: scans the source repository for dossier folders and
// stages them as pending work items.
package migration

import (
	"context"
	"log/slog"
	"unicode"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/dkovacevic/dossier-migrate/internal/observability/metrics"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

// FolderDiscovery pages through source folders matching the configured name
// filter and ingests each as a FolderStaging row with status Ready.
// Duplicate ingestion across runs is absorbed by the store's insert-ignore
// semantics, not prevented here.
type FolderDiscovery struct {
	ds       datastore.Interface
	reader   repository.Reader
	filter   string
	pageSize int
	metrics  *metrics.PipelineMetrics
	logger   *slog.Logger
}

// NewFolderDiscovery builds the discovery service. Metrics may be nil.
func NewFolderDiscovery(ds datastore.Interface, reader repository.Reader, settings *conf.Settings, m *metrics.PipelineMetrics) *FolderDiscovery {
	return &FolderDiscovery{
		ds:       ds,
		reader:   reader,
		filter:   settings.Pipeline.FolderNameFilter,
		pageSize: settings.Repository.PageSize,
		metrics:  m,
		logger:   logging.ForService("folder-discovery"),
	}
}

// Run scans the repository until the search reports no further pages. A page
// query failure aborts the scan; folders already ingested remain staged.
func (d *FolderDiscovery) Run(ctx context.Context) error {
	query := repository.NewQuery().
		IsFolder().
		NameContains(d.filter).
		String()

	sort := []repository.Sort{{Field: "cm:name", Ascending: true}}

	var staged int64
	for skip := 0; ; skip += d.pageSize {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("folder-discovery").
				Category(errors.CategoryCancellation).
				Build()
		}

		page, err := d.reader.Search(ctx, query, skip, d.pageSize, sort)
		if err != nil {
			return errors.New(err).
				Component("folder-discovery").
				Category(errors.CategoryDiscovery).
				Context("skip", skip).
				Build()
		}
		if len(page.Entries) == 0 {
			break
		}

		folders := make([]datastore.FolderStaging, 0, len(page.Entries))
		for i := range page.Entries {
			folders = append(folders, stagingForEntry(&page.Entries[i]))
		}
		inserted, err := d.ds.InsertFolders(ctx, folders)
		if err != nil {
			return errors.New(err).
				Component("folder-discovery").
				Category(errors.CategoryDatabase).
				Context("operation", "insert-folders").
				Build()
		}
		staged += inserted
		if d.metrics != nil {
			d.metrics.FoldersStaged.Add(float64(inserted))
		}

		d.logger.Debug("folder page ingested",
			"skip", skip,
			"page_size", len(page.Entries),
			"newly_staged", inserted)

		if !page.HasMore {
			break
		}
	}

	d.logger.Info("folder discovery finished", "filter", d.filter, "staged", staged)
	return nil
}

// stagingForEntry maps a repository folder entry to a staging row.
func stagingForEntry(e *repository.Entry) datastore.FolderStaging {
	return datastore.FolderStaging{
		NodeID:   e.ID,
		ParentID: e.ParentID,
		Name:     e.Name,
		Status:   datastore.FolderReady,
		CoreID:   coreIDFromName(e.Name),
	}
}

// coreIDFromName extracts the numeric client identifier from a dossier folder
// name such as "PI102206" or "PI-102206". Names without a digit run yield an
// empty id.
func coreIDFromName(name string) string {
	start := -1
	for i, r := range name {
		if unicode.IsDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := start
	for end < len(name) && unicode.IsDigit(rune(name[end])) {
		end++
	}
	return name[start:end]
}
