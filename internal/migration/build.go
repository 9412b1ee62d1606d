// build.go: construction of the full pipeline from settings.
package migration

import (
	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/enrichment"
	"github.com/dkovacevic/dossier-migrate/internal/mapping"
	"github.com/dkovacevic/dossier-migrate/internal/observability"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

// Pipeline bundles the wired services for one configured migration: the
// orchestrated worker, the standalone typed search, and the post-move
// property update pass, all sharing one staging store and repository client.
type Pipeline struct {
	Store          datastore.Interface
	Checkpoints    *datastore.CheckpointStore
	Worker         *Worker
	Search         *DocSearch
	PropertyUpdate *PropertyUpdateService
	Tracker        *ErrorTracker
	Metrics        *observability.Metrics
}

// NewPipeline wires every service from the settings tree. The caller owns the
// returned pipeline and must Close it.
func NewPipeline(settings *conf.Settings) (*Pipeline, error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, errors.Newf("no staging database enabled").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	checkpoints, err := datastore.NewCheckpointStore(settings)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	table := mapping.NewTable(nil)
	if settings.MappingFile != "" {
		table, err = mapping.LoadTable(settings.MappingFile)
		if err != nil {
			_ = checkpoints.Close()
			_ = store.Close()
			return nil, err
		}
	}

	obs, err := observability.NewMetrics()
	if err != nil {
		_ = checkpoints.Close()
		_ = store.Close()
		return nil, err
	}

	repoClient := repository.NewClient(&settings.Repository)
	resolver := repository.NewResolver(repoClient, settings.Repository.FolderCacheTTL)

	// Enrichment is an optional capability resolved here, once.
	var clients enrichment.ClientLookup
	var offers enrichment.OfferLookup
	if settings.Enrichment.Enabled {
		clients = enrichment.NewClientService(&settings.Enrichment)
		offers = enrichment.NewOfferService(&settings.Enrichment)
	}

	tracker := NewErrorTracker(&settings.Tracker, obs.Pipeline)

	worker := NewWorker(
		store,
		checkpoints,
		NewFolderDiscovery(store, repoClient, settings, obs.Pipeline),
		NewDocDiscovery(store, repoClient, resolver, table, settings, clients, offers, tracker, obs.Pipeline),
		NewFolderPreparation(store, resolver, checkpoints, settings, obs.Pipeline),
		NewMoveExecutor(store, repoClient, resolver, settings, tracker, obs.Pipeline),
		settings.Pipeline.CleanupIncomplete,
		obs.Pipeline,
	)

	return &Pipeline{
		Store:          store,
		Checkpoints:    checkpoints,
		Worker:         worker,
		Search:         NewDocSearch(store, repoClient, table, settings, clients, obs.Pipeline),
		PropertyUpdate: NewPropertyUpdateService(store, repoClient, table, settings, obs.Pipeline),
		Tracker:        tracker,
		Metrics:        obs,
	}, nil
}

// Close releases the pipeline's database connections.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Checkpoints != nil {
		errs = append(errs, p.Checkpoints.Close())
	}
	if p.Store != nil {
		errs = append(errs, p.Store.Close())
	}
	return errors.Join(errs...)
}
