package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

func stageDocsForPreparation(t *testing.T, store datastore.Interface, paths ...string) {
	t.Helper()
	docs := make([]datastore.DocStaging, 0, len(paths))
	for i, path := range paths {
		docs = append(docs, datastore.DocStaging{
			NodeID:            "doc-" + path + "-" + string(rune('a'+i)),
			DocumentType:      "00123",
			CoreID:            "102206",
			Status:            datastore.DocReady,
			DestRootID:        "mig-root",
			ToPath:            path,
			OriginalCreatedAt: time.Now(),
		})
	}
	_, err := store.InsertDocs(context.Background(), docs)
	require.NoError(t, err)
}

func TestFolderPreparationCreatesUniqueHierarchies(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	checkpoints := newTestCheckpoints(t, settings)
	ctx := context.Background()

	// Two documents share a destination; it must only be created once.
	stageDocsForPreparation(t, store,
		"DOSSIERS-PI/PI-1",
		"DOSSIERS-PI/PI-1",
		"DOSSIERS-PI/PI-2",
		"DOSSIERS-ACC/ACC-9",
	)

	repo := newFakeRepo()
	resolver := repository.NewResolver(repo, time.Minute)
	prep := NewFolderPreparation(store, resolver, checkpoints, settings, nil)

	require.NoError(t, prep.Run(ctx))

	// Three unique leaf folders under two type roots: five folders total.
	assert.Equal(t, 5, repo.folderCount())

	cp, err := checkpoints.Get(ctx, datastore.PhaseFolderPreparation)
	require.NoError(t, err)
	require.NotNil(t, cp.TotalItems)
	assert.Equal(t, 3, *cp.TotalItems)
	assert.Equal(t, 3, cp.TotalProcessed)
}

func TestFolderPreparationIsIdempotent(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	checkpoints := newTestCheckpoints(t, settings)
	ctx := context.Background()

	stageDocsForPreparation(t, store, "DOSSIERS-PI/PI-1", "DOSSIERS-PI/PI-2")

	repo := newFakeRepo()
	resolver := repository.NewResolver(repo, time.Minute)
	prep := NewFolderPreparation(store, resolver, checkpoints, settings, nil)

	require.NoError(t, prep.Run(ctx))
	created := repo.folderCount()

	require.NoError(t, checkpoints.Reset(ctx, datastore.PhaseFolderPreparation))
	require.NoError(t, prep.Run(ctx))
	assert.Equal(t, created, repo.folderCount(), "re-running creates no duplicate folders")
}

func TestFolderPreparationResumesFromCheckpoint(t *testing.T) {
	settings := testSettings(t)
	store := newTestStore(t, settings)
	checkpoints := newTestCheckpoints(t, settings)
	ctx := context.Background()

	stageDocsForPreparation(t, store,
		"DOSSIERS-PI/PI-1",
		"DOSSIERS-PI/PI-2",
		"DOSSIERS-PI/PI-3",
	)

	// Simulate an interrupted run that already completed the first entry.
	require.NoError(t, checkpoints.UpdateProgress(ctx, datastore.PhaseFolderPreparation, 1, "DOSSIERS-PI/PI-1", 1))

	repo := newFakeRepo()
	resolver := repository.NewResolver(repo, time.Minute)
	prep := NewFolderPreparation(store, resolver, checkpoints, settings, nil)

	require.NoError(t, prep.Run(ctx))

	// The skipped entry's leaf folder was never created in this run.
	repo.mu.Lock()
	piRoot := repo.folders["mig-root"]["DOSSIERS-PI"]
	_, skipped := repo.folders[piRoot]["PI-1"]
	leafCount := len(repo.folders[piRoot])
	repo.mu.Unlock()
	assert.False(t, skipped)
	assert.Equal(t, 2, leafCount)
}

func TestProgressTrackerRecordsContiguousFrontier(t *testing.T) {
	progress := newProgressTracker(0)

	// Later entries finishing first must not move the frontier past entries
	// that are still in flight.
	frontier, done := progress.complete(2)
	assert.Equal(t, 0, frontier)
	assert.Equal(t, 1, done)

	frontier, done = progress.complete(1)
	assert.Equal(t, 0, frontier)
	assert.Equal(t, 2, done)

	// The earliest entry finishing closes the gap and releases the run.
	frontier, done = progress.complete(0)
	assert.Equal(t, 3, frontier)
	assert.Equal(t, 3, done)

	frontier, done = progress.snapshot()
	assert.Equal(t, 3, frontier)
	assert.Equal(t, 3, done)
}

func TestProgressTrackerResumedStart(t *testing.T) {
	progress := newProgressTracker(2)

	frontier, _ := progress.complete(3)
	assert.Equal(t, 2, frontier)

	frontier, _ = progress.complete(2)
	assert.Equal(t, 4, frontier)
}
