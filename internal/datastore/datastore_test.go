package datastore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
)

// newTestStore opens a SQLite staging store backed by a temp file.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "staging.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testFolder(nodeID string) FolderStaging {
	return FolderStaging{
		NodeID:   nodeID,
		ParentID: "root",
		Name:     "PI102206",
		Status:   FolderReady,
		CoreID:   "102206",
	}
}

func testDoc(nodeID string) DocStaging {
	return DocStaging{
		NodeID:            nodeID,
		DocumentType:      "00834",
		CoreID:            "102206",
		Status:            DocReady,
		DestRootID:        "dest-root",
		ToPath:            "PI-102206",
		Source:            SourceHeimdall,
		OriginalCreatedAt: time.Now(),
	}
}

func TestInsertFoldersIgnoresDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.InsertFolders(ctx, []FolderStaging{testFolder("f1"), testFolder("f2")})
	require.NoError(t, err)
	assert.EqualValues(t, 2, inserted)

	// Re-ingesting the same folders must be a silent no-op.
	inserted, err = store.InsertFolders(ctx, []FolderStaging{testFolder("f1"), testFolder("f3")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, inserted)

	count, err := store.CountFolders(ctx, FolderReady)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestTakeFoldersBatchClaimsDisjointSets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	folders := make([]FolderStaging, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		folders = append(folders, testFolder(id))
	}
	_, err := store.InsertFolders(ctx, folders)
	require.NoError(t, err)

	first, err := store.TakeFoldersBatch(ctx, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for _, f := range first {
		assert.Equal(t, FolderPrepared, f.Status)
	}

	second, err := store.TakeFoldersBatch(ctx, 3)
	require.NoError(t, err)
	require.Len(t, second, 2)

	seen := map[string]bool{}
	for _, f := range append(first, second...) {
		assert.False(t, seen[f.NodeID], "folder %s claimed twice", f.NodeID)
		seen[f.NodeID] = true
	}

	third, err := store.TakeFoldersBatch(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestFolderStatusTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertFolders(ctx, []FolderStaging{testFolder("f1")})
	require.NoError(t, err)

	require.NoError(t, store.SetFolderStatus(ctx, "f1", FolderProcessed))
	count, err := store.CountFolders(ctx, FolderProcessed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	longMsg := strings.Repeat("x", 5000)
	require.NoError(t, store.FailFolder(ctx, "f1", longMsg))

	var row FolderStaging
	require.NoError(t, store.DB.Where("node_id = ?", "f1").First(&row).Error)
	assert.Equal(t, FolderError, row.Status)
	assert.Len(t, row.ErrorMsg, 4000)
}

func TestTakeReadyDocsRequiresResolvedDestination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	unresolved := testDoc("d1")
	unresolved.ToPath = ""
	unresolved.DossierDestFolderID = ""
	resolved := testDoc("d2")

	_, err := store.InsertDocs(ctx, []DocStaging{unresolved, resolved})
	require.NoError(t, err)

	count, err := store.CountReadyDocs(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	claimed, err := store.TakeReadyDocsBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "d2", claimed[0].NodeID)
	assert.Equal(t, DocProcessing, claimed[0].Status)
}

func TestFailDocIncrementsRetryCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertDocs(ctx, []DocStaging{testDoc("d1")})
	require.NoError(t, err)

	var row DocStaging
	require.NoError(t, store.DB.Where("node_id = ?", "d1").First(&row).Error)

	require.NoError(t, store.FailDoc(ctx, row.ID, "move rejected"))
	require.NoError(t, store.DB.Where("node_id = ?", "d1").First(&row).Error)
	assert.Equal(t, DocFailed, row.Status)
	assert.Equal(t, 1, row.RetryCount)
	assert.Equal(t, "move rejected", row.ErrorMsg)

	require.NoError(t, store.FailDoc(ctx, row.ID, "still failing"))
	require.NoError(t, store.DB.Where("node_id = ?", "d1").First(&row).Error)
	assert.Equal(t, 2, row.RetryCount)
}

func TestUniqueDestinations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d1 := testDoc("d1")
	d2 := testDoc("d2") // same destination as d1
	d3 := testDoc("d3")
	d3.ToPath = "DE-102206-TD_123"
	d4 := testDoc("d4")
	d4.ToPath = "" // unresolved, must be excluded

	_, err := store.InsertDocs(ctx, []DocStaging{d1, d2, d3, d4})
	require.NoError(t, err)

	destinations, err := store.UniqueDestinations(ctx)
	require.NoError(t, err)
	require.Len(t, destinations, 2)
	assert.Equal(t, Destination{RootID: "dest-root", Path: "DE-102206-TD_123"}, destinations[0])
	assert.Equal(t, Destination{RootID: "dest-root", Path: "PI-102206"}, destinations[1])
}

func TestLatestDocsPerGroup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testDoc("d1")
	older.OriginalCreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testDoc("d2")
	newer.OriginalCreatedAt = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	otherGroup := testDoc("d3")
	otherGroup.DocumentType = "00900"
	otherGroup.OriginalCreatedAt = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.InsertDocs(ctx, []DocStaging{older, newer, otherGroup})
	require.NoError(t, err)

	latest, err := store.LatestDocsPerGroup(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	nodes := []string{latest[0].NodeID, latest[1].NodeID}
	assert.Contains(t, nodes, "d2")
	assert.Contains(t, nodes, "d3")
	assert.NotContains(t, nodes, "d1")
}

func TestDeleteIncomplete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prepared := testFolder("f1")
	prepared.Status = FolderPrepared
	processed := testFolder("f2")
	processed.Status = FolderProcessed
	_, err := store.InsertFolders(ctx, []FolderStaging{prepared, processed})
	require.NoError(t, err)

	stuck := testDoc("d1")
	stuck.Status = DocProcessing
	done := testDoc("d2")
	done.Status = DocDone
	_, err = store.InsertDocs(ctx, []DocStaging{stuck, done})
	require.NoError(t, err)

	deleted, err := store.DeleteIncomplete(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := store.CountFolders(ctx, FolderProcessed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	count, err = store.CountDocs(ctx, DocDone)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCheckpointLifecycle(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "staging.db")

	cs, err := NewCheckpointStore(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	ctx := context.Background()

	cp, err := cs.Get(ctx, PhaseFolderDiscovery)
	require.NoError(t, err)
	assert.Equal(t, CheckpointNotStarted, cp.Status)
	assert.Nil(t, cp.StartedAt)

	require.NoError(t, cs.MarkInProgress(ctx, PhaseFolderDiscovery, "run-1"))
	cp, err = cs.Get(ctx, PhaseFolderDiscovery)
	require.NoError(t, err)
	assert.Equal(t, CheckpointInProgress, cp.Status)
	assert.Equal(t, "run-1", cp.RunID)
	require.NotNil(t, cp.StartedAt)

	require.NoError(t, cs.UpdateProgress(ctx, PhaseFolderDiscovery, 42, "node-42", 42))
	require.NoError(t, cs.SetTotalItems(ctx, PhaseFolderDiscovery, 100))
	cp, err = cs.Get(ctx, PhaseFolderDiscovery)
	require.NoError(t, err)
	assert.Equal(t, 42, cp.LastProcessedIndex)
	assert.Equal(t, "node-42", cp.LastProcessedID)
	require.NotNil(t, cp.TotalItems)
	assert.Equal(t, 100, *cp.TotalItems)

	require.NoError(t, cs.MarkCompleted(ctx, PhaseFolderDiscovery))
	cp, err = cs.Get(ctx, PhaseFolderDiscovery)
	require.NoError(t, err)
	assert.Equal(t, CheckpointCompleted, cp.Status)
	require.NotNil(t, cp.CompletedAt)

	// Other phases are untouched.
	cp, err = cs.Get(ctx, PhaseMove)
	require.NoError(t, err)
	assert.Equal(t, CheckpointNotStarted, cp.Status)

	require.NoError(t, cs.Reset(ctx, PhaseFolderDiscovery))
	cp, err = cs.Get(ctx, PhaseFolderDiscovery)
	require.NoError(t, err)
	assert.Equal(t, CheckpointNotStarted, cp.Status)
	assert.Zero(t, cp.LastProcessedIndex)
	assert.Nil(t, cp.TotalItems)
}

func TestCheckpointFailureRecordsTruncatedMessage(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "staging.db")

	cs, err := NewCheckpointStore(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	ctx := context.Background()
	require.NoError(t, cs.MarkFailed(ctx, PhaseMove, strings.Repeat("e", 5000)))

	cp, err := cs.Get(ctx, PhaseMove)
	require.NoError(t, err)
	assert.Equal(t, CheckpointFailed, cp.Status)
	assert.Len(t, cp.ErrorMessage, 4000)
}
