package migration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/mapping"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

// testSettings builds a settings tree pointed at a temp SQLite file with
// small batch sizes suited to tests.
func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "staging.db")
	settings.Repository.PageSize = 2
	settings.Repository.MigrationRoot = "mig-root"
	settings.Repository.DossierRoot = "dossier-root"
	settings.Repository.FolderCacheTTL = time.Minute
	settings.Pipeline.FolderNameFilter = "PI"
	settings.Pipeline.FolderBatchSize = 10
	settings.Pipeline.DocBatchSize = 10
	settings.Pipeline.IdleDelay = 5 * time.Millisecond
	settings.Pipeline.EmptyBatchLimit = 2
	settings.Pipeline.PrepareParallelism = 4
	settings.Pipeline.CheckpointInterval = 2
	settings.Pipeline.UpdateParallelism = 2
	settings.Pipeline.DocumentTypeCodes = []string{"00834", "00123"}
	settings.Pipeline.DossierTypes = []string{"PI"}
	return settings
}

func newTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()
	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestCheckpoints(t *testing.T, settings *conf.Settings) *datastore.CheckpointStore {
	t.Helper()
	cs, err := datastore.NewCheckpointStore(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

// newTestTable builds a small mapping table shared by the migration tests.
func newTestTable() *mapping.Table {
	return mapping.NewTable([]mapping.Mapping{
		{
			Naziv:                   "GDPR Consent",
			NazivDokumenta:          "GDPR saglasnost",
			NazivDokumentaMigracija: "GDPR saglasnost - migracija",
			SifraDokumenta:          "00123",
			SifraDokumentaMigracija: "00124",
		},
	})
}

// fakeRepo is an in-memory content repository implementing ReadWriter.
type fakeRepo struct {
	mu sync.Mutex

	pages       []repository.SearchResult
	searchErr   error
	searchCalls int

	children    map[string][]repository.Entry
	childrenErr map[string]error

	rejectMoves map[string]bool
	errorMoves  map[string]error
	moved       map[string]string

	folders map[string]map[string]string // parent id -> name -> folder id
	nextID  int

	updated   map[string]map[string]any
	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		children:    make(map[string][]repository.Entry),
		childrenErr: make(map[string]error),
		rejectMoves: make(map[string]bool),
		errorMoves:  make(map[string]error),
		moved:       make(map[string]string),
		folders:     make(map[string]map[string]string),
		updated:     make(map[string]map[string]any),
	}
}

func (f *fakeRepo) Search(ctx context.Context, query string, skip, take int, sort []repository.Sort) (repository.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return repository.SearchResult{}, f.searchErr
	}
	if f.searchCalls >= len(f.pages) {
		return repository.SearchResult{}, nil
	}
	page := f.pages[f.searchCalls]
	f.searchCalls++
	return page, nil
}

func (f *fakeRepo) GetChildren(ctx context.Context, folderID string) ([]repository.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.childrenErr[folderID]; err != nil {
		return nil, err
	}
	return f.children[folderID], nil
}

func (f *fakeRepo) MoveDocument(ctx context.Context, nodeID, destFolderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorMoves[nodeID]; err != nil {
		return false, err
	}
	if f.rejectMoves[nodeID] {
		return false, nil
	}
	f.moved[nodeID] = destFolderID
	return true, nil
}

func (f *fakeRepo) CreateFolder(ctx context.Context, parentID, name string, properties map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byName, ok := f.folders[parentID]
	if !ok {
		byName = make(map[string]string)
		f.folders[parentID] = byName
	}
	if id, exists := byName[name]; exists {
		return id, nil
	}
	f.nextID++
	id := fmt.Sprintf("fld-%d", f.nextID)
	byName[name] = id
	return id, nil
}

func (f *fakeRepo) UpdateNodeProperties(ctx context.Context, nodeID string, properties map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	f.updated[nodeID] = properties
	return true, nil
}

// folderCount returns the total number of folders the fake has created.
func (f *fakeRepo) folderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, byName := range f.folders {
		count += len(byName)
	}
	return count
}

func folderEntry(id, name string) repository.Entry {
	return repository.Entry{ID: id, Name: name, IsFolder: true}
}

func docEntry(id, name, docType, parentID, path string, createdAt time.Time) repository.Entry {
	return repository.Entry{
		ID:        id,
		Name:      name,
		ParentID:  parentID,
		Path:      path,
		CreatedAt: createdAt,
		Properties: map[string]any{
			"ecm:docType": docType,
		},
	}
}
