// interfaces.go: this code defines the interface for the staging store operations
package datastore

import (
	"context"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"gorm.io/gorm"
)

// Interface abstracts the staging store used by every pipeline phase.
type Interface interface {
	Open() error
	Close() error

	// Folder staging
	InsertFolders(ctx context.Context, folders []FolderStaging) (int64, error)
	TakeFoldersBatch(ctx context.Context, limit int) ([]FolderStaging, error)
	SetFolderStatus(ctx context.Context, nodeID string, status FolderStatus) error
	SetFolderDestination(ctx context.Context, nodeID, destFolderID string) error
	FailFolder(ctx context.Context, nodeID, message string) error
	CountFolders(ctx context.Context, status FolderStatus) (int64, error)

	// Document staging
	InsertDocs(ctx context.Context, docs []DocStaging) (int64, error)
	TakeReadyDocsBatch(ctx context.Context, limit int) ([]DocStaging, error)
	TakeReadyMoveRefs(ctx context.Context, limit int) ([]MoveRef, error)
	SetDocStatus(ctx context.Context, id uint, status DocStatus) error
	FailDoc(ctx context.Context, id uint, message string) error
	CountDocs(ctx context.Context, status DocStatus) (int64, error)
	CountReadyDocs(ctx context.Context) (int64, error)
	UniqueDestinations(ctx context.Context) ([]Destination, error)
	LatestDocsPerGroup(ctx context.Context) ([]DocStaging, error)
	SetFinalDocumentType(ctx context.Context, id uint, typeMigration, finalType string) error
	DeleteIncomplete(ctx context.Context) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a staging store instance for the configured backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// supportsSkipLocked reports whether the connected dialect honors
// FOR UPDATE SKIP LOCKED. SQLite serializes writers instead, so the claim
// transaction alone is sufficient there.
func (ds *DataStore) supportsSkipLocked() bool {
	return ds.DB.Dialector.Name() == "mysql"
}
