// folders.go: staging operations for source folders
package datastore

import (
	"context"

	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertFolders stages folders, silently skipping rows whose NodeID is already
// present. Returns the number of rows actually inserted.
func (ds *DataStore) InsertFolders(ctx context.Context, folders []FolderStaging) (int64, error) {
	if len(folders) == 0 {
		return 0, nil
	}
	result := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "node_id"}}, DoNothing: true}).
		Create(&folders)
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "insert-folders").
			Context("count", len(folders)).
			Build()
	}
	return result.RowsAffected, nil
}

// TakeFoldersBatch atomically claims up to limit Ready folders and marks them
// Prepared within the same transaction. With MySQL the select uses
// FOR UPDATE SKIP LOCKED so concurrent claimers never return the same rows.
func (ds *DataStore) TakeFoldersBatch(ctx context.Context, limit int) ([]FolderStaging, error) {
	var claimed []FolderStaging

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ?", FolderReady).Order("id").Limit(limit)
		if ds.supportsSkipLocked() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(claimed))
		for i := range claimed {
			ids = append(ids, claimed[i].ID)
		}
		if err := tx.Model(&FolderStaging{}).Where("id IN ?", ids).
			Update("status", FolderPrepared).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = FolderPrepared
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "take-folders-batch").
			Context("limit", limit).
			Build()
	}
	return claimed, nil
}

// SetFolderStatus updates a folder's status by source node id.
func (ds *DataStore) SetFolderStatus(ctx context.Context, nodeID string, status FolderStatus) error {
	err := ds.DB.WithContext(ctx).Model(&FolderStaging{}).
		Where("node_id = ?", nodeID).
		Update("status", status).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "set-folder-status").
			Context("node_id", nodeID).
			Build()
	}
	return nil
}

// SetFolderDestination records the resolved destination folder id.
func (ds *DataStore) SetFolderDestination(ctx context.Context, nodeID, destFolderID string) error {
	err := ds.DB.WithContext(ctx).Model(&FolderStaging{}).
		Where("node_id = ?", nodeID).
		Update("dest_folder_id", destFolderID).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "set-folder-destination").
			Context("node_id", nodeID).
			Build()
	}
	return nil
}

// FailFolder marks a folder Error with a truncated message.
func (ds *DataStore) FailFolder(ctx context.Context, nodeID, message string) error {
	err := ds.DB.WithContext(ctx).Model(&FolderStaging{}).
		Where("node_id = ?", nodeID).
		Updates(map[string]any{
			"status":    FolderError,
			"error_msg": errors.TruncateMessage(message),
		}).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "fail-folder").
			Context("node_id", nodeID).
			Build()
	}
	return nil
}

// CountFolders returns the number of folders in the given status.
func (ds *DataStore) CountFolders(ctx context.Context, status FolderStatus) (int64, error) {
	var count int64
	err := ds.DB.WithContext(ctx).Model(&FolderStaging{}).
		Where("status = ?", status).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count-folders").
			Build()
	}
	return count, nil
}
