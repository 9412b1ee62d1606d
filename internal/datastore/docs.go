// docs.go: staging operations for documents
package datastore

import (
	"context"

	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// readyForMove restricts a query to documents eligible for the move phase:
// Ready status and a resolved destination.
func readyForMove(q *gorm.DB) *gorm.DB {
	return q.Where("status = ?", DocReady).
		Where("to_path <> '' OR dossier_dest_folder_id <> ''")
}

// InsertDocs stages documents, silently skipping rows whose NodeID is already
// present. Returns the number of rows actually inserted.
func (ds *DataStore) InsertDocs(ctx context.Context, docs []DocStaging) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	result := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "node_id"}}, DoNothing: true}).
		Create(&docs)
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "insert-docs").
			Context("count", len(docs)).
			Build()
	}
	return result.RowsAffected, nil
}

// TakeReadyDocsBatch atomically claims up to limit move-eligible documents and
// marks them Processing within the same transaction.
func (ds *DataStore) TakeReadyDocsBatch(ctx context.Context, limit int) ([]DocStaging, error) {
	var claimed []DocStaging

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := readyForMove(tx).Order("id").Limit(limit)
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
		if err := tx.Model(&DocStaging{}).Where("id IN ?", ids).
			Update("status", DocProcessing).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = DocProcessing
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "take-ready-docs-batch").
			Context("limit", limit).
			Build()
	}
	return claimed, nil
}

// TakeReadyMoveRefs claims move-eligible documents with an already-resolved
// destination folder id and returns the narrow node/destination projection.
func (ds *DataStore) TakeReadyMoveRefs(ctx context.Context, limit int) ([]MoveRef, error) {
	var refs []MoveRef

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var claimed []DocStaging
		q := tx.Where("status = ?", DocReady).
			Where("dossier_dest_folder_id <> ''").
			Order("id").Limit(limit)
		if ds.supportsSkipLocked() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Select("id", "node_id", "dossier_dest_folder_id").Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(claimed))
		for i := range claimed {
			ids = append(ids, claimed[i].ID)
			refs = append(refs, MoveRef{
				ID:           claimed[i].ID,
				NodeID:       claimed[i].NodeID,
				DestFolderID: claimed[i].DossierDestFolderID,
			})
		}
		return tx.Model(&DocStaging{}).Where("id IN ?", ids).
			Update("status", DocProcessing).Error
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "take-ready-move-refs").
			Context("limit", limit).
			Build()
	}
	return refs, nil
}

// SetDocStatus updates a document's status by surrogate key.
func (ds *DataStore) SetDocStatus(ctx context.Context, id uint, status DocStatus) error {
	err := ds.DB.WithContext(ctx).Model(&DocStaging{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "set-doc-status").
			Context("id", id).
			Build()
	}
	return nil
}

// FailDoc marks a document Failed, increments its retry counter and records a
// truncated error message.
func (ds *DataStore) FailDoc(ctx context.Context, id uint, message string) error {
	err := ds.DB.WithContext(ctx).Model(&DocStaging{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      DocFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
			"error_msg":   errors.TruncateMessage(message),
		}).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "fail-doc").
			Context("id", id).
			Build()
	}
	return nil
}

// CountDocs returns the number of documents in the given status.
func (ds *DataStore) CountDocs(ctx context.Context, status DocStatus) (int64, error) {
	var count int64
	err := ds.DB.WithContext(ctx).Model(&DocStaging{}).
		Where("status = ?", status).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count-docs").
			Build()
	}
	return count, nil
}

// CountReadyDocs returns the number of documents eligible for the move phase.
func (ds *DataStore) CountReadyDocs(ctx context.Context) (int64, error) {
	var count int64
	err := readyForMove(ds.DB.WithContext(ctx).Model(&DocStaging{})).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count-ready-docs").
			Build()
	}
	return count, nil
}

// UniqueDestinations returns the distinct (root, path) destination folder
// references implied by all staged documents, in deterministic order. This is
// the work list for the folder preparation phase.
func (ds *DataStore) UniqueDestinations(ctx context.Context) ([]Destination, error) {
	var destinations []Destination
	err := ds.DB.WithContext(ctx).Model(&DocStaging{}).
		Select("dest_root_id AS root_id, to_path AS path").
		Where("to_path <> ''").
		Group("dest_root_id, to_path").
		Order("dest_root_id, to_path").
		Scan(&destinations).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "unique-destinations").
			Build()
	}
	return destinations, nil
}

// LatestDocsPerGroup returns, for each (CoreID, DocumentType) group, the most
// recently created document. These are the only rows eligible for the final
// document type transformation.
func (ds *DataStore) LatestDocsPerGroup(ctx context.Context) ([]DocStaging, error) {
	var docs []DocStaging
	sub := ds.DB.Model(&DocStaging{}).
		Select("core_id, document_type, MAX(original_created_at) AS latest").
		Where("core_id <> '' AND document_type <> ''").
		Group("core_id, document_type")
	err := ds.DB.WithContext(ctx).Model(&DocStaging{}).
		Joins("JOIN (?) g ON doc_stagings.core_id = g.core_id AND doc_stagings.document_type = g.document_type AND doc_stagings.original_created_at = g.latest", sub).
		Order("doc_stagings.id").
		Find(&docs).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "latest-docs-per-group").
			Build()
	}
	return docs, nil
}

// SetFinalDocumentType applies the post-migration document type pair. Both
// columns are always written together.
func (ds *DataStore) SetFinalDocumentType(ctx context.Context, id uint, typeMigration, finalType string) error {
	err := ds.DB.WithContext(ctx).Model(&DocStaging{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"document_type_migration": typeMigration,
			"final_document_type":     finalType,
		}).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "set-final-document-type").
			Context("id", id).
			Build()
	}
	return nil
}

// DeleteIncomplete removes rows stuck in transient states by a crashed run:
// claimed folders never finished and documents left Processing. Safe to call
// before discovery; completed and failed rows are kept.
func (ds *DataStore) DeleteIncomplete(ctx context.Context) (int64, error) {
	var total int64
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("status = ?", FolderPrepared).Delete(&FolderStaging{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected

		res = tx.Where("status = ?", DocProcessing).Delete(&DocStaging{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "delete-incomplete").
			Build()
	}
	return total, nil
}
