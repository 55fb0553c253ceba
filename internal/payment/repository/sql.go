package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore keeps documents as JSON rows in payment_documents.
type SQLStore struct {
	handle *db.Handle
	log    *zap.Logger
}

func NewSQLStore(handle *db.Handle, log *zap.Logger) *SQLStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLStore{handle: handle, log: log.Named("payment.store.sql")}
}

func (s *SQLStore) Merge(ctx context.Context, collection, key string, fields map[string]any, now time.Time) (bool, error) {
	if collection == "" || key == "" {
		return false, domain.ErrInvalidEvent
	}
	conn, err := s.handle.DB()
	if err != nil {
		return false, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}

	created, err := s.merge(ctx, conn, collection, key, fields, now)
	if err != nil && db.IsDuplicateKeyErr(err) {
		// A concurrent writer created the row between our read and insert.
		s.log.Debug("merge raced on create, retrying as update",
			zap.String("collection", collection),
			zap.String("document_id", key),
		)
		created, err = s.merge(ctx, conn, collection, key, fields, now)
	}
	return created, err
}

func (s *SQLStore) merge(ctx context.Context, conn *gorm.DB, collection, key string, fields map[string]any, now time.Time) (bool, error) {
	now = now.UTC()
	created := false

	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.DocumentRecord
		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := query.
			Where("collection = ? AND document_id = ?", collection, key).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record := domain.DocumentRecord{
				Collection: collection,
				DocumentID: key,
				Data:       documentData(nil, fields),
				CreatedOn:  now,
				UpdatedOn:  now,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			created = true
			return nil
		case err != nil:
			return err
		}

		return tx.Model(&domain.DocumentRecord{}).
			Where("collection = ? AND document_id = ?", collection, key).
			Updates(map[string]any{
				"data":       documentData(existing.Data, fields),
				"updated_on": now,
			}).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *SQLStore) Get(ctx context.Context, collection, key string) (domain.Document, error) {
	conn, err := s.handle.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}

	var record domain.DocumentRecord
	err = conn.WithContext(ctx).
		Where("collection = ? AND document_id = ?", collection, key).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.Document(), nil
}

// documentData overlays fields onto the stored data. Nested maps merge key
// by key, matching Firestore's MergeAll. Timestamps live in their own columns.
func documentData(stored datatypes.JSONMap, fields map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap(mergeMaps(stored, fields))
	delete(out, "createdOn")
	delete(out, "updatedOn")
	return out
}

func mergeMaps(stored, fields map[string]any) map[string]any {
	out := make(map[string]any, len(stored)+len(fields))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range fields {
		incoming, ok := v.(map[string]any)
		if !ok {
			out[k] = v
			continue
		}
		if existing, ok := out[k].(map[string]any); ok {
			out[k] = mergeMaps(existing, incoming)
			continue
		}
		out[k] = mergeMaps(nil, incoming)
	}
	return out
}
