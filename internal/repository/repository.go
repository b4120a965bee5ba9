// Package repository is the persistence gateway: typed reads and
// compare-and-swap status writes over gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"Fixer-backend/internal/apperror"
)

// Store wraps a gorm handle. Inside WithTx the handle is the transaction.
type Store struct {
	db *gorm.DB
}

// New creates a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only listing helpers.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTx runs fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) first(ctx context.Context, dest interface{}, entity string, id interface{}, query string, args ...interface{}) error {
	err := s.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity, id)
	}
	return err
}

// casUpdate moves a row from one status to another in a single conditional
// UPDATE. Zero affected rows means another writer got there first.
func casUpdate[S ~string](ctx context.Context, db *gorm.DB, mdl interface{}, entity string, id uint, from, to S, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := db.WithContext(ctx).Model(mdl).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.InvalidTransition(entity, from, to)
	}
	return nil
}
