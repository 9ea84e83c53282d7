package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// FetchProfile selects how much of an entity graph a read loads.
type FetchProfile int

const (
	// Shallow loads scalar columns only.
	Shallow FetchProfile = iota
	// Full additionally loads associations in batched queries.
	Full
)

// UnitOfWork runs one logical operation per transaction. The transaction
// commits when fn returns nil and rolls back on error or panic; the
// connection always goes back to the pool.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do executes fn in a transaction and classifies its error.
func (u *UnitOfWork) Do(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := u.db.WithContext(ctx).Transaction(fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, ErrConflict), isUniqueViolation(err):
		return ErrConflict
	}

	log.Error().Err(err).Str("op", op).Msg("Storage operation failed")
	return &StorageError{Op: op, Err: err}
}
