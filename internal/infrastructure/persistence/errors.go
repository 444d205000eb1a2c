package persistence

import (
	"errors"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict
const pgUniqueViolation = "23505"

// staleWrite is returned by SaveWithLock when the row's version moved on
func staleWrite(resource string) error {
	return shared.NewDomainError(shared.CodeOptimisticLock, resource+" was modified by another transaction")
}

// notFound maps gorm's record-not-found to the domain sentinel
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a unique index conflict, either
// translated by gorm or raw from the pgx driver
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
