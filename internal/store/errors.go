package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("already exists")
	ErrInvalidReference      = errors.New("referenced row does not exist")
	ErrInvalidValue          = errors.New("value violates a constraint")
	ErrUnknownColumn         = errors.New("unknown column")
	ErrInvalidFilter         = errors.New("invalid filter value")
	ErrNoFields              = errors.New("no fields to write")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrDuplicateEvent        = errors.New("event already processed")
	// ErrStaleState means a conditional update matched no row because the
	// row had moved on.
	ErrStaleState = errors.New("row state changed")
)

// translate maps driver errors to the store's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
		case "23514", "22P02":
			return fmt.Errorf("%w: %s", ErrInvalidValue, pgErr.Message)
		}
	}
	return err
}
