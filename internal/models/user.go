// Package models holds the rows the store reads and writes.
//
// We use 'db' tags for sqlx to map the snake_case column names to Go fields,
// and 'json' tags for the API.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals go out as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents a user's authentication details.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
