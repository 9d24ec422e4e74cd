package store

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"label-platform/internal/models"
)

type Users struct {
	db sqlx.ExtContext
}

func NewUsers(db sqlx.ExtContext) *Users {
	return &Users{db: db}
}

// Create inserts a user. A taken email comes back as ErrConflict.
func (u *Users) Create(ctx context.Context, email, passwordHash, name, role string) (models.User, error) {
	var user models.User
	query := `INSERT INTO users (email, password_hash, name, role)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, email, password_hash, name, role, created_at, updated_at`
	err := sqlx.GetContext(ctx, u.db, &user, query, strings.ToLower(email), passwordHash, name, role)
	return user, translate(err)
}

func (u *Users) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	query := `SELECT id, email, password_hash, name, role, created_at, updated_at
	          FROM users WHERE email = $1`
	err := sqlx.GetContext(ctx, u.db, &user, query, strings.ToLower(email))
	return user, translate(err)
}

func (u *Users) GetByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	query := `SELECT id, email, password_hash, name, role, created_at, updated_at
	          FROM users WHERE id = $1`
	err := sqlx.GetContext(ctx, u.db, &user, query, id)
	return user, translate(err)
}
