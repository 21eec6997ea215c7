package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const userColumns = `id, username, email, role, created_at`

// CreateUser inserts a user. Empty ID, Role and CreatedAt are filled in.
func (db *DB) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = "viewer"
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.Role, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("catalog: create user: %w", err)
	}
	return &u, nil
}

// UserByID returns the user with the given id or apperr.ErrNotFound.
func (db *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// EnsureUser returns the user named username, creating it when missing.
func (db *DB) EnsureUser(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return db.CreateUser(ctx, models.User{Username: username, Role: "editor"})
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: scan user: %w", err)
	}
	return &u, nil
}
