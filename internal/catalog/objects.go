package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const summaryColumns = `id, name, description, version, creator_id, created_at, updated_at`

// CreateObject inserts an object definition with its initial attributes and
// methods. The (name, version) pair must not already exist, compared
// case-insensitively; otherwise apperr.ErrAlreadyExists is returned.
func (db *DB) CreateObject(ctx context.Context, in models.NewObject) (*models.ObjectDef, error) {
	var out *models.ObjectDef
	err := db.withTx(ctx, "create object", func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `
			SELECT 1 FROM objects
			WHERE name = ? COLLATE NOCASE AND version = ? COLLATE NOCASE
			LIMIT 1
		`, in.Name, in.Version).Scan(&one)
		switch {
		case err == nil:
			return apperr.ErrAlreadyExists
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check duplicate: %w", err)
		}

		err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, in.CreatorID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NewValidation("invalid creator id")
		}
		if err != nil {
			return fmt.Errorf("check creator: %w", err)
		}

		id := uuid.NewString()
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO objects (id, name, description, version, creator_id, revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		`, id, in.Name, in.Description, in.Version, in.CreatorID, now, now); err != nil {
			return fmt.Errorf("insert object: %w", err)
		}
		for _, a := range in.Attributes {
			if err := insertAttribute(ctx, tx, id, a); err != nil {
				return err
			}
		}
		for _, m := range in.Methods {
			if err := insertMethod(ctx, tx, id, m); err != nil {
				return err
			}
		}
		out, err = snapshot(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ObjectOwner returns the creator id of an object or apperr.ErrNotFound.
func (db *DB) ObjectOwner(ctx context.Context, id string) (string, error) {
	var creator string
	err := db.conn.QueryRowContext(ctx, `SELECT creator_id FROM objects WHERE id = ?`, id).Scan(&creator)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("catalog: object owner: %w", err)
	}
	return creator, nil
}

// FindObject looks an object up by (name, version), case-insensitively.
func (db *DB) FindObject(ctx context.Context, name, version string) (*models.ObjectSummary, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+summaryColumns+` FROM objects
		WHERE name = ? COLLATE NOCASE AND version = ? COLLATE NOCASE
		ORDER BY created_at
		LIMIT 1
	`, name, version)
	var s models.ObjectSummary
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Version, &s.CreatorID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find object: %w", err)
	}
	return &s, nil
}

// VersionsByName returns every version of the objects called name, compared
// case-insensitively, oldest first. The result is empty, not nil, when none
// exist.
func (db *DB) VersionsByName(ctx context.Context, name string) ([]models.ObjectVersion, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT o.id, o.name, o.description, o.version, o.creator_id, o.created_at, o.updated_at, u.username
		FROM objects o
		JOIN users u ON u.id = o.creator_id
		WHERE o.name = ? COLLATE NOCASE
		ORDER BY o.created_at, o.rowid
	`, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: versions by name: %w", err)
	}
	defer rows.Close()

	out := []models.ObjectVersion{}
	for rows.Next() {
		var v models.ObjectVersion
		if err := rows.Scan(&v.ID, &v.Name, &v.Description, &v.Version, &v.CreatorID,
			&v.CreatedAt, &v.UpdatedAt, &v.Creator.Username); err != nil {
			return nil, err
		}
		v.Creator.ID = v.CreatorID
		out = append(out, v)
	}
	return out, rows.Err()
}

type historyState struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PatchObject renames and/or re-describes an object and records a history
// entry with the previous and new values. (name, version) uniqueness is not
// re-checked here.
func (db *DB) PatchObject(ctx context.Context, id, userID string, patch models.ObjectPatch, ifRevision int64) (*models.ObjectDef, error) {
	var out *models.ObjectDef
	err := db.withTx(ctx, "patch object", func(tx *sql.Tx) error {
		var prev historyState
		err := tx.QueryRowContext(ctx, `SELECT name, description FROM objects WHERE id = ?`, id).
			Scan(&prev.Name, &prev.Description)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load object: %w", err)
		}
		if err := touchObject(ctx, tx, id, ifRevision); err != nil {
			return err
		}

		next := prev
		if patch.Name != nil {
			next.Name = *patch.Name
		}
		if patch.Description != nil {
			next.Description = *patch.Description
		}
		if _, err := tx.ExecContext(ctx, `UPDATE objects SET name = ?, description = ? WHERE id = ?`,
			next.Name, next.Description, id); err != nil {
			return fmt.Errorf("update object: %w", err)
		}

		changes, err := json.Marshal(map[string]historyState{"previous": prev, "new": next})
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO history (id, object_id, user_id, changes, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.NewString(), id, userID, string(changes), time.Now().UTC()); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}

		out, err = snapshot(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRelationship links fromID to in.ToObjectID and returns the source
// object's snapshot.
func (db *DB) CreateRelationship(ctx context.Context, fromID string, in models.NewRelationship) (*models.ObjectDef, error) {
	var out *models.ObjectDef
	err := db.withTx(ctx, "create relationship", func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE id = ?`, in.ToObjectID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NewValidation("target object does not exist")
		}
		if err != nil {
			return fmt.Errorf("check target: %w", err)
		}
		if err := touchObject(ctx, tx, fromID, 0); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relationships (id, from_object_id, to_object_id, type, description)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.NewString(), fromID, in.ToObjectID, string(in.Type), in.Description); err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
		out, err = snapshot(ctx, tx, fromID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the change log of an object, newest first.
func (db *DB) History(ctx context.Context, objectID string) ([]models.HistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, object_id, user_id, changes, created_at
		FROM history
		WHERE object_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: history: %w", err)
	}
	defer rows.Close()

	out := []models.HistoryEntry{}
	for rows.Next() {
		var (
			h       models.HistoryEntry
			changes []byte
		)
		if err := rows.Scan(&h.ID, &h.ObjectID, &h.UserID, &changes, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Changes = json.RawMessage(changes)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Summaries returns every object definition in creation order.
func (db *DB) Summaries(ctx context.Context) ([]models.ObjectSummary, error) {
	return db.summaries(ctx, `SELECT `+summaryColumns+` FROM objects ORDER BY created_at, rowid`)
}

// ListByCreator returns the objects created by a user, most recently updated first.
func (db *DB) ListByCreator(ctx context.Context, creatorID string) ([]models.ObjectSummary, error) {
	return db.summaries(ctx, `SELECT `+summaryColumns+` FROM objects WHERE creator_id = ? ORDER BY updated_at DESC`, creatorID)
}

// CountByCreator returns the number of objects created by a user.
func (db *DB) CountByCreator(ctx context.Context, creatorID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM objects WHERE creator_id = ?`, creatorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count objects: %w", err)
	}
	return n, nil
}

func (db *DB) summaries(ctx context.Context, query string, args ...any) ([]models.ObjectSummary, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list objects: %w", err)
	}
	defer rows.Close()

	out := []models.ObjectSummary{}
	for rows.Next() {
		var s models.ObjectSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Version, &s.CreatorID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
