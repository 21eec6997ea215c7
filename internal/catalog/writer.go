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
	"github.com/starford/ansuz/internal/reconcile"
)

// errForeignRow is returned when a submitted id is not a child of the object
// being updated (unknown id, or a row owned by another object).
var errForeignRow = errors.New("row does not belong to object")

// ReplaceAttributes makes the object's attribute set equal to submitted in a
// single transaction and returns the snapshot read inside that transaction.
//
// Entries with an id update that attribute, entries without one are created,
// and persisted attributes missing from submitted are deleted. Deletes run
// before updates, updates before creates. When ifRevision is non-zero the
// object's current revision must match it or apperr.ErrConflict is returned.
// Callers are expected to have validated and authorized the request.
func (db *DB) ReplaceAttributes(ctx context.Context, objectID string, submitted []models.AttributeInput, ifRevision int64) (*models.ObjectDef, error) {
	var out *models.ObjectDef
	err := db.withTx(ctx, "replace attributes", func(tx *sql.Tx) error {
		if err := touchObject(ctx, tx, objectID, ifRevision); err != nil {
			return err
		}
		ids, err := childIDs(ctx, tx, `SELECT id FROM attributes WHERE object_id = ? ORDER BY rowid`, objectID)
		if err != nil {
			return err
		}
		if err := applyAttributePlan(ctx, tx, objectID, reconcile.Attributes(ids, submitted)); err != nil {
			return err
		}
		out, err = snapshot(ctx, tx, objectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceMethods makes the object's method set equal to submitted, the same
// way ReplaceAttributes does for attributes. Parameters of every updated
// method are deleted and recreated from the submitted list.
func (db *DB) ReplaceMethods(ctx context.Context, objectID string, submitted []models.MethodInput, ifRevision int64) (*models.ObjectDef, error) {
	var out *models.ObjectDef
	err := db.withTx(ctx, "replace methods", func(tx *sql.Tx) error {
		if err := touchObject(ctx, tx, objectID, ifRevision); err != nil {
			return err
		}
		ids, err := childIDs(ctx, tx, `SELECT id FROM methods WHERE object_id = ? ORDER BY rowid`, objectID)
		if err != nil {
			return err
		}
		if err := applyMethodPlan(ctx, tx, objectID, reconcile.Methods(ids, submitted)); err != nil {
			return err
		}
		out, err = snapshot(ctx, tx, objectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// touchObject bumps the object's revision and updated_at, enforcing the
// optional revision precondition.
func touchObject(ctx context.Context, tx *sql.Tx, objectID string, ifRevision int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE objects
		SET revision = revision + 1, updated_at = ?
		WHERE id = ? AND (? = 0 OR revision = ?)
	`, time.Now().UTC(), objectID, ifRevision, ifRevision)
	if err != nil {
		return fmt.Errorf("touch object: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch object: %w", err)
	}
	if n == 1 {
		return nil
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE id = ?`, objectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("touch object: %w", err)
	}
	return apperr.ErrConflict
}

func childIDs(ctx context.Context, tx *sql.Tx, query, objectID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("list child ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func applyAttributePlan(ctx context.Context, tx *sql.Tx, objectID string, plan reconcile.Plan[models.AttributeInput]) error {
	for _, id := range plan.Delete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE id = ? AND object_id = ?`, id, objectID); err != nil {
			return fmt.Errorf("delete attribute %s: %w", id, err)
		}
	}
	for _, a := range plan.Update {
		res, err := tx.ExecContext(ctx, `
			UPDATE attributes
			SET name = ?, type = ?, description = ?, default_value = ?, required = ?
			WHERE id = ? AND object_id = ?
		`, a.Name, a.Type, a.Description, nullString(a.DefaultValue), boolValue(a.Required), a.ID, objectID)
		if err != nil {
			return fmt.Errorf("update attribute %s: %w", a.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update attribute %s: %w", a.ID, err)
		}
		if n != 1 {
			return fmt.Errorf("update attribute %s: %w", a.ID, errForeignRow)
		}
	}
	for _, a := range plan.Create {
		if err := insertAttribute(ctx, tx, objectID, a); err != nil {
			return err
		}
	}
	return nil
}

func applyMethodPlan(ctx context.Context, tx *sql.Tx, objectID string, plan reconcile.Plan[models.MethodInput]) error {
	replaced := make([]string, 0, len(plan.Update))
	for _, m := range plan.Update {
		replaced = append(replaced, m.ID)
	}
	if err := deleteMethods(ctx, tx, objectID, plan.Delete, replaced); err != nil {
		return err
	}
	for _, m := range plan.Update {
		res, err := tx.ExecContext(ctx, `
			UPDATE methods
			SET name = ?, description = ?, visibility = ?, return_type = ?
			WHERE id = ? AND object_id = ?
		`, m.Name, m.Description, string(m.Visibility), nullString(m.ReturnType), m.ID, objectID)
		if err != nil {
			return fmt.Errorf("update method %s: %w", m.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update method %s: %w", m.ID, err)
		}
		if n != 1 {
			return fmt.Errorf("update method %s: %w", m.ID, errForeignRow)
		}
		if err := insertParameters(ctx, tx, m.ID, m.Parameters); err != nil {
			return err
		}
	}
	for _, m := range plan.Create {
		if err := insertMethod(ctx, tx, objectID, m); err != nil {
			return err
		}
	}
	return nil
}

// deleteMethods removes the parameters of every method in removed and
// replaced, then the method rows in removed.
//
// Invariant (dependents first): parameter rows are deleted before the method
// rows that own them. Foreign keys are enforced without cascade, so reversing
// the order fails the transaction.
func deleteMethods(ctx context.Context, tx *sql.Tx, objectID string, removed, replaced []string) error {
	for _, ids := range [][]string{removed, replaced} {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM parameters
				WHERE method_id IN (SELECT id FROM methods WHERE id = ? AND object_id = ?)
			`, id, objectID); err != nil {
				return fmt.Errorf("delete parameters of method %s: %w", id, err)
			}
		}
	}
	for _, id := range removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM methods WHERE id = ? AND object_id = ?`, id, objectID); err != nil {
			return fmt.Errorf("delete method %s: %w", id, err)
		}
	}
	return nil
}

func insertAttribute(ctx context.Context, tx *sql.Tx, objectID string, a models.AttributeInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO attributes (id, object_id, name, type, description, default_value, required)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), objectID, a.Name, a.Type, a.Description, nullString(a.DefaultValue), boolValue(a.Required))
	if err != nil {
		return fmt.Errorf("insert attribute %q: %w", a.Name, err)
	}
	return nil
}

func insertMethod(ctx context.Context, tx *sql.Tx, objectID string, m models.MethodInput) error {
	id := uuid.NewString()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO methods (id, object_id, name, description, visibility, return_type)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, objectID, m.Name, m.Description, string(m.Visibility), nullString(m.ReturnType))
	if err != nil {
		return fmt.Errorf("insert method %q: %w", m.Name, err)
	}
	return insertParameters(ctx, tx, id, m.Parameters)
}

func insertParameters(ctx context.Context, tx *sql.Tx, methodID string, params []models.ParameterInput) error {
	if len(params) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO parameters (id, method_id, name, type, default_value, is_optional)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare parameter insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range params {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), methodID, p.Name, p.Type, nullString(p.DefaultValue), boolValue(p.IsOptional)); err != nil {
			return fmt.Errorf("insert parameter %q: %w", p.Name, err)
		}
	}
	return nil
}
