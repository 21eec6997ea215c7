package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Snapshot loads the full object graph: attributes, methods with parameters,
// creator, and relationships in both directions. It returns
// apperr.ErrNotFound when the object does not exist.
func (db *DB) Snapshot(ctx context.Context, id string) (*models.ObjectDef, error) {
	return snapshot(ctx, db.conn, id)
}

func snapshot(ctx context.Context, q querier, id string) (*models.ObjectDef, error) {
	var o models.ObjectDef
	err := q.QueryRowContext(ctx, `
		SELECT o.id, o.name, o.description, o.version, o.creator_id, o.revision,
		       o.created_at, o.updated_at, u.username
		FROM objects o
		JOIN users u ON u.id = o.creator_id
		WHERE o.id = ?
	`, id).Scan(&o.ID, &o.Name, &o.Description, &o.Version, &o.CreatorID, &o.Revision,
		&o.CreatedAt, &o.UpdatedAt, &o.Creator.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: load object: %w", err)
	}
	o.Creator.ID = o.CreatorID

	if o.Attributes, err = loadAttributes(ctx, q, id); err != nil {
		return nil, err
	}
	if o.Methods, err = loadMethods(ctx, q, id); err != nil {
		return nil, err
	}
	if o.FromRelationships, err = loadRelationships(ctx, q, id, true); err != nil {
		return nil, err
	}
	if o.ToRelationships, err = loadRelationships(ctx, q, id, false); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadAttributes(ctx context.Context, q querier, objectID string) ([]models.Attribute, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, object_id, name, type, description, default_value, required
		FROM attributes
		WHERE object_id = ?
		ORDER BY rowid
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load attributes: %w", err)
	}
	defer rows.Close()

	out := []models.Attribute{}
	for rows.Next() {
		var a models.Attribute
		var def sql.NullString
		if err := rows.Scan(&a.ID, &a.ObjectID, &a.Name, &a.Type, &a.Description, &def, &a.Required); err != nil {
			return nil, err
		}
		a.DefaultValue = stringPtr(def)
		out = append(out, a)
	}
	return out, rows.Err()
}

func loadMethods(ctx context.Context, q querier, objectID string) ([]models.Method, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, object_id, name, description, visibility, return_type
		FROM methods
		WHERE object_id = ?
		ORDER BY rowid
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load methods: %w", err)
	}
	defer rows.Close()

	out := []models.Method{}
	index := make(map[string]int)
	for rows.Next() {
		var m models.Method
		var ret sql.NullString
		if err := rows.Scan(&m.ID, &m.ObjectID, &m.Name, &m.Description, &m.Visibility, &ret); err != nil {
			return nil, err
		}
		m.ReturnType = stringPtr(ret)
		m.Parameters = []models.Parameter{}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	prows, err := q.QueryContext(ctx, `
		SELECT p.id, p.method_id, p.name, p.type, p.default_value, p.is_optional
		FROM parameters p
		JOIN methods m ON m.id = p.method_id
		WHERE m.object_id = ?
		ORDER BY p.rowid
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load parameters: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var p models.Parameter
		var def sql.NullString
		if err := prows.Scan(&p.ID, &p.MethodID, &p.Name, &p.Type, &def, &p.IsOptional); err != nil {
			return nil, err
		}
		p.DefaultValue = stringPtr(def)
		if i, ok := index[p.MethodID]; ok {
			out[i].Parameters = append(out[i].Parameters, p)
		}
	}
	return out, prows.Err()
}

// loadRelationships returns outgoing edges (with the target's name) when
// outgoing is true, incoming edges (with the source's name) otherwise.
func loadRelationships(ctx context.Context, q querier, objectID string, outgoing bool) ([]models.Relationship, error) {
	query := `
		SELECT r.id, r.from_object_id, r.to_object_id, r.type, r.description, o.name
		FROM relationships r
		JOIN objects o ON o.id = r.to_object_id
		WHERE r.from_object_id = ?
		ORDER BY r.rowid
	`
	if !outgoing {
		query = `
		SELECT r.id, r.from_object_id, r.to_object_id, r.type, r.description, o.name
		FROM relationships r
		JOIN objects o ON o.id = r.from_object_id
		WHERE r.to_object_id = ?
		ORDER BY r.rowid
	`
	}
	rows, err := q.QueryContext(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load relationships: %w", err)
	}
	defer rows.Close()

	out := []models.Relationship{}
	for rows.Next() {
		var r models.Relationship
		var other string
		if err := rows.Scan(&r.ID, &r.FromObjectID, &r.ToObjectID, &r.Type, &r.Description, &other); err != nil {
			return nil, err
		}
		if outgoing {
			r.ToObject = &models.ObjectRef{Name: other}
		} else {
			r.FromObject = &models.ObjectRef{Name: other}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
