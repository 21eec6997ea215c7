package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// CreateInstance stores a new instance of objectID. Values are checked against
// the object's attributes inside the same transaction: every required
// attribute needs a value and no value may name an unknown attribute.
func (db *DB) CreateInstance(ctx context.Context, objectID, creatorID string, in models.NewInstance) (*models.Instance, error) {
	var out *models.Instance
	err := db.withTx(ctx, "create instance", func(tx *sql.Tx) error {
		attrs, err := loadAttributes(ctx, tx, objectID)
		if err != nil {
			return err
		}
		if err := checkInstanceValues(attrs, in.Values); err != nil {
			return err
		}

		now := time.Now().UTC()
		inst := models.Instance{
			ID:         uuid.NewString(),
			ObjectID:   objectID,
			Name:       in.Name,
			CreatorID:  creatorID,
			CreatedAt:  now,
			UpdatedAt:  now,
			Attributes: []models.InstanceAttribute{},
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO instances (id, object_id, name, creator_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, inst.ID, objectID, inst.Name, creatorID, now, now); err != nil {
			return fmt.Errorf("insert instance: %w", err)
		}

		// Insert in attribute definition order so reads are stable.
		for _, a := range attrs {
			v, ok := in.Values[a.Name]
			if !ok {
				continue
			}
			ia := models.InstanceAttribute{ID: uuid.NewString(), InstanceID: inst.ID, Name: a.Name, Value: v}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO instance_attributes (id, instance_id, name, value) VALUES (?, ?, ?, ?)
			`, ia.ID, ia.InstanceID, ia.Name, ia.Value); err != nil {
				return fmt.Errorf("insert instance attribute %q: %w", a.Name, err)
			}
			inst.Attributes = append(inst.Attributes, ia)
		}
		out = &inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkInstanceValues(attrs []models.Attribute, values map[string]string) error {
	fields := make(map[string]string)
	known := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		known[a.Name] = struct{}{}
		if _, ok := values[a.Name]; a.Required && !ok {
			fields["values."+a.Name] = "required attribute is missing"
		}
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := known[name]; !ok {
			fields["values."+name] = "unknown attribute"
		}
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Message: "invalid instance data provided", Fields: fields}
	}
	return nil
}

// ListInstances returns the instances of an object with their values, oldest first.
func (db *DB) ListInstances(ctx context.Context, objectID string) ([]models.Instance, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, object_id, name, creator_id, created_at, updated_at
		FROM instances
		WHERE object_id = ?
		ORDER BY created_at, rowid
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list instances: %w", err)
	}
	defer rows.Close()

	out := []models.Instance{}
	for rows.Next() {
		var in models.Instance
		if err := rows.Scan(&in.ID, &in.ObjectID, &in.Name, &in.CreatorID, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Attributes, err = db.instanceAttributes(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Browse returns the latest instances across all objects, newest first.
func (db *DB) Browse(ctx context.Context, limit int) ([]models.BrowseItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT i.id, i.object_id, i.name, i.creator_id, i.created_at, i.updated_at,
		       o.id, o.name, o.description, o.version, o.creator_id, o.created_at, o.updated_at,
		       u.username
		FROM instances i
		JOIN objects o ON o.id = i.object_id
		JOIN users u ON u.id = i.creator_id
		ORDER BY i.created_at DESC, i.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: browse: %w", err)
	}
	defer rows.Close()

	out := []models.BrowseItem{}
	for rows.Next() {
		var b models.BrowseItem
		o := &b.ObjectDef
		if err := rows.Scan(&b.ID, &b.ObjectID, &b.Name, &b.CreatorID, &b.CreatedAt, &b.UpdatedAt,
			&o.ID, &o.Name, &o.Description, &o.Version, &o.CreatorID, &o.CreatedAt, &o.UpdatedAt,
			&b.CreatorUsername); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Attributes, err = db.instanceAttributes(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) instanceAttributes(ctx context.Context, instanceID string) ([]models.InstanceAttribute, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, instance_id, name, value FROM instance_attributes
		WHERE instance_id = ?
		ORDER BY rowid
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("catalog: instance attributes: %w", err)
	}
	defer rows.Close()

	out := []models.InstanceAttribute{}
	for rows.Next() {
		var a models.InstanceAttribute
		if err := rows.Scan(&a.ID, &a.InstanceID, &a.Name, &a.Value); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
