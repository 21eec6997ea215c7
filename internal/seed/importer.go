// Package seed imports object definition files from a directory into the
// catalog and keeps them in sync while the server runs.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/catalogservice"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Import outcomes reported by ImportFile.
const (
	KindCreated   = "created"
	KindUpdated   = "updated"
	KindUnchanged = "unchanged"
)

// Result summarizes a Sync pass.
type Result struct {
	Created   int
	Updated   int
	Unchanged int
	Failed    int
}

// Importer applies definition files through the catalog service, so seeded
// objects go through the same validation, authorization and writer as API
// requests. Every seeded object is owned by the configured creator.
type Importer struct {
	store   catalog.Store
	svc     *catalogservice.Service
	files   storage.Provider
	creator string
	logger  *slog.Logger
}

// NewImporter creates an Importer. creator is the username that owns seeded
// objects; it is created on first use.
func NewImporter(store catalog.Store, svc *catalogservice.Service, files storage.Provider, creator string, logger *slog.Logger) *Importer {
	return &Importer{store: store, svc: svc, files: files, creator: creator, logger: logger}
}

// Sync imports every definition file whose content changed since the last
// import. A failing file is logged and skipped; the pass continues.
func (im *Importer) Sync(ctx context.Context) (Result, error) {
	var res Result
	files, err := im.files.List("")
	if err != nil {
		return res, err
	}
	known, err := im.store.SeedChecksums(ctx)
	if err != nil {
		return res, err
	}

	for _, f := range files {
		if known[f.Path] == f.Checksum {
			res.Unchanged++
			continue
		}
		data, err := im.files.Read(f.Path)
		if err != nil {
			im.logger.Warn("seed: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		kind, err := im.ImportFile(ctx, f.Path, data)
		if err != nil {
			im.logger.Warn("seed: import failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		im.logger.Debug("seed: imported", slog.String("path", f.Path), slog.String("op", kind))
		switch kind {
		case KindCreated:
			res.Created++
		case KindUpdated:
			res.Updated++
		}
	}
	return res, nil
}

// SyncFile imports a single file when its checksum differs from the one
// recorded at the last import.
func (im *Importer) SyncFile(ctx context.Context, path string) (string, error) {
	data, err := im.files.Read(path)
	if err != nil {
		return "", err
	}
	known, err := im.store.SeedChecksums(ctx)
	if err != nil {
		return "", err
	}
	if known[path] == storage.Checksum(data) {
		return KindUnchanged, nil
	}
	return im.ImportFile(ctx, path, data)
}

// ImportFile creates or reconciles the object described by data and records
// the file checksum.
//
// An object with the same (name, version) is updated in place: attributes and
// methods are matched to the persisted ones by name so unchanged members keep
// their ids, and members missing from the file are deleted.
func (im *Importer) ImportFile(ctx context.Context, path string, data []byte) (string, error) {
	def, err := parser.Parse(data)
	if err != nil {
		return "", err
	}
	owner, err := im.store.EnsureUser(ctx, im.creator)
	if err != nil {
		return "", fmt.Errorf("seed: creator: %w", err)
	}

	kind := KindUpdated
	existing, err := im.store.FindObject(ctx, def.Name, def.Version)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if _, err := im.svc.CreateObject(ctx, owner.ID, def.NewObject()); err != nil {
			return "", err
		}
		kind = KindCreated
	case err != nil:
		return "", err
	default:
		if err := im.reconcile(ctx, owner.ID, existing.ID, def); err != nil {
			return "", err
		}
	}

	if err := im.store.PutSeedChecksum(ctx, path, storage.Checksum(data)); err != nil {
		return "", err
	}
	return kind, nil
}

func (im *Importer) reconcile(ctx context.Context, ownerID, objectID string, def *parser.Definition) error {
	snap, err := im.store.Snapshot(ctx, objectID)
	if err != nil {
		return err
	}
	if snap.Description != def.Description {
		desc := def.Description
		if _, err := im.svc.PatchObject(ctx, ownerID, objectID, models.ObjectPatch{Description: &desc}, 0); err != nil {
			return err
		}
	}

	attrs := def.AttributeInputs()
	byName := idsByName(snap.Attributes, func(a models.Attribute) string { return a.Name }, func(a models.Attribute) string { return a.ID })
	for i := range attrs {
		attrs[i].ID = byName.take(attrs[i].Name)
	}
	if _, err := im.svc.UpdateAttributes(ctx, ownerID, objectID, attrs, 0); err != nil {
		return err
	}

	methods := def.MethodInputs()
	byName = idsByName(snap.Methods, func(m models.Method) string { return m.Name }, func(m models.Method) string { return m.ID })
	for i := range methods {
		methods[i].ID = byName.take(methods[i].Name)
	}
	_, err = im.svc.UpdateMethods(ctx, ownerID, objectID, methods, 0)
	return err
}

// nameIndex hands out persisted ids by member name, each id at most once, so
// repeated names in a file map to distinct rows.
type nameIndex map[string][]string

func idsByName[T any](items []T, name, id func(T) string) nameIndex {
	idx := make(nameIndex, len(items))
	for _, it := range items {
		idx[name(it)] = append(idx[name(it)], id(it))
	}
	return idx
}

func (n nameIndex) take(name string) string {
	ids := n[name]
	if len(ids) == 0 {
		return ""
	}
	n[name] = ids[1:]
	return ids[0]
}
