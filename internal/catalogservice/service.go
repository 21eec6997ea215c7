// Package catalogservice orchestrates catalog requests: payload validation,
// existence and ownership checks, the store call, and change notification.
package catalogservice

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/authz"
	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/fuzzy"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/reconcile"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	browseLimit        = 100
)

// Event kinds passed to a Notifier.
const (
	EventCreated = "created"
	EventUpdated = "updated"
)

// Notifier receives a notification after every committed object change.
type Notifier interface {
	PublishObjectEvent(kind string, change models.ObjectChange)
}

// SearchHit is one ranked search result.
type SearchHit struct {
	models.ObjectSummary
	Score int `json:"score"`
}

// Service coordinates validation, authorization and the catalog store.
type Service struct {
	store  catalog.Store
	notify Notifier
}

// NewService creates a new catalog service. notify may be nil.
func NewService(store catalog.Store, notify Notifier) *Service {
	return &Service{store: store, notify: notify}
}

// GetObject returns the full snapshot of an object.
func (s *Service) GetObject(ctx context.Context, id string) (*models.ObjectDef, error) {
	return s.store.Snapshot(ctx, id)
}

// CreateObject validates and stores a new object definition owned by callerID.
func (s *Service) CreateObject(ctx context.Context, callerID string, in models.NewObject) (*models.ObjectDef, error) {
	if callerID == "" {
		return nil, apperr.ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Version = strings.TrimSpace(in.Version)
	in.Attributes = nonNilSlice(in.Attributes)
	in.Methods = nonNilSlice(in.Methods)

	fields := make(map[string]string)
	mergeFields(fields, validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Version, validation.Required),
	))
	// Members of a new object cannot reference persisted rows.
	for i := range in.Attributes {
		in.Attributes[i].ID = ""
	}
	for i := range in.Methods {
		in.Methods[i].ID = ""
		in.Methods[i].Parameters = nonNilSlice(in.Methods[i].Parameters)
	}
	mergeFields(fields, reconcile.ValidateAttributes(in.Attributes))
	mergeFields(fields, reconcile.ValidateMethods(in.Methods))
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Message: "invalid object data provided", Fields: fields}
	}

	in.CreatorID = callerID
	obj, err := s.store.CreateObject(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publish(EventCreated, models.ChangeOf(obj))
	return obj, nil
}

// PatchObject renames and/or re-describes an object. Only its creator may do so.
func (s *Service) PatchObject(ctx context.Context, callerID, id string, patch models.ObjectPatch, ifRevision int64) (*models.ObjectDef, error) {
	if patch.Name == nil && patch.Description == nil {
		return nil, apperr.NewValidation("name or description is required")
	}
	if err := validation.ValidateStruct(&patch,
		validation.Field(&patch.Name, validation.NilOrNotEmpty, validation.RuneLength(1, 100)),
		validation.Field(&patch.Description, validation.NilOrNotEmpty),
	); err != nil {
		fields := make(map[string]string)
		mergeFields(fields, err)
		return nil, &apperr.ValidationError{Message: "invalid object data provided", Fields: fields}
	}
	if err := s.authorizeOwner(ctx, callerID, id); err != nil {
		return nil, err
	}
	obj, err := s.store.PatchObject(ctx, id, callerID, patch, ifRevision)
	if err != nil {
		return nil, err
	}
	s.publish(EventUpdated, models.ChangeOf(obj))
	return obj, nil
}

// UpdateAttributes replaces the attribute set of an object with submitted.
//
// The whole batch is validated before any store access; then the object must
// exist and the caller must be its creator.
func (s *Service) UpdateAttributes(ctx context.Context, callerID, objectID string, submitted []models.AttributeInput, ifRevision int64) (*models.ObjectDef, error) {
	if err := reconcile.ValidateAttributes(submitted); err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, callerID, objectID); err != nil {
		return nil, err
	}
	obj, err := s.store.ReplaceAttributes(ctx, objectID, submitted, ifRevision)
	if err != nil {
		return nil, err
	}
	s.publish(EventUpdated, models.ChangeOf(obj))
	return obj, nil
}

// UpdateMethods replaces the method set of an object with submitted, the same
// way UpdateAttributes does.
func (s *Service) UpdateMethods(ctx context.Context, callerID, objectID string, submitted []models.MethodInput, ifRevision int64) (*models.ObjectDef, error) {
	if err := reconcile.ValidateMethods(submitted); err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, callerID, objectID); err != nil {
		return nil, err
	}
	obj, err := s.store.ReplaceMethods(ctx, objectID, submitted, ifRevision)
	if err != nil {
		return nil, err
	}
	s.publish(EventUpdated, models.ChangeOf(obj))
	return obj, nil
}

var relationshipTypes = []any{
	models.RelationshipComposition,
	models.RelationshipInheritance,
	models.RelationshipAssociation,
}

// CreateRelationship links the object fromID to another object.
func (s *Service) CreateRelationship(ctx context.Context, callerID, fromID string, in models.NewRelationship) (*models.ObjectDef, error) {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.ToObjectID, validation.Required),
		validation.Field(&in.Type, validation.Required, validation.In(relationshipTypes...)),
	); err != nil {
		fields := make(map[string]string)
		mergeFields(fields, err)
		return nil, &apperr.ValidationError{Message: "invalid relationship data provided", Fields: fields}
	}
	if err := s.authorizeOwner(ctx, callerID, fromID); err != nil {
		return nil, err
	}
	obj, err := s.store.CreateRelationship(ctx, fromID, in)
	if err != nil {
		return nil, err
	}
	s.publish(EventUpdated, models.ChangeOf(obj))
	s.publish(EventUpdated, models.ObjectChange{ID: in.ToObjectID})
	return obj, nil
}

// VersionsByName lists every version of the objects with the given name,
// case-insensitively. No match is ErrNotFound.
func (s *Service) VersionsByName(ctx context.Context, name string) ([]models.ObjectVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.NewValidation("name is required")
	}
	versions, err := s.store.VersionsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, apperr.ErrNotFound
	}
	return versions, nil
}

// History returns the change log of an existing object.
func (s *Service) History(ctx context.Context, objectID string) ([]models.HistoryEntry, error) {
	if _, err := s.store.ObjectOwner(ctx, objectID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, objectID)
}

// CreateInstance creates an instance of an existing object. Any identified
// caller may instantiate any object.
func (s *Service) CreateInstance(ctx context.Context, callerID, objectID string, in models.NewInstance) (*models.Instance, error) {
	if callerID == "" {
		return nil, apperr.ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 100)),
	); err != nil {
		fields := make(map[string]string)
		mergeFields(fields, err)
		return nil, &apperr.ValidationError{Message: "invalid instance data provided", Fields: fields}
	}
	if in.Values == nil {
		in.Values = map[string]string{}
	}
	if _, err := s.store.ObjectOwner(ctx, objectID); err != nil {
		return nil, err
	}
	inst, err := s.store.CreateInstance(ctx, objectID, callerID, in)
	if err != nil {
		return nil, err
	}
	s.publish(EventUpdated, models.ObjectChange{ID: objectID})
	return inst, nil
}

// ListInstances returns the instances of an existing object.
func (s *Service) ListInstances(ctx context.Context, objectID string) ([]models.Instance, error) {
	if _, err := s.store.ObjectOwner(ctx, objectID); err != nil {
		return nil, err
	}
	return s.store.ListInstances(ctx, objectID)
}

// Search ranks object names against query. limit <= 0 selects the default.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	all, err := s.store.Summaries(ctx)
	if err != nil {
		return nil, err
	}
	ranked := fuzzy.Rank(query, all, func(o models.ObjectSummary) string { return o.Name })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	hits := make([]SearchHit, len(ranked))
	for i, m := range ranked {
		hits[i] = SearchHit{ObjectSummary: m.Item, Score: m.Score}
	}
	return hits, nil
}

// ListDesigns returns the objects created by userID.
func (s *Service) ListDesigns(ctx context.Context, userID string) ([]models.ObjectSummary, error) {
	return s.store.ListByCreator(ctx, userID)
}

// CountDesigns returns how many objects userID has created.
func (s *Service) CountDesigns(ctx context.Context, userID string) (int, error) {
	return s.store.CountByCreator(ctx, userID)
}

// Browse returns the latest instances across the catalog.
func (s *Service) Browse(ctx context.Context) ([]models.BrowseItem, error) {
	return s.store.Browse(ctx, browseLimit)
}

// authorizeOwner returns apperr.ErrNotFound for a missing object and
// apperr.ErrForbidden when callerID is not its creator.
func (s *Service) authorizeOwner(ctx context.Context, callerID, objectID string) error {
	owner, err := s.store.ObjectOwner(ctx, objectID)
	if err != nil {
		return err
	}
	return authz.Check(callerID, owner)
}

func (s *Service) publish(kind string, change models.ObjectChange) {
	if s.notify != nil {
		s.notify.PublishObjectEvent(kind, change)
	}
}

// mergeFields copies the field reasons of a validation failure into fields.
func mergeFields(fields map[string]string, err error) {
	if err == nil {
		return
	}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		for k, v := range verr.Fields {
			fields[k] = v
		}
		return
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for k, e := range errs {
			fields[k] = e.Error()
		}
		return
	}
	fields["_"] = err.Error()
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
