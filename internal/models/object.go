// Package models defines the domain types for Ansuz.
package models

import (
	"encoding/json"
	"time"
)

// Visibility is the access level of a method.
type Visibility string

const (
	VisibilityPublic    Visibility = "PUBLIC"
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityProtected Visibility = "PROTECTED"
)

// RelationshipType classifies a directed edge between two object definitions.
type RelationshipType string

const (
	RelationshipComposition RelationshipType = "COMPOSITION"
	RelationshipInheritance RelationshipType = "INHERITANCE"
	RelationshipAssociation RelationshipType = "ASSOCIATION"
)

// ObjectDef is the fully hydrated snapshot of an object definition.
// List fields are never nil once produced by the store.
type ObjectDef struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	Version           string         `json:"version"`
	CreatorID         string         `json:"creatorId"`
	Revision          int64          `json:"revision"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	Attributes        []Attribute    `json:"attributes"`
	Methods           []Method       `json:"methods"`
	Creator           Creator        `json:"creator"`
	FromRelationships []Relationship `json:"fromRelationships"`
	ToRelationships   []Relationship `json:"toRelationships"`
}

// ObjectSummary is the lightweight row used by listings and search.
type ObjectSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ObjectChange identifies an object in a change notification. Name, Version
// and Revision are set when the object row itself changed; they are empty
// when only something attached to it did (an instance, an incoming link).
type ObjectChange struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Revision int64  `json:"revision,omitempty"`
}

// ChangeOf returns the change notification for a freshly written object.
func ChangeOf(o *ObjectDef) ObjectChange {
	return ObjectChange{ID: o.ID, Name: o.Name, Version: o.Version, Revision: o.Revision}
}

// ObjectVersion is one version of a named object together with its creator.
type ObjectVersion struct {
	ObjectSummary
	Creator Creator `json:"creator"`
}

// Creator is the subset of a user exposed on a snapshot.
type Creator struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Attribute is a persisted attribute of an object definition.
type Attribute struct {
	ID           string  `json:"id"`
	ObjectID     string  `json:"objectId"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Description  string  `json:"description"`
	DefaultValue *string `json:"defaultValue"`
	Required     bool    `json:"required"`
}

// Method is a persisted method of an object definition.
type Method struct {
	ID          string      `json:"id"`
	ObjectID    string      `json:"objectId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Visibility  Visibility  `json:"visibility"`
	ReturnType  *string     `json:"returnType"`
	Parameters  []Parameter `json:"parameters"`
}

// Parameter is a persisted parameter of a method.
type Parameter struct {
	ID           string  `json:"id"`
	MethodID     string  `json:"methodId"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	DefaultValue *string `json:"defaultValue"`
	IsOptional   bool    `json:"isOptional"`
}

// ObjectRef names the other end of a relationship.
type ObjectRef struct {
	Name string `json:"name"`
}

// Relationship is a directed edge. Exactly one of ToObject / FromObject is set,
// depending on which side of the snapshot it was loaded for.
type Relationship struct {
	ID           string           `json:"id"`
	FromObjectID string           `json:"fromObjectId"`
	ToObjectID   string           `json:"toObjectId"`
	Type         RelationshipType `json:"type"`
	Description  string           `json:"description"`
	ToObject     *ObjectRef       `json:"toObject,omitempty"`
	FromObject   *ObjectRef       `json:"fromObject,omitempty"`
}

// User is a catalog account. Only ID and Username matter to object snapshots.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryEntry records a rename or re-description of an object definition.
type HistoryEntry struct {
	ID        string          `json:"id"`
	ObjectID  string          `json:"objectId"`
	UserID    string          `json:"userId"`
	Changes   json.RawMessage `json:"changes"`
	CreatedAt time.Time       `json:"createdAt"`
}
