package api

import (
	"github.com/starford/ansuz/internal/catalogservice"
	"github.com/starford/ansuz/internal/models"
)

// UpdateAttributesRequest is the body of PUT /objects/{objectId}/attributes.
// The list is the complete desired attribute set.
type UpdateAttributesRequest struct {
	Attributes []models.AttributeInput `json:"attributes" validate:"required"`
}

// UpdateMethodsRequest is the body of PUT /objects/{objectId}/methods.
type UpdateMethodsRequest struct {
	Methods []models.MethodInput `json:"methods" validate:"required"`
}

// CreateObjectRequest is the body of POST /objects.
type CreateObjectRequest = models.NewObject

// PatchObjectRequest is the body of PATCH /objects/{objectId}.
type PatchObjectRequest = models.ObjectPatch

// CreateRelationshipRequest is the body of POST /objects/{objectId}/relationships.
type CreateRelationshipRequest = models.NewRelationship

// CreateInstanceRequest is the body of POST /objects/{objectId}/instances.
type CreateInstanceRequest = models.NewInstance

// ObjectResponse wraps a single object snapshot.
type ObjectResponse struct {
	Object *models.ObjectDef `json:"object" validate:"required"`
}

// VersionsResponse lists the versions of an object name.
type VersionsResponse struct {
	Objects []models.ObjectVersion `json:"objects" validate:"required"`
}

// HistoryResponse wraps the change log of an object.
type HistoryResponse struct {
	History []models.HistoryEntry `json:"history" validate:"required"`
}

// InstanceResponse wraps a single instance.
type InstanceResponse struct {
	Instance *models.Instance `json:"instance" validate:"required"`
}

// InstanceListResponse wraps the instances of one object.
type InstanceListResponse struct {
	Instances []models.Instance `json:"instances" validate:"required"`
}

// BrowseResponse wraps the latest instances across the catalog.
type BrowseResponse struct {
	Instances []models.BrowseItem `json:"instances" validate:"required"`
}

// SearchResponse wraps ranked search hits.
type SearchResponse struct {
	Objects []catalogservice.SearchHit `json:"objects" validate:"required"`
}

// DesignsResponse wraps the objects created by one user.
type DesignsResponse struct {
	Objects []models.ObjectSummary `json:"objects" validate:"required"`
}

// CountResponse is returned by GET /designs?count=true.
type CountResponse struct {
	Count int `json:"count" example:"3"`
}
