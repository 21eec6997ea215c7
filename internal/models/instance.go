package models

import "time"

// Instance is a concrete realization of an object definition.
type Instance struct {
	ID         string              `json:"id"`
	ObjectID   string              `json:"objectId"`
	Name       string              `json:"name"`
	CreatorID  string              `json:"creatorId"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
	Attributes []InstanceAttribute `json:"attributes"`
}

// InstanceAttribute is one filled-in attribute value of an instance.
type InstanceAttribute struct {
	ID         string `json:"id"`
	InstanceID string `json:"instanceId"`
	Name       string `json:"name"`
	Value      string `json:"value"`
}

// BrowseItem is an instance together with the names needed to list it.
type BrowseItem struct {
	Instance
	ObjectDef       ObjectSummary `json:"objectDef"`
	CreatorUsername string        `json:"creatorUsername"`
}

// NewInstance is the payload for creating an instance.
type NewInstance struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}
