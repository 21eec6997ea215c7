package models

// AttributeInput is one entry of a submitted attribute list. An empty ID
// marks a new attribute. Required is a pointer so a missing flag can be told
// apart from false.
type AttributeInput struct {
	ID           string  `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string  `json:"name" yaml:"name"`
	Type         string  `json:"type" yaml:"type"`
	Description  string  `json:"description" yaml:"description"`
	DefaultValue *string `json:"defaultValue" yaml:"defaultValue"`
	Required     *bool   `json:"required" yaml:"required"`
}

// MethodInput is one entry of a submitted method list.
type MethodInput struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Visibility  Visibility       `json:"visibility" yaml:"visibility"`
	ReturnType  *string          `json:"returnType" yaml:"returnType"`
	Parameters  []ParameterInput `json:"parameters" yaml:"parameters"`
}

// ParameterInput is a submitted method parameter. Its ID, if any, is ignored:
// parameters of a method are always replaced wholesale.
type ParameterInput struct {
	ID           string  `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string  `json:"name" yaml:"name"`
	Type         string  `json:"type" yaml:"type"`
	DefaultValue *string `json:"defaultValue" yaml:"defaultValue"`
	IsOptional   *bool   `json:"isOptional" yaml:"isOptional"`
}

// NewObject is the payload for creating an object definition.
type NewObject struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Version     string           `json:"version" yaml:"version"`
	CreatorID   string           `json:"-" yaml:"-"`
	Attributes  []AttributeInput `json:"attributes" yaml:"attributes"`
	Methods     []MethodInput    `json:"methods" yaml:"methods"`
}

// ObjectPatch changes the name and/or description of an object definition.
type ObjectPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// NewRelationship is the payload for linking two object definitions.
type NewRelationship struct {
	ToObjectID  string           `json:"toObjectId"`
	Type        RelationshipType `json:"type"`
	Description string           `json:"description"`
}
