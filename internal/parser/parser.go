// Package parser reads and writes object definition files (YAML).
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

// Definition is the on-disk form of an object definition. Member ids are
// never stored in files; the importer matches members by name instead.
type Definition struct {
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	Attributes  []AttributeDef `yaml:"attributes,omitempty"`
	Methods     []MethodDef    `yaml:"methods,omitempty"`
}

// AttributeDef is an attribute entry of a definition file.
type AttributeDef struct {
	Name         string  `yaml:"name"`
	Type         string  `yaml:"type"`
	Description  string  `yaml:"description,omitempty"`
	DefaultValue *string `yaml:"default,omitempty"`
	Required     bool    `yaml:"required,omitempty"`
}

// MethodDef is a method entry of a definition file.
type MethodDef struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Visibility  string         `yaml:"visibility,omitempty"`
	ReturnType  *string        `yaml:"returns,omitempty"`
	Parameters  []ParameterDef `yaml:"parameters,omitempty"`
}

// ParameterDef is a method parameter entry of a definition file.
type ParameterDef struct {
	Name         string  `yaml:"name"`
	Type         string  `yaml:"type"`
	DefaultValue *string `yaml:"default,omitempty"`
	Optional     bool    `yaml:"optional,omitempty"`
}

// Parse decodes a definition file. Unknown keys are rejected so typos do not
// silently drop members. A missing visibility defaults to PUBLIC.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parser: empty definition")
		}
		return nil, fmt.Errorf("parser: decode: %w", err)
	}
	def.Name = strings.TrimSpace(def.Name)
	def.Version = strings.TrimSpace(def.Version)
	if def.Name == "" || def.Version == "" {
		return nil, errors.New("parser: name and version are required")
	}
	for i := range def.Methods {
		v := strings.ToUpper(strings.TrimSpace(def.Methods[i].Visibility))
		if v == "" {
			v = string(models.VisibilityPublic)
		}
		def.Methods[i].Visibility = v
	}
	return &def, nil
}

// NewObject converts the definition into a creation payload.
func (d *Definition) NewObject() models.NewObject {
	return models.NewObject{
		Name:        d.Name,
		Description: d.Description,
		Version:     d.Version,
		Attributes:  d.AttributeInputs(),
		Methods:     d.MethodInputs(),
	}
}

// AttributeInputs returns the attributes as a submitted list without ids.
func (d *Definition) AttributeInputs() []models.AttributeInput {
	out := make([]models.AttributeInput, len(d.Attributes))
	for i, a := range d.Attributes {
		required := a.Required
		out[i] = models.AttributeInput{
			Name:         a.Name,
			Type:         a.Type,
			Description:  a.Description,
			DefaultValue: a.DefaultValue,
			Required:     &required,
		}
	}
	return out
}

// MethodInputs returns the methods as a submitted list without ids.
func (d *Definition) MethodInputs() []models.MethodInput {
	out := make([]models.MethodInput, len(d.Methods))
	for i, m := range d.Methods {
		params := make([]models.ParameterInput, len(m.Parameters))
		for j, p := range m.Parameters {
			optional := p.Optional
			params[j] = models.ParameterInput{
				Name:         p.Name,
				Type:         p.Type,
				DefaultValue: p.DefaultValue,
				IsOptional:   &optional,
			}
		}
		out[i] = models.MethodInput{
			Name:        m.Name,
			Description: m.Description,
			Visibility:  models.Visibility(m.Visibility),
			ReturnType:  m.ReturnType,
			Parameters:  params,
		}
	}
	return out
}

// FromObject builds the file form of a stored object.
func FromObject(o *models.ObjectDef) *Definition {
	def := &Definition{Name: o.Name, Version: o.Version, Description: o.Description}
	for _, a := range o.Attributes {
		def.Attributes = append(def.Attributes, AttributeDef{
			Name:         a.Name,
			Type:         a.Type,
			Description:  a.Description,
			DefaultValue: a.DefaultValue,
			Required:     a.Required,
		})
	}
	for _, m := range o.Methods {
		md := MethodDef{
			Name:        m.Name,
			Description: m.Description,
			Visibility:  string(m.Visibility),
			ReturnType:  m.ReturnType,
		}
		for _, p := range m.Parameters {
			md.Parameters = append(md.Parameters, ParameterDef{
				Name:         p.Name,
				Type:         p.Type,
				DefaultValue: p.DefaultValue,
				Optional:     p.IsOptional,
			})
		}
		def.Methods = append(def.Methods, md)
	}
	return def
}

// Encode renders a definition as YAML with two-space indentation.
func Encode(def *Definition) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("parser: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName returns a conventional file name for a definition, e.g.
// "customer-1.0.yaml".
func FileName(name, version string) string {
	clean := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
				return r
			default:
				return '-'
			}
		}, s)
	}
	return clean(name) + "-" + clean(version) + ".yaml"
}
