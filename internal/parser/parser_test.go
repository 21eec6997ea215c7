package parser

import (
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/models"
)

const customerYAML = `
name: Customer
version: "1.0"
description: A paying customer
attributes:
  - name: email
    type: string
    required: true
  - name: nickname
    type: string
    default: anon
methods:
  - name: save
    visibility: private
    returns: bool
    parameters:
      - name: force
        type: bool
        optional: true
  - name: greet
`

func TestParse_Definition(t *testing.T) {
	def, err := Parse([]byte(customerYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "Customer" || def.Version != "1.0" {
		t.Errorf("name/version = %q/%q", def.Name, def.Version)
	}
	if len(def.Attributes) != 2 || len(def.Methods) != 2 {
		t.Fatalf("attributes=%d methods=%d", len(def.Attributes), len(def.Methods))
	}
	if def.Methods[0].Visibility != "PRIVATE" {
		t.Errorf("visibility = %q, want PRIVATE", def.Methods[0].Visibility)
	}
	if def.Methods[1].Visibility != "PUBLIC" {
		t.Errorf("default visibility = %q, want PUBLIC", def.Methods[1].Visibility)
	}
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte("name: A\nversion: \"1\"\nattribtues: []\n"))
	if err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestParse_MissingNameOrVersion(t *testing.T) {
	for _, in := range []string{"version: \"1\"\n", "name: A\n", ""} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestNewObject_FlagsAreSet(t *testing.T) {
	def, err := Parse([]byte(customerYAML))
	if err != nil {
		t.Fatal(err)
	}
	obj := def.NewObject()
	for _, a := range obj.Attributes {
		if a.Required == nil {
			t.Errorf("attribute %q: Required is nil", a.Name)
		}
		if a.ID != "" {
			t.Errorf("attribute %q: unexpected id", a.Name)
		}
	}
	if !*obj.Attributes[0].Required || *obj.Attributes[1].Required {
		t.Errorf("required flags = %v, %v", *obj.Attributes[0].Required, *obj.Attributes[1].Required)
	}
	if obj.Attributes[1].DefaultValue == nil || *obj.Attributes[1].DefaultValue != "anon" {
		t.Errorf("default = %v", obj.Attributes[1].DefaultValue)
	}
	greet := obj.Methods[1]
	if greet.Parameters == nil {
		t.Error("parameters of a method without parameters must be an empty list")
	}
	save := obj.Methods[0]
	if save.ReturnType == nil || *save.ReturnType != "bool" {
		t.Errorf("return type = %v", save.ReturnType)
	}
	if p := save.Parameters[0]; p.IsOptional == nil || !*p.IsOptional {
		t.Errorf("parameter optional = %v", p.IsOptional)
	}
}

func TestEncode_RoundTripsThroughObject(t *testing.T) {
	ret := "bool"
	obj := &models.ObjectDef{
		Name: "Order", Version: "2", Description: "An order",
		Attributes: []models.Attribute{{Name: "total", Type: "decimal", Required: true}},
		Methods: []models.Method{{
			Name: "pay", Visibility: models.VisibilityProtected, ReturnType: &ret,
			Parameters: []models.Parameter{{Name: "amount", Type: "decimal"}},
		}},
	}
	data, err := Encode(FromObject(obj))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "visibility: PROTECTED") {
		t.Errorf("encoded = %s", data)
	}
	def, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Name != "Order" || len(def.Methods) != 1 || def.Methods[0].Parameters[0].Name != "amount" {
		t.Errorf("decoded = %+v", def)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("Customer Account", "1.0"); got != "customer-account-1.0.yaml" {
		t.Errorf("FileName = %q", got)
	}
}
