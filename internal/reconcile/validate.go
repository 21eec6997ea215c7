package reconcile

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

var visibilities = []any{
	models.VisibilityPublic,
	models.VisibilityPrivate,
	models.VisibilityProtected,
}

// ValidateAttributes checks a whole submitted attribute list. Any failing
// entry rejects the batch with an *apperr.ValidationError.
func ValidateAttributes(in []models.AttributeInput) error {
	fields := make(map[string]string)
	seen := make(map[string]struct{}, len(in))
	for i := range in {
		a := &in[i]
		prefix := fmt.Sprintf("attributes[%d]", i)
		collect(fields, prefix, validation.ValidateStruct(a,
			validation.Field(&a.Name, validation.Required),
			validation.Field(&a.Type, validation.Required),
			validation.Field(&a.Required, validation.NotNil),
		))
		checkDuplicate(fields, seen, prefix, a.ID)
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Message: "invalid attribute data provided", Fields: fields}
	}
	return nil
}

// ValidateMethods checks a whole submitted method list, parameters included.
func ValidateMethods(in []models.MethodInput) error {
	fields := make(map[string]string)
	seen := make(map[string]struct{}, len(in))
	for i := range in {
		m := &in[i]
		prefix := fmt.Sprintf("methods[%d]", i)
		collect(fields, prefix, validation.ValidateStruct(m,
			validation.Field(&m.Name, validation.Required),
			validation.Field(&m.Visibility, validation.Required, validation.In(visibilities...)),
			validation.Field(&m.Parameters, validation.NotNil),
		))
		checkDuplicate(fields, seen, prefix, m.ID)
		for j := range m.Parameters {
			p := &m.Parameters[j]
			collect(fields, fmt.Sprintf("%s.parameters[%d]", prefix, j), validation.ValidateStruct(p,
				validation.Field(&p.Name, validation.Required),
				validation.Field(&p.Type, validation.Required),
				validation.Field(&p.IsOptional, validation.NotNil),
			))
		}
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Message: "invalid method data provided", Fields: fields}
	}
	return nil
}

func checkDuplicate(fields map[string]string, seen map[string]struct{}, prefix, id string) {
	if id == "" {
		return
	}
	if _, dup := seen[id]; dup {
		fields[prefix+".id"] = "duplicate id in submitted list"
		return
	}
	seen[id] = struct{}{}
}

func collect(fields map[string]string, prefix string, err error) {
	if err == nil {
		return
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for k, e := range errs {
			fields[prefix+"."+k] = e.Error()
		}
		return
	}
	fields[prefix] = err.Error()
}
