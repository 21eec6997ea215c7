package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestAttributes_UpdateDeleteCreate(t *testing.T) {
	persisted := []string{"1", "2"}
	submitted := []models.AttributeInput{
		{ID: "1", Name: "a2", Type: "string", Required: boolPtr(false)},
		{Name: "c", Type: "string", Required: boolPtr(true)},
	}

	plan := Attributes(persisted, submitted)

	assert.Equal(t, []string{"2"}, plan.Delete)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, "1", plan.Update[0].ID)
	assert.Equal(t, "a2", plan.Update[0].Name)
	require.Len(t, plan.Create, 1)
	assert.Equal(t, "c", plan.Create[0].Name)
	assert.False(t, plan.Empty())
}

func TestDiff_EmptySubmissionDeletesAll(t *testing.T) {
	plan := Attributes([]string{"1", "2", "3"}, []models.AttributeInput{})
	assert.Equal(t, []string{"1", "2", "3"}, plan.Delete)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Create)
}

func TestDiff_NothingPersisted(t *testing.T) {
	plan := Methods(nil, []models.MethodInput{{Name: "run"}, {Name: "stop"}})
	assert.Empty(t, plan.Delete)
	assert.Len(t, plan.Create, 2)
}

func TestDiff_UnknownIDStaysInUpdate(t *testing.T) {
	plan := Attributes([]string{"1"}, []models.AttributeInput{{ID: "ghost", Name: "x"}})
	assert.Equal(t, []string{"1"}, plan.Delete)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, "ghost", plan.Update[0].ID)
}

func TestDiff_NoChanges(t *testing.T) {
	assert.True(t, Attributes(nil, nil).Empty())
}

func TestValidateAttributes(t *testing.T) {
	tests := []struct {
		name    string
		in      []models.AttributeInput
		wantErr string
	}{
		{"valid", []models.AttributeInput{{Name: "id", Type: "uuid", Required: boolPtr(true)}}, ""},
		{"empty list", []models.AttributeInput{}, ""},
		{"empty name", []models.AttributeInput{
			{Name: "ok", Type: "string", Required: boolPtr(true)},
			{Name: "", Type: "string", Required: boolPtr(true)},
		}, "attributes[1].name"},
		{"empty type", []models.AttributeInput{{Name: "x", Required: boolPtr(true)}}, "attributes[0].type"},
		{"missing required flag", []models.AttributeInput{{Name: "x", Type: "int"}}, "attributes[0].required"},
		{"duplicate id", []models.AttributeInput{
			{ID: "a", Name: "x", Type: "int", Required: boolPtr(true)},
			{ID: "a", Name: "y", Type: "int", Required: boolPtr(true)},
		}, "attributes[1].id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttributes(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *apperr.ValidationError
			require.True(t, errors.As(err, &verr), "err = %v", err)
			assert.Contains(t, verr.Fields, tt.wantErr)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
		})
	}
}

func TestValidateMethods(t *testing.T) {
	valid := models.MethodInput{
		Name:       "save",
		Visibility: models.VisibilityPublic,
		Parameters: []models.ParameterInput{{Name: "force", Type: "bool", IsOptional: boolPtr(true)}},
	}
	assert.NoError(t, ValidateMethods([]models.MethodInput{valid}))

	badVisibility := valid
	badVisibility.Visibility = "INTERNAL"
	err := ValidateMethods([]models.MethodInput{badVisibility})
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "methods[0].visibility")

	badParam := valid
	badParam.Parameters = []models.ParameterInput{{Name: "", Type: "bool", IsOptional: boolPtr(false)}}
	err = ValidateMethods([]models.MethodInput{valid, badParam})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "methods[1].parameters[0].name")

	noParams := valid
	noParams.Parameters = nil
	err = ValidateMethods([]models.MethodInput{noParams})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "methods[0].parameters")
}
