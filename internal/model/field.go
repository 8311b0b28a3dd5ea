package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Field names a lead column. Only these values may reach a storage write.
type Field string

const (
	FieldName     Field = "name"
	FieldCompany  Field = "company"
	FieldEmail    Field = "email"
	FieldNeeds    Field = "needs"
	FieldBudget   Field = "budget"
	FieldTimeline Field = "timeline"
)

// CanonicalFields are the five keys a complete lead must carry.
var CanonicalFields = []Field{FieldName, FieldCompany, FieldEmail, FieldBudget, FieldTimeline}

// UpdatableFields is the allow-list of columns UpdateField may touch.
var UpdatableFields = []Field{FieldName, FieldCompany, FieldEmail, FieldNeeds, FieldBudget, FieldTimeline}

// StoreRequiredFields must be non-empty for a lead to be inserted.
var StoreRequiredFields = []Field{FieldName, FieldCompany, FieldNeeds, FieldBudget}

var fieldAliases = map[string]Field{
	"description": FieldNeeds,
}

// ParseField resolves a caller-supplied column name against the allow-list.
func ParseField(s string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	for _, f := range UpdatableFields {
		if string(f) == key {
			return f, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownField, "field %q", s)
}

// Column returns the storage column for the field.
func (f Field) Column() string {
	return string(f)
}

func (f Field) String() string {
	return string(f)
}
