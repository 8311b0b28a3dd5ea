package crm

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadsync/internal/model"
)

// FieldMap maps lead fields to a backend's property names. Unmapped fields
// are not sent.
type FieldMap map[model.Field]string

// Property is a resolved remote property and its value.
type Property struct {
	Name  string
	Field model.Field
	Value string
}

// Properties returns the mapped values of lead in field order. Empty values
// are kept so an update can clear a remote property.
func (m FieldMap) Properties(lead model.Lead) []Property {
	var props []Property
	for _, f := range model.UpdatableFields {
		name, ok := m[f]
		if !ok || name == "" {
			continue
		}
		props = append(props, Property{Name: name, Field: f, Value: lead.Get(f)})
	}
	return props
}

// Values returns the mapped properties as a name → value map.
func (m FieldMap) Values(lead model.Lead) map[string]any {
	props := m.Properties(lead)
	out := make(map[string]any, len(props))
	for _, p := range props {
		out[p.Name] = p.Value
	}
	return out
}

// Mapping holds the field map of every backend.
type Mapping map[Backend]FieldMap

// DefaultMapping returns the built-in property names.
func DefaultMapping() Mapping {
	return Mapping{
		BackendHubSpot: {
			model.FieldName:    "firstname",
			model.FieldCompany: "company",
			model.FieldNeeds:   "description",
			model.FieldBudget:  "budget",
		},
		BackendAirtable: {
			model.FieldName:     "Name",
			model.FieldCompany:  "Company",
			model.FieldEmail:    "Email",
			model.FieldNeeds:    "Needs",
			model.FieldBudget:   "Budget",
			model.FieldTimeline: "Timeline",
		},
		BackendSalesforce: {
			model.FieldCompany: "Company",
			model.FieldEmail:   "Email",
			model.FieldNeeds:   "Description",
		},
		BackendNotion: {
			model.FieldName:     "Name",
			model.FieldCompany:  "Company",
			model.FieldEmail:    "Email",
			model.FieldNeeds:    "Needs",
			model.FieldBudget:   "Budget",
			model.FieldTimeline: "Timeline",
		},
	}
}

// For returns the field map of backend, or an empty map.
func (m Mapping) For(b Backend) FieldMap {
	if fm, ok := m[b]; ok {
		return fm
	}
	return FieldMap{}
}

// LoadMapping reads property overrides from a YAML file and layers them over
// DefaultMapping. An empty path returns the defaults. The file looks like:
//
//	mapping:
//	  hubspot:
//	    needs: message
//	  salesforce:
//	    budget: Budget__c
//
// Mapping a field to "" stops it from being sent.
func LoadMapping(path string) (Mapping, error) {
	m := DefaultMapping()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "crm: read mapping %s", path)
	}

	var wrapper struct {
		Mapping map[string]map[string]string `yaml:"mapping"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "crm: parse mapping")
	}

	for backend, fields := range wrapper.Mapping {
		b := Backend(backend)
		if _, ok := m[b]; !ok {
			return nil, eris.Errorf("crm: mapping for unknown backend %q", backend)
		}
		for key, prop := range fields {
			f, err := model.ParseField(key)
			if err != nil {
				return nil, eris.Wrapf(err, "crm: mapping for %s", backend)
			}
			if prop == "" {
				delete(m[b], f)
				continue
			}
			m[b][f] = prop
		}
	}
	return m, nil
}
