package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// LeadObject is the sObject name for Salesforce leads.
const LeadObject = "Lead"

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID          string `json:"Id" salesforce:"Id"`
	FirstName   string `json:"FirstName" salesforce:"FirstName"`
	LastName    string `json:"LastName" salesforce:"LastName"`
	Company     string `json:"Company" salesforce:"Company"`
	Email       string `json:"Email" salesforce:"Email"`
	Description string `json:"Description" salesforce:"Description"`
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{"Id", "FirstName", "LastName", "Company", "Email", "Description"}

// FindLeadByEmail returns the first Lead with this email, or nil.
func FindLeadByEmail(ctx context.Context, c Client, email string) (*Lead, error) {
	return findLead(ctx, c, "Email", email)
}

// FindLeadByID returns the Lead with this ID, or nil.
func FindLeadByID(ctx context.Context, c Client, id string) (*Lead, error) {
	return findLead(ctx, c, "Id", id)
}

func findLead(ctx context.Context, c Client, field, value string) (*Lead, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE %s = '%s' LIMIT 1",
		strings.Join(leadFields, ", "),
		field,
		escapeSoql(value),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find lead by %s", strings.ToLower(field)))
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// CreateLead inserts a Lead and returns its ID. Salesforce requires
// LastName and Company.
func CreateLead(ctx context.Context, c Client, fields map[string]any) (string, error) {
	for _, req := range []string{"LastName", "Company"} {
		if v, _ := fields[req].(string); v == "" {
			return "", eris.New(fmt.Sprintf("sf: lead %s is required", req))
		}
	}
	id, err := c.InsertOne(ctx, LeadObject, fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create lead")
	}
	return id, nil
}

// UpdateLead patches an existing Lead.
func UpdateLead(ctx context.Context, c Client, id string, fields map[string]any) error {
	if id == "" {
		return eris.New("sf: lead id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, LeadObject, id, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update lead %s", id))
	}
	return nil
}

// UpsertLeadByEmail updates the Lead with fields["Email"] if one exists and
// creates it otherwise. It returns the Lead ID either way.
func UpsertLeadByEmail(ctx context.Context, c Client, fields map[string]any) (string, error) {
	email, _ := fields["Email"].(string)
	if email == "" {
		return "", eris.New("sf: lead Email is required for upsert")
	}
	existing, err := FindLeadByEmail(ctx, c, email)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return CreateLead(ctx, c, fields)
	}
	if err := UpdateLead(ctx, c, existing.ID, fields); err != nil {
		return "", err
	}
	return existing.ID, nil
}

// SplitName splits a full name into Salesforce's FirstName and LastName. A
// single word becomes the LastName.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
