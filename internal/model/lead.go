package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultEmailDomain is the placeholder domain used for derived emails.
const DefaultEmailDomain = "example.com"

// Lead is a prospective customer captured from conversation.
type Lead struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Needs     string    `json:"needs"`
	Budget    string    `json:"budget"`
	Timeline  string    `json:"timeline"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Get returns the value of a single field.
func (l Lead) Get(f Field) string {
	switch f {
	case FieldName:
		return l.Name
	case FieldCompany:
		return l.Company
	case FieldEmail:
		return l.Email
	case FieldNeeds:
		return l.Needs
	case FieldBudget:
		return l.Budget
	case FieldTimeline:
		return l.Timeline
	}
	return ""
}

// Set assigns a single field. Unknown fields are ignored.
func (l *Lead) Set(f Field, value string) {
	switch f {
	case FieldName:
		l.Name = value
	case FieldCompany:
		l.Company = value
	case FieldEmail:
		l.Email = value
	case FieldNeeds:
		l.Needs = value
	case FieldBudget:
		l.Budget = value
	case FieldTimeline:
		l.Timeline = value
	}
}

// Missing returns the canonical fields that are empty.
func (l Lead) Missing() []Field {
	var missing []Field
	for _, f := range CanonicalFields {
		if strings.TrimSpace(l.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Display renders the lead as a single line suitable for reading back to a user.
func (l Lead) Display() string {
	var b strings.Builder
	b.WriteString(l.Name)
	if l.Company != "" {
		fmt.Fprintf(&b, " (%s)", l.Company)
	}
	if l.Email != "" {
		fmt.Fprintf(&b, " <%s>", l.Email)
	}
	var parts []string
	if l.Budget != "" {
		parts = append(parts, "budget "+l.Budget)
	}
	if l.Timeline != "" {
		parts = append(parts, "timeline "+l.Timeline)
	}
	if len(parts) > 0 {
		b.WriteString(" " + strings.Join(parts, ", "))
	}
	if l.Needs != "" {
		b.WriteString(": " + l.Needs)
	}
	return b.String()
}

var lower = cases.Lower(language.Und)

// DeriveEmail builds a stable placeholder email from a lead name: the name is
// lower-cased, every whitespace run becomes a single dot, and the placeholder
// domain is appended. An empty domain falls back to DefaultEmailDomain.
func DeriveEmail(name, domain string) string {
	if domain == "" {
		domain = DefaultEmailDomain
	}
	local := strings.Join(strings.FieldsFunc(lower.String(strings.TrimSpace(name)), unicode.IsSpace), ".")
	return local + "@" + domain
}
