// Package store is the local source of truth for leads, the identifiers CRM
// backends assigned to them, and the outbox of pushes still owed to a CRM.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
)

// OutboxFilter narrows DueOutbox. A zero Status means pending and a zero
// DueBy means now.
type OutboxFilter struct {
	Status  resilience.OutboxStatus `json:"status,omitempty"`
	Backend string                  `json:"backend,omitempty"`
	DueBy   time.Time               `json:"due_by,omitempty"`
	Limit   int                     `json:"limit,omitempty"`
}

func (f OutboxFilter) withDefaults() OutboxFilter {
	if f.Status == "" {
		f.Status = resilience.OutboxPending
	}
	if f.DueBy.IsZero() {
		f.DueBy = time.Now()
	}
	return f
}

// Store persists leads. Update and delete are keyed by name and may touch
// several rows; the store does not enforce uniqueness of name or email.
type Store interface {
	// Leads
	Insert(ctx context.Context, lead *model.Lead) error
	UpdateField(ctx context.Context, name string, field model.Field, value string) (int64, error)
	DeleteByName(ctx context.Context, name string) (int64, error)
	List(ctx context.Context) ([]model.Lead, error)
	FindByName(ctx context.Context, name string) ([]model.Lead, error)
	GetLead(ctx context.Context, id int64) (*model.Lead, error)

	// CRM links
	SaveLink(ctx context.Context, link model.CRMLink) error
	GetLink(ctx context.Context, leadID int64, backend string) (*model.CRMLink, error)

	// Outbox
	EnqueueOutbox(ctx context.Context, entry resilience.OutboxEntry) error
	DueOutbox(ctx context.Context, filter OutboxFilter) ([]resilience.OutboxEntry, error)
	UpdateOutbox(ctx context.Context, entry resilience.OutboxEntry) error
	DeleteOutbox(ctx context.Context, id string) error
	CountOutbox(ctx context.Context, status resilience.OutboxStatus) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// validateInsert enforces the columns the leads table requires.
func validateInsert(lead *model.Lead) error {
	if lead == nil {
		return eris.Wrap(model.ErrValidation, "store: nil lead")
	}
	var missing []string
	for _, f := range model.StoreRequiredFields {
		if strings.TrimSpace(lead.Get(f)) == "" {
			missing = append(missing, f.String())
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(model.ErrValidation, "store: missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// updateColumn re-checks a field against the allow-list before it is spliced
// into an UPDATE statement.
func updateColumn(field model.Field) (string, error) {
	f, err := model.ParseField(string(field))
	if err != nil || f != field {
		return "", eris.Wrapf(model.ErrUnknownField, "store: column %q is not updatable", string(field))
	}
	return f.Column(), nil
}

const leadColumns = `id, name, company, email, needs, budget, timeline, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	if err := row.Scan(&l.ID, &l.Name, &l.Company, &l.Email, &l.Needs, &l.Budget, &l.Timeline, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
