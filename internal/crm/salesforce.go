package crm

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
	"github.com/sells-group/leadsync/pkg/salesforce"
)

// Salesforce upserts Lead sObjects matched on Email. The matched or created
// record ID is reported as the NativeID.
type Salesforce struct {
	client salesforce.Client
	fields FieldMap
	opts   Options
}

// NewSalesforce returns a Salesforce adapter.
func NewSalesforce(client salesforce.Client, fields FieldMap, opts Options) *Salesforce {
	return &Salesforce{client: client, fields: fields, opts: opts}
}

func (s *Salesforce) Backend() Backend        { return BackendSalesforce }
func (s *Salesforce) Identity() IdentityModel { return KeyedByEmail }

func (s *Salesforce) CreateOrUpdateLead(ctx context.Context, lead model.Lead) Result {
	lead.Email = s.opts.emailFor(lead)
	fields := s.fields.Values(lead)
	fields["Email"] = lead.Email
	first, last := salesforce.SplitName(lead.Name)
	if last == "" {
		return invalid(BackendSalesforce, "Salesforce leads need a last name")
	}
	fields["FirstName"] = first
	fields["LastName"] = last

	id, err := call(ctx, s.opts.Timeout, func(ctx context.Context) (string, error) {
		return salesforce.UpsertLeadByEmail(ctx, s.client, fields)
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return failure(BackendSalesforce, err)
		}
		return Result{
			Backend: BackendSalesforce,
			Status:  StatusError,
			Message: "Salesforce error: " + eris.Cause(err).Error(),
		}
	}
	zap.L().Debug("salesforce: lead upserted", zap.String("lead_id", id))
	return success(BackendSalesforce, id, map[string]any{"id": id})
}

// GetLead fetches the Lead with nativeID.
func (s *Salesforce) GetLead(ctx context.Context, nativeID string) Result {
	if nativeID == "" {
		return invalid(BackendSalesforce, "lead id is required")
	}
	lead, err := call(ctx, s.opts.Timeout, func(ctx context.Context) (*salesforce.Lead, error) {
		return salesforce.FindLeadByID(ctx, s.client, nativeID)
	})
	if err != nil {
		return failure(BackendSalesforce, err)
	}
	if lead == nil {
		return Result{Backend: BackendSalesforce, Status: StatusError, Message: "HTTP error: 404 Not Found", StatusCode: http.StatusNotFound}
	}
	return success(BackendSalesforce, lead.ID, map[string]any{
		"FirstName":   lead.FirstName,
		"LastName":    lead.LastName,
		"Company":     lead.Company,
		"Email":       lead.Email,
		"Description": lead.Description,
	})
}
