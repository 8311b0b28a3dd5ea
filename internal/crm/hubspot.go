package crm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/pkg/hubspot"
)

// Options are shared by all adapters.
type Options struct {
	// Timeout bounds each remote call. Zero means DefaultTimeout.
	Timeout time.Duration
	// EmailDomain is used to derive an email for leads without one.
	EmailDomain string
}

func (o Options) emailFor(lead model.Lead) string {
	if lead.Email != "" {
		return lead.Email
	}
	domain := o.EmailDomain
	if domain == "" {
		domain = model.DefaultEmailDomain
	}
	return model.DeriveEmail(lead.Name, domain)
}

// HubSpot upserts contacts keyed by email.
type HubSpot struct {
	client hubspot.Client
	fields FieldMap
	opts   Options
}

// NewHubSpot returns a HubSpot adapter.
func NewHubSpot(client hubspot.Client, fields FieldMap, opts Options) *HubSpot {
	return &HubSpot{client: client, fields: fields, opts: opts}
}

func (h *HubSpot) Backend() Backend        { return BackendHubSpot }
func (h *HubSpot) Identity() IdentityModel { return KeyedByEmail }

// CreateOrUpdateLead posts the lead to the createOrUpdate endpoint. The same
// email always addresses the same contact, so repeated pushes are idempotent.
func (h *HubSpot) CreateOrUpdateLead(ctx context.Context, lead model.Lead) Result {
	email := h.opts.emailFor(lead)

	var props []hubspot.Property
	for _, p := range h.fields.Properties(lead) {
		props = append(props, hubspot.Property{Property: p.Name, Value: p.Value})
	}

	resp, err := call(ctx, h.opts.Timeout, func(ctx context.Context) (*hubspot.ContactResponse, error) {
		return h.client.CreateOrUpdateContact(ctx, email, props)
	})
	if err != nil {
		return failure(BackendHubSpot, err)
	}

	zap.L().Debug("hubspot: contact upserted",
		zap.String("email", email),
		zap.Int64("vid", resp.VID),
		zap.Bool("is_new", resp.IsNew),
	)
	return success(BackendHubSpot, "", resp.Raw)
}
