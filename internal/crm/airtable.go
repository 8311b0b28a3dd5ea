package crm

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/pkg/airtable"
)

// Airtable stores leads as table records addressed by record ID.
type Airtable struct {
	client airtable.Client
	fields FieldMap
	opts   Options
}

// NewAirtable returns an Airtable adapter.
func NewAirtable(client airtable.Client, fields FieldMap, opts Options) *Airtable {
	return &Airtable{client: client, fields: fields, opts: opts}
}

func (a *Airtable) Backend() Backend        { return BackendAirtable }
func (a *Airtable) Identity() IdentityModel { return RecordID }

// CreateOrUpdateLead creates a new record. Airtable has no natural key, so
// callers holding a record ID must use UpdateLead instead.
func (a *Airtable) CreateOrUpdateLead(ctx context.Context, lead model.Lead) Result {
	rec, err := call(ctx, a.opts.Timeout, func(ctx context.Context) (*airtable.Record, error) {
		return a.client.CreateRecord(ctx, a.values(lead))
	})
	if err != nil {
		return failure(BackendAirtable, err)
	}
	zap.L().Debug("airtable: record created", zap.String("record_id", rec.ID))
	return success(BackendAirtable, rec.ID, rec.Fields)
}

// UpdateLead patches the record with nativeID.
func (a *Airtable) UpdateLead(ctx context.Context, nativeID string, lead model.Lead) Result {
	if nativeID == "" {
		return invalid(BackendAirtable, "record id is required")
	}
	rec, err := call(ctx, a.opts.Timeout, func(ctx context.Context) (*airtable.Record, error) {
		return a.client.UpdateRecord(ctx, nativeID, a.values(lead))
	})
	if err != nil {
		return failure(BackendAirtable, err)
	}
	return success(BackendAirtable, rec.ID, rec.Fields)
}

// GetLead fetches the record with nativeID.
func (a *Airtable) GetLead(ctx context.Context, nativeID string) Result {
	if nativeID == "" {
		return invalid(BackendAirtable, "record id is required")
	}
	rec, err := call(ctx, a.opts.Timeout, func(ctx context.Context) (*airtable.Record, error) {
		return a.client.GetRecord(ctx, nativeID)
	})
	if err != nil {
		return failure(BackendAirtable, err)
	}
	return success(BackendAirtable, rec.ID, rec.Fields)
}

func (a *Airtable) values(lead model.Lead) map[string]any {
	lead.Email = a.opts.emailFor(lead)
	return a.fields.Values(lead)
}
