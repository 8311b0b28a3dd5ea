package crm

import (
	"context"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/pkg/notion"
)

// Notion keeps leads as pages of a database, addressed by page ID.
type Notion struct {
	client     notion.Client
	databaseID string
	fields     FieldMap
	opts       Options
}

// NewNotion returns a Notion adapter writing to databaseID.
func NewNotion(client notion.Client, databaseID string, fields FieldMap, opts Options) *Notion {
	return &Notion{client: client, databaseID: databaseID, fields: fields, opts: opts}
}

func (n *Notion) Backend() Backend        { return BackendNotion }
func (n *Notion) Identity() IdentityModel { return RecordID }

// CreateOrUpdateLead updates the page whose email property matches the lead
// and creates one otherwise.
func (n *Notion) CreateOrUpdateLead(ctx context.Context, lead model.Lead) Result {
	lead.Email = n.opts.emailFor(lead)
	values := n.values(lead)

	id, err := call(ctx, n.opts.Timeout, func(ctx context.Context) (string, error) {
		if prop, ok := n.fields[model.FieldEmail]; ok && prop != "" {
			page, err := notion.FindPageByText(ctx, n.client, n.databaseID, prop, lead.Email)
			if err != nil {
				return "", err
			}
			if page != nil {
				return string(page.ID), notion.UpdateDatabasePage(ctx, n.client, string(page.ID), values)
			}
		}
		return notion.CreateDatabasePage(ctx, n.client, n.databaseID, values)
	})
	if err != nil {
		return failure(BackendNotion, err)
	}
	zap.L().Debug("notion: lead page written", zap.String("page_id", id))
	return success(BackendNotion, id, nil)
}

// UpdateLead overwrites the mapped properties of page nativeID.
func (n *Notion) UpdateLead(ctx context.Context, nativeID string, lead model.Lead) Result {
	if nativeID == "" {
		return invalid(BackendNotion, "page id is required")
	}
	lead.Email = n.opts.emailFor(lead)
	values := n.values(lead)
	_, err := call(ctx, n.opts.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, notion.UpdateDatabasePage(ctx, n.client, nativeID, values)
	})
	if err != nil {
		return failure(BackendNotion, err)
	}
	return success(BackendNotion, nativeID, nil)
}

// GetLead reads page nativeID back as mapped field values.
func (n *Notion) GetLead(ctx context.Context, nativeID string) Result {
	if nativeID == "" {
		return invalid(BackendNotion, "page id is required")
	}
	page, err := call(ctx, n.opts.Timeout, func(ctx context.Context) (*notionapi.Page, error) {
		return n.client.GetPage(ctx, nativeID)
	})
	if err != nil {
		return failure(BackendNotion, err)
	}
	data := make(map[string]any, len(n.fields))
	for _, prop := range n.fields {
		data[prop] = notion.PropertyText(page, prop)
	}
	return success(BackendNotion, string(page.ID), data)
}

func (n *Notion) values(lead model.Lead) []notion.Value {
	props := n.fields.Properties(lead)
	values := make([]notion.Value, 0, len(props))
	for _, p := range props {
		values = append(values, notion.Value{Property: p.Name, Text: p.Value, Title: p.Field == model.FieldName})
	}
	return values
}
