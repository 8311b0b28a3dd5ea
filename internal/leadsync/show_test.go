package leadsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/crm"
	"github.com/sells-group/leadsync/internal/model"
)

func TestShowLead_ReadsLinkedRecords(t *testing.T) {
	hs := keyedAdapter(t, crm.BackendHubSpot)
	hs.On("CreateOrUpdateLead", mock.Anything, mock.Anything).Return(ok(crm.BackendHubSpot, ""))
	at := recordAdapter(t, crm.BackendAirtable)
	at.On("CreateOrUpdateLead", mock.Anything, mock.Anything).Return(ok(crm.BackendAirtable, "rec1")).Once()
	at.On("GetLead", mock.Anything, "rec1").Return(crm.Result{
		Backend: crm.BackendAirtable, Status: crm.StatusSuccess, NativeID: "rec1",
		Data: map[string]any{"Name": "Ana Gómez", "Budget": "€500"},
	}).Once()
	c, _ := newTestCoordinator(t, hs, at)
	ctx := context.Background()
	require.True(t, c.AddLead(ctx, fullLead()).OK())

	res := c.ShowLead(ctx, "Ana Gómez")
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "Found lead Ana Gómez and read it back from airtable.", res.Message)
	require.NotNil(t, res.Lead)
	assert.Equal(t, "Acme", res.Lead.Company)
	require.Len(t, res.Leads, 1)
	require.Len(t, res.Remote, 1)
	assert.Equal(t, "airtable", res.Remote[0].Backend)
	assert.Equal(t, "rec1", res.Remote[0].NativeID)
	assert.Equal(t, "€500", res.Remote[0].Data["Budget"])
}

func TestShowLead_RemoteFailureIsPartial(t *testing.T) {
	at := recordAdapter(t, crm.BackendAirtable)
	at.On("CreateOrUpdateLead", mock.Anything, mock.Anything).Return(ok(crm.BackendAirtable, "rec1")).Once()
	at.On("GetLead", mock.Anything, "rec1").Return(crm.Result{
		Backend: crm.BackendAirtable, Status: crm.StatusError, Message: "HTTP error: 404 Not Found", StatusCode: 404,
	}).Once()
	c, _ := newTestCoordinator(t, at)
	ctx := context.Background()
	require.True(t, c.AddLead(ctx, fullLead()).OK())

	res := c.ShowLead(ctx, "Ana Gómez")
	assert.Equal(t, model.SyncPartial, res.Status)
	assert.Equal(t, "Found lead Ana Gómez locally, but reading it from airtable (HTTP error: 404 Not Found) failed.", res.Message)
}

func TestShowLead_NoLinkSkipsBackend(t *testing.T) {
	at := recordAdapter(t, crm.BackendAirtable)
	at.On("CreateOrUpdateLead", mock.Anything, mock.Anything).Return(unavailable(crm.BackendAirtable)).Once()
	c, _ := newTestCoordinator(t, at)
	ctx := context.Background()
	require.Equal(t, model.SyncPartial, c.AddLead(ctx, fullLead()).Status)

	res := c.ShowLead(ctx, "Ana Gómez")
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "Found lead Ana Gómez.", res.Message)
	assert.Empty(t, res.Remote)
	at.AssertNotCalled(t, "GetLead", mock.Anything, mock.Anything)
}

func TestShowLead_NotFound(t *testing.T) {
	c, _ := newTestCoordinator(t)
	res := c.ShowLead(context.Background(), "Nobody")
	assert.Equal(t, model.SyncError, res.Status)
	assert.Equal(t, model.ErrorKindNotFound, res.ErrorKind)
	assert.Equal(t, "I couldn't find a lead named Nobody.", res.Message)
}
