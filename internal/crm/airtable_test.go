package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/pkg/airtable"
)

func newAirtableAdapter(t *testing.T, handler http.HandlerFunc) *Airtable {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := airtable.NewClient("tok", "appBase", "Leads", airtable.WithBaseURL(srv.URL), airtable.WithRateLimit(0))
	return NewAirtable(client, DefaultMapping().For(BackendAirtable), Options{})
}

func TestAirtable_CreateOrUpdateLead(t *testing.T) {
	var got airtable.Record
	a := newAirtableAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appBase/Leads", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"rec123","fields":{"Name":"Juan Pérez"}}`))
	})

	assert.Equal(t, RecordID, a.Identity())
	r := a.CreateOrUpdateLead(context.Background(), juan())
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "rec123", r.NativeID)
	assert.Equal(t, "Juan Pérez", r.Data["Name"])
	assert.Equal(t, "juan.pérez@example.com", got.Fields["Email"])
	assert.Equal(t, "$10000", got.Fields["Budget"])
}

func TestAirtable_UpdateLead(t *testing.T) {
	a := newAirtableAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/appBase/Leads/rec123", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"rec123","fields":{"Budget":"$20000"}}`))
	})

	lead := juan()
	lead.Budget = "$20000"
	r := a.UpdateLead(context.Background(), "rec123", lead)
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "rec123", r.NativeID)
	assert.Equal(t, "$20000", r.Data["Budget"])
}

func TestAirtable_GetLead(t *testing.T) {
	a := newAirtableAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"id":"rec123","fields":{"Company":"Empresa XYZ"}}`))
	})

	r := a.GetLead(context.Background(), "rec123")
	require.True(t, r.OK())
	assert.Equal(t, "Empresa XYZ", r.Data["Company"])
}

func TestAirtable_MissingRecordID(t *testing.T) {
	a := newAirtableAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	assert.False(t, a.UpdateLead(context.Background(), "", juan()).OK())
	assert.False(t, a.GetLead(context.Background(), "").OK())
}

func TestAirtable_NotFound(t *testing.T) {
	a := newAirtableAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r := a.GetLead(context.Background(), "recGone")
	assert.Equal(t, "HTTP error: 404 Not Found", r.Message)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
	assert.False(t, r.Transient)
}
