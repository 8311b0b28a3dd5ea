package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("pat-test", "appBase", "Leads", WithBaseURL(srv.URL), WithRateLimit(0))
}

func TestCreateRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appBase/Leads", r.URL.Path)
		assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		var rec Record
		require.NoError(t, json.Unmarshal(raw, &rec))
		assert.Equal(t, "Juan Pérez", rec.Fields["Name"])

		_, _ = w.Write([]byte(`{"id":"recABC","fields":{"Name":"Juan Pérez"},"createdTime":"2026-01-01T00:00:00.000Z"}`))
	})

	rec, err := client.CreateRecord(context.Background(), map[string]any{"Name": "Juan Pérez"})
	require.NoError(t, err)
	assert.Equal(t, "recABC", rec.ID)
}

func TestUpdateRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/appBase/Leads/recABC", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"recABC","fields":{"Budget":"$20000"}}`))
	})

	rec, err := client.UpdateRecord(context.Background(), "recABC", map[string]any{"Budget": "$20000"})
	require.NoError(t, err)
	assert.Equal(t, "$20000", rec.Fields["Budget"])

	_, err = client.UpdateRecord(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestGetRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":"recABC","fields":{"Company":"Empresa XYZ"}}`))
	})

	rec, err := client.GetRecord(context.Background(), "recABC")
	require.NoError(t, err)
	assert.Equal(t, "Empresa XYZ", rec.Fields["Company"])
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"unprocessable", http.StatusUnprocessableEntity},
		{"rate limited", http.StatusTooManyRequests},
		{"server error", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"type":"X"}}`))
			})

			_, err := client.GetRecord(context.Background(), "recABC")
			require.Error(t, err)
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Contains(t, se.Body, "error")
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := client.CreateRecord(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestDefaultRateLimit(t *testing.T) {
	c := NewClient("t", "b", "tbl").(*httpClient)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 5.0, float64(c.limiter.Limit()), 0.001)
}
