package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/config"
	"github.com/sells-group/leadsync/internal/crm"
	"github.com/sells-group/leadsync/internal/leadsync"
	"github.com/sells-group/leadsync/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")},
		Sync: config.SyncConfig{
			RemoteTimeoutSecs: 2,
			Retry:             config.RetryConfig{MaxAttempts: 1},
			Outbox:            config.OutboxConfig{Enabled: true, MaxAttempts: 3},
		},
	}
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = testConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	leads, err := st.List(context.Background())
	require.NoError(t, err, "schema is applied")
	assert.Empty(t, leads)
}

func TestInitStore_Unsupported(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitStore_PostgresBadURL(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "://not a url"

	_, err := initStore(context.Background())
	require.Error(t, err)
}

func TestInitAdapters_Order(t *testing.T) {
	cfg = testConfig(t)
	cfg.CRM.Backends = []string{"notion", "hubspot", "airtable"}
	cfg.HubSpot.APIKey = "hs"
	cfg.Airtable = config.AirtableConfig{Token: "pat", BaseID: "app", Table: "Leads"}
	cfg.Notion = config.NotionConfig{Token: "secret", LeadDB: "db"}

	adapters, err := initAdapters()
	require.NoError(t, err)
	require.Len(t, adapters, 3)
	assert.Equal(t, crm.BackendNotion, adapters[0].Backend())
	assert.Equal(t, crm.BackendHubSpot, adapters[1].Backend())
	assert.Equal(t, crm.BackendAirtable, adapters[2].Backend())
	assert.Equal(t, crm.RecordID, adapters[2].Identity())
}

func TestInitAdapters_Unknown(t *testing.T) {
	cfg = testConfig(t)
	cfg.CRM.Backends = []string{"pipedrive"}

	_, err := initAdapters()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown crm backend")
}

func TestInitAdapters_SalesforceNeedsClientID(t *testing.T) {
	cfg = testConfig(t)
	cfg.CRM.Backends = []string{"salesforce"}

	_, err := initAdapters()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init salesforce")
}

func TestInitAdapters_BadMappingFile(t *testing.T) {
	cfg = testConfig(t)
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mapping:\n  pipedrive:\n    name: Name\n"), 0o644))
	cfg.CRM.MappingFile = path

	_, err := initAdapters()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestCoordinatorOptions(t *testing.T) {
	cfg = testConfig(t)
	cfg.Extract.EmailDomain = "leads.test"
	cfg.Sync.Retry = config.RetryConfig{MaxAttempts: 3, InitialBackoffMs: 100, MaxBackoffMs: 1000, Multiplier: 2}
	cfg.Sync.Circuit = config.CircuitConfig{FailureThreshold: 7, CooldownSecs: 60}
	cfg.Sync.Outbox = config.OutboxConfig{Enabled: false, MaxAttempts: 4, InitialBackoffSecs: 10, MaxBackoffSecs: 600}

	opts := coordinatorOptions()
	assert.Equal(t, "leads.test", opts.EmailDomain)
	assert.Equal(t, 3, opts.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, opts.Retry.InitialBackoff)
	assert.Equal(t, 7, opts.Breaker.FailureThreshold)
	assert.Equal(t, time.Minute, opts.Breaker.Cooldown)
	assert.NotNil(t, opts.Breaker.OnStateChange)
	assert.Equal(t, 4, opts.OutboxMaxAttempts)
	assert.Equal(t, 10*time.Second, opts.OutboxBackoff.InitialBackoff)
	assert.True(t, opts.DisableOutbox)
}

func TestInitSync_LocalOnly(t *testing.T) {
	cfg = testConfig(t)
	cfg.CRM.Backends = []string{"hubspot"}

	env, err := initSync(context.Background(), false)
	require.NoError(t, err)
	defer env.Close()

	assert.Empty(t, env.Coord.Backends(), "adapters are skipped for local commands")
	require.NotNil(t, env.Relay)
}

func TestNewServer_RoutesToCoordinator(t *testing.T) {
	cfg = testConfig(t)
	env, err := initSync(context.Background(), false)
	require.NoError(t, err)
	defer env.Close()

	srv := newServer(0, env.Coord, env.Relay)
	res := env.Coord.AddLead(context.Background(), model.Lead{
		Name: "Ana Gómez", Company: "Acme", Needs: "ERP", Budget: "€500", Timeline: "Q3",
	})
	require.True(t, res.OK())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/leads", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Ana Gómez")
}

func TestRunServer_ShutsDownOnCancel(t *testing.T) {
	cfg = testConfig(t)
	env, err := initSync(context.Background(), false)
	require.NoError(t, err)
	defer env.Close()

	srv := newServer(0, env.Coord, nil)
	srv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRelayOptions(t *testing.T) {
	cfg = testConfig(t)
	cfg.Sync.Outbox.PollIntervalSecs = 5
	cfg.Sync.Outbox.BatchSize = 20
	cfg.Sync.Outbox.Concurrency = 2

	assert.Equal(t, leadsync.RelayOptions{PollInterval: 5 * time.Second, BatchSize: 20, Concurrency: 2}, relayOptions())
}
