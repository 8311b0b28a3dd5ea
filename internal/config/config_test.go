package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml or .env is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "example.com", cfg.Extract.EmailDomain)
	assert.Empty(t, cfg.CRM.Backends)
	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpot.BaseURL)
	assert.Equal(t, "Leads", cfg.Airtable.Table)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, 10, cfg.Sync.RemoteTimeoutSecs)
	assert.Equal(t, 1, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Sync.Circuit.FailureThreshold)
	assert.True(t, cfg.Sync.Outbox.Enabled)
	assert.Equal(t, 30, cfg.Sync.Outbox.PollIntervalSecs)
	assert.Equal(t, 8, cfg.Sync.Outbox.MaxAttempts)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
crm:
  backends: [hubspot, notion]
  mapping_file: mapping.yaml
hubspot:
  api_key: hs-key
notion:
  token: secret
  lead_db: db-1
sync:
  retry:
    max_attempts: 3
  outbox:
    enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, []string{"hubspot", "notion"}, cfg.CRM.Backends)
	assert.Equal(t, "mapping.yaml", cfg.CRM.MappingFile)
	assert.Equal(t, "hs-key", cfg.HubSpot.APIKey)
	assert.Equal(t, "db-1", cfg.Notion.LeadDB)
	assert.Equal(t, 3, cfg.Sync.Retry.MaxAttempts)
	assert.False(t, cfg.Sync.Outbox.Enabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
	require.NoError(t, cfg.Validate("serve"))
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADSYNC_SERVER_PORT", "9090")
	t.Setenv("LEADSYNC_HUBSPOT_API_KEY", "from-env")
	t.Setenv("LEADSYNC_LOG_LEVEL", "debug")
	t.Setenv("LEADSYNC_SYNC_REMOTE_TIMEOUT_SECS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.HubSpot.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Sync.RemoteTimeoutSecs)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEADSYNC_AIRTABLE_TOKEN=pat-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LEADSYNC_AIRTABLE_TOKEN") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pat-dotenv", cfg.Airtable.Token)
}

func TestLoadEnvBeatsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEADSYNC_NOTION_TOKEN=dotenv\n"), 0o644))
	t.Setenv("LEADSYNC_NOTION_TOKEN", "process")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "process", cfg.Notion.Token)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", Path: "leads.db"},
		Server: ServerConfig{Port: 8080},
		CRM:    CRMConfig{Backends: []string{"hubspot", "airtable", "salesforce", "notion"}},
		HubSpot: HubSpotConfig{
			APIKey: "hs",
		},
		Airtable:   AirtableConfig{Token: "pat", BaseID: "app1", Table: "Leads"},
		Salesforce: SalesforceConfig{ClientID: "cid", Username: "u@example.com"},
		Notion:     NotionConfig{Token: "secret", LeadDB: "db"},
		Sync: SyncConfig{
			RemoteTimeoutSecs: 10,
			Retry:             RetryConfig{MaxAttempts: 1, Jitter: 0.25},
			Outbox:            OutboxConfig{Enabled: true, MaxAttempts: 5},
		},
	}
}

func TestValidate_AllModesValid(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"local", "sync", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_Store(t *testing.T) {
	tests := []struct {
		name  string
		store StoreConfig
		want  string
	}{
		{"sqlite without path", StoreConfig{Driver: "sqlite"}, "store.path is required"},
		{"postgres without url", StoreConfig{Driver: "postgres"}, "store.database_url is required"},
		{"unknown driver", StoreConfig{Driver: "mysql"}, `store.driver "mysql" is not supported`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Store = tt.store
			err := cfg.Validate("local")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_LocalIgnoresCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.HubSpot.APIKey = ""
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate("local"))
}

func TestValidate_BackendCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"hubspot", func(c *Config) { c.HubSpot.APIKey = "" }, "hubspot.api_key is required"},
		{"airtable", func(c *Config) { c.Airtable.BaseID = "" }, "airtable.token, airtable.base_id and airtable.table are required"},
		{"salesforce client", func(c *Config) { c.Salesforce.ClientID = "" }, "salesforce.client_id is required"},
		{"salesforce auth", func(c *Config) { c.Salesforce.Username = "" }, "salesforce.client_secret or salesforce.username is required"},
		{"notion", func(c *Config) { c.Notion.LeadDB = "" }, "notion.token and notion.lead_db are required"},
		{"unknown backend", func(c *Config) { c.CRM.Backends = append(c.CRM.Backends, "pipedrive") }, `unknown backend "pipedrive"`},
		{"duplicate backend", func(c *Config) { c.CRM.Backends = []string{"hubspot", "hubspot"} }, "must not repeat"},
		{"timeout", func(c *Config) { c.Sync.RemoteTimeoutSecs = 0 }, "sync.remote_timeout_secs must be > 0"},
		{"retry attempts", func(c *Config) { c.Sync.Retry.MaxAttempts = 0 }, "sync.retry.max_attempts must be between 1 and 10"},
		{"jitter", func(c *Config) { c.Sync.Retry.Jitter = 2 }, "sync.retry.jitter must be between 0 and 1"},
		{"outbox attempts", func(c *Config) { c.Sync.Outbox.MaxAttempts = 0 }, "sync.outbox.max_attempts must be >= 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("sync")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_DisabledOutboxSkipsAttempts(t *testing.T) {
	cfg := validDefaults()
	cfg.Sync.Outbox = OutboxConfig{Enabled: false}
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidate_NoBackends(t *testing.T) {
	cfg := validDefaults()
	cfg.CRM.Backends = nil
	cfg.HubSpot = HubSpotConfig{}
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 70000
	require.Error(t, cfg.Validate("serve"))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.HubSpot.APIKey = ""
	cfg.Notion.Token = ""
	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hubspot.api_key")
	assert.Contains(t, err.Error(), "notion.token")
}

func TestInitLogger(t *testing.T) {
	orig := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(orig) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
