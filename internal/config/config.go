package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	HubSpot    HubSpotConfig    `yaml:"hubspot" mapstructure:"hubspot"`
	Airtable   AirtableConfig   `yaml:"airtable" mapstructure:"airtable"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
}

// StoreConfig configures the lead database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ExtractConfig configures lead extraction.
type ExtractConfig struct {
	// EmailDomain is the placeholder domain of derived emails.
	EmailDomain string `yaml:"email_domain" mapstructure:"email_domain"`
}

// CRMConfig selects the backends leads are pushed to.
type CRMConfig struct {
	Backends    []string `yaml:"backends" mapstructure:"backends"`
	MappingFile string   `yaml:"mapping_file" mapstructure:"mapping_file"`
}

// HubSpotConfig holds HubSpot API settings.
type HubSpotConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AirtableConfig holds Airtable API settings.
type AirtableConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseID    string  `yaml:"base_id" mapstructure:"base_id"`
	Table     string  `yaml:"table" mapstructure:"table"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce OAuth settings. Either a client secret
// (client credentials flow) or username, password and security token are
// needed alongside the client ID.
type SalesforceConfig struct {
	LoginURL      string  `yaml:"login_url" mapstructure:"login_url"`
	ClientID      string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret  string  `yaml:"client_secret" mapstructure:"client_secret"`
	Username      string  `yaml:"username" mapstructure:"username"`
	Password      string  `yaml:"password" mapstructure:"password"`
	SecurityToken string  `yaml:"security_token" mapstructure:"security_token"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// NotionConfig holds Notion API credentials and the lead database ID.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	LeadDB    string  `yaml:"lead_db" mapstructure:"lead_db"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SyncConfig configures CRM synchronization.
type SyncConfig struct {
	RemoteTimeoutSecs int           `yaml:"remote_timeout_secs" mapstructure:"remote_timeout_secs"`
	Retry             RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit           CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	Outbox            OutboxConfig  `yaml:"outbox" mapstructure:"outbox"`
}

// RetryConfig configures in-line retries of a single push.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
}

// CircuitConfig configures the per-backend circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// OutboxConfig configures the durable queue of failed pushes.
type OutboxConfig struct {
	Enabled            bool `yaml:"enabled" mapstructure:"enabled"`
	PollIntervalSecs   int  `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	BatchSize          int  `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency        int  `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts        int  `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSecs int  `yaml:"initial_backoff_secs" mapstructure:"initial_backoff_secs"`
	MaxBackoffSecs     int  `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
}

// Backends known to the CRM layer.
var knownBackends = []string{"hubspot", "airtable", "salesforce", "notion"}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is fine; variables already set are kept.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to "" so AutomaticEnv can see them.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leads.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("extract.email_domain", "example.com")
	v.SetDefault("crm.backends", []string{})
	v.SetDefault("crm.mapping_file", "")
	v.SetDefault("hubspot.api_key", "")
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit", 10.0)
	v.SetDefault("airtable.token", "")
	v.SetDefault("airtable.base_id", "")
	v.SetDefault("airtable.table", "Leads")
	v.SetDefault("airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable.rate_limit", 5.0)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.client_secret", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.password", "")
	v.SetDefault("salesforce.security_token", "")
	v.SetDefault("salesforce.rate_limit", 5.0)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.lead_db", "")
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("sync.remote_timeout_secs", 10)
	v.SetDefault("sync.retry.max_attempts", 1)
	v.SetDefault("sync.retry.initial_backoff_ms", 500)
	v.SetDefault("sync.retry.max_backoff_ms", 5000)
	v.SetDefault("sync.retry.multiplier", 2.0)
	v.SetDefault("sync.retry.jitter", 0.25)
	v.SetDefault("sync.circuit.failure_threshold", 5)
	v.SetDefault("sync.circuit.cooldown_secs", 30)
	v.SetDefault("sync.outbox.enabled", true)
	v.SetDefault("sync.outbox.poll_interval_secs", 30)
	v.SetDefault("sync.outbox.batch_size", 50)
	v.SetDefault("sync.outbox.concurrency", 4)
	v.SetDefault("sync.outbox.max_attempts", 8)
	v.SetDefault("sync.outbox.initial_backoff_secs", 30)
	v.SetDefault("sync.outbox.max_backoff_secs", 1800)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "serve" for the HTTP
// API, "sync" for commands that push to CRMs and "local" for commands that
// only touch the store.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (use sqlite or postgres)", c.Store.Driver))
	}

	switch mode {
	case "local":
	case "sync":
		errs = append(errs, c.validateSync()...)
	case "serve":
		errs = append(errs, c.validateSync()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSync() []string {
	var errs []string
	for _, b := range c.CRM.Backends {
		switch b {
		case "hubspot":
			if c.HubSpot.APIKey == "" {
				errs = append(errs, "hubspot.api_key is required")
			}
		case "airtable":
			if c.Airtable.Token == "" || c.Airtable.BaseID == "" || c.Airtable.Table == "" {
				errs = append(errs, "airtable.token, airtable.base_id and airtable.table are required")
			}
		case "salesforce":
			if c.Salesforce.ClientID == "" {
				errs = append(errs, "salesforce.client_id is required")
			}
			if c.Salesforce.ClientSecret == "" && c.Salesforce.Username == "" {
				errs = append(errs, "salesforce.client_secret or salesforce.username is required")
			}
		case "notion":
			if c.Notion.Token == "" || c.Notion.LeadDB == "" {
				errs = append(errs, "notion.token and notion.lead_db are required")
			}
		default:
			errs = append(errs, fmt.Sprintf("crm.backends: unknown backend %q (known: %s)", b, strings.Join(knownBackends, ", ")))
		}
	}
	if hasDuplicates(c.CRM.Backends) {
		errs = append(errs, "crm.backends must not repeat a backend")
	}

	if c.Sync.RemoteTimeoutSecs <= 0 {
		errs = append(errs, "sync.remote_timeout_secs must be > 0")
	}
	if c.Sync.Retry.MaxAttempts < 1 || c.Sync.Retry.MaxAttempts > 10 {
		errs = append(errs, "sync.retry.max_attempts must be between 1 and 10")
	}
	if c.Sync.Retry.Jitter < 0 || c.Sync.Retry.Jitter > 1 {
		errs = append(errs, "sync.retry.jitter must be between 0 and 1")
	}
	if c.Sync.Outbox.Enabled && c.Sync.Outbox.MaxAttempts < 1 {
		errs = append(errs, "sync.outbox.max_attempts must be >= 1")
	}
	return errs
}

func hasDuplicates(values []string) bool {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return len(slices.Compact(sorted)) != len(values)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
