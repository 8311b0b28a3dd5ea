package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/crm"
	"github.com/sells-group/leadsync/internal/leadsync"
	"github.com/sells-group/leadsync/internal/resilience"
	"github.com/sells-group/leadsync/internal/store"
	"github.com/sells-group/leadsync/pkg/airtable"
	"github.com/sells-group/leadsync/pkg/hubspot"
	"github.com/sells-group/leadsync/pkg/notion"
	"github.com/sells-group/leadsync/pkg/salesforce"
)

// initStore opens the configured store and applies the schema.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "leads.db"
		}
		st, err = store.NewSQLite(path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// initAdapters builds one adapter per enabled backend, in configured order.
func initAdapters() ([]crm.Adapter, error) {
	mapping, err := crm.LoadMapping(cfg.CRM.MappingFile)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Sync.RemoteTimeoutSecs) * time.Second
	opts := crm.Options{Timeout: timeout, EmailDomain: cfg.Extract.EmailDomain}

	adapters := make([]crm.Adapter, 0, len(cfg.CRM.Backends))
	for _, name := range cfg.CRM.Backends {
		b := crm.Backend(name)
		switch b {
		case crm.BackendHubSpot:
			client := hubspot.NewClient(cfg.HubSpot.APIKey,
				hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
				hubspot.WithRateLimit(cfg.HubSpot.RateLimit),
			)
			adapters = append(adapters, crm.NewHubSpot(client, mapping.For(b), opts))
		case crm.BackendAirtable:
			client := airtable.NewClient(cfg.Airtable.Token, cfg.Airtable.BaseID, cfg.Airtable.Table,
				airtable.WithBaseURL(cfg.Airtable.BaseURL),
				airtable.WithRateLimit(cfg.Airtable.RateLimit),
			)
			adapters = append(adapters, crm.NewAirtable(client, mapping.For(b), opts))
		case crm.BackendSalesforce:
			client, err := salesforce.Connect(salesforce.Creds{
				LoginURL:      cfg.Salesforce.LoginURL,
				ClientID:      cfg.Salesforce.ClientID,
				ClientSecret:  cfg.Salesforce.ClientSecret,
				Username:      cfg.Salesforce.Username,
				Password:      cfg.Salesforce.Password,
				SecurityToken: cfg.Salesforce.SecurityToken,
			}, salesforce.WithRateLimit(cfg.Salesforce.RateLimit))
			if err != nil {
				return nil, eris.Wrap(err, "init salesforce")
			}
			adapters = append(adapters, crm.NewSalesforce(client, mapping.For(b), opts))
		case crm.BackendNotion:
			client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
			adapters = append(adapters, crm.NewNotion(client, cfg.Notion.LeadDB, mapping.For(b), opts))
		default:
			return nil, eris.Errorf("unknown crm backend: %s", name)
		}
	}
	return adapters, nil
}

func coordinatorOptions() leadsync.Options {
	out := cfg.Sync.Outbox
	breaker := resilience.FromBreakerConfig(cfg.Sync.Circuit.FailureThreshold, cfg.Sync.Circuit.CooldownSecs)
	breaker.OnStateChange = func(backend string, from, to resilience.BreakerState) {
		zap.L().Warn("circuit breaker state change",
			zap.String("backend", backend),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return leadsync.Options{
		EmailDomain: cfg.Extract.EmailDomain,
		Retry: resilience.FromRetryConfig(
			cfg.Sync.Retry.MaxAttempts,
			cfg.Sync.Retry.InitialBackoffMs,
			cfg.Sync.Retry.MaxBackoffMs,
			cfg.Sync.Retry.Multiplier,
			cfg.Sync.Retry.Jitter,
		),
		Breaker:           breaker,
		OutboxMaxAttempts: out.MaxAttempts,
		OutboxBackoff: resilience.RetryPolicy{
			InitialBackoff: time.Duration(out.InitialBackoffSecs) * time.Second,
			MaxBackoff:     time.Duration(out.MaxBackoffSecs) * time.Second,
			Multiplier:     2,
			Jitter:         0.1,
		},
		DisableOutbox: !out.Enabled,
	}
}

func relayOptions() leadsync.RelayOptions {
	return leadsync.RelayOptions{
		PollInterval: time.Duration(cfg.Sync.Outbox.PollIntervalSecs) * time.Second,
		BatchSize:    cfg.Sync.Outbox.BatchSize,
		Concurrency:  cfg.Sync.Outbox.Concurrency,
	}
}

// syncEnv holds everything a syncing command needs.
type syncEnv struct {
	Store store.Store
	Coord *leadsync.Coordinator
	Relay *leadsync.Relay
}

// Close releases the store.
func (e *syncEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initSync opens the store and builds the coordinator and relay. withCRM
// false leaves the coordinator without adapters, for commands that only
// touch local data.
func initSync(ctx context.Context, withCRM bool) (*syncEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	var adapters []crm.Adapter
	if withCRM {
		adapters, err = initAdapters()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	coord := leadsync.New(st, adapters, coordinatorOptions())
	zap.L().Debug("leadsync initialized",
		zap.String("store", cfg.Store.Driver),
		zap.Strings("backends", coord.Backends()),
	)
	return &syncEnv{
		Store: st,
		Coord: coord,
		Relay: leadsync.NewRelay(coord, relayOptions()),
	}, nil
}
