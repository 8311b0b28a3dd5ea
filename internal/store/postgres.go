package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
)

// pgPool is the subset of *pgxpool.Pool the store uses, so pgxmock can stand
// in for it in tests.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(model.ErrStorage, "postgres: ping: %v", err)
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	company    TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	needs      TEXT NOT NULL,
	budget     TEXT NOT NULL,
	timeline   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crm_links (
	lead_id   BIGINT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	backend   TEXT NOT NULL,
	native_id TEXT NOT NULL,
	synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (lead_id, backend)
);

CREATE TABLE IF NOT EXISTS sync_outbox (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id         BIGINT NOT NULL,
	backend         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	error           TEXT NOT NULL DEFAULT '',
	error_type      TEXT NOT NULL DEFAULT '',
	attempts        INT NOT NULL DEFAULT 0,
	max_attempts    INT NOT NULL DEFAULT 5,
	next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_name ON leads(name);
CREATE INDEX IF NOT EXISTS idx_sync_outbox_status_next ON sync_outbox(status, next_attempt_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_outbox_pending ON sync_outbox(lead_id, backend) WHERE status = 'pending';
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return wrapStorage(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Leads ---

func (s *PostgresStore) Insert(ctx context.Context, lead *model.Lead) error {
	if err := validateInsert(lead); err != nil {
		return err
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (name, company, email, needs, budget, timeline, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		lead.Name, lead.Company, lead.Email, lead.Needs, lead.Budget, lead.Timeline, lead.CreatedAt, lead.UpdatedAt,
	).Scan(&lead.ID)
	return wrapStorage(err, "postgres: insert lead")
}

func (s *PostgresStore) UpdateField(ctx context.Context, name string, field model.Field, value string) (int64, error) {
	col, err := updateColumn(field)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`UPDATE leads SET %s = $1, updated_at = $2 WHERE name = $3`, pgx.Identifier{col}.Sanitize())
	tag, err := s.pool.Exec(ctx, query, value, time.Now().UTC(), name)
	if err != nil {
		return 0, wrapStorage(err, "postgres: update lead")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteByName(ctx context.Context, name string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE name = $1`, name)
	if err != nil {
		return 0, wrapStorage(err, "postgres: delete lead")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Lead, error) {
	return s.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY id`)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) ([]model.Lead, error) {
	return s.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads WHERE name = $1 ORDER BY id`, name)
}

func (s *PostgresStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage(err, "postgres: get lead")
	}
	return l, nil
}

func (s *PostgresStore) queryLeads(ctx context.Context, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage(err, "postgres: query leads")
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, wrapStorage(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, wrapStorage(rows.Err(), "postgres: iterate leads")
}

// --- CRM links ---

func (s *PostgresStore) SaveLink(ctx context.Context, link model.CRMLink) error {
	if link.SyncedAt.IsZero() {
		link.SyncedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crm_links (lead_id, backend, native_id, synced_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (lead_id, backend) DO UPDATE SET native_id = EXCLUDED.native_id, synced_at = EXCLUDED.synced_at`,
		link.LeadID, link.Backend, link.NativeID, link.SyncedAt,
	)
	return wrapStorage(err, "postgres: save crm link")
}

func (s *PostgresStore) GetLink(ctx context.Context, leadID int64, backend string) (*model.CRMLink, error) {
	var l model.CRMLink
	err := s.pool.QueryRow(ctx,
		`SELECT lead_id, backend, native_id, synced_at FROM crm_links WHERE lead_id = $1 AND backend = $2`,
		leadID, backend,
	).Scan(&l.LeadID, &l.Backend, &l.NativeID, &l.SyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage(err, "postgres: get crm link")
	}
	return &l, nil
}

// --- Outbox ---

func (s *PostgresStore) EnqueueOutbox(ctx context.Context, e resilience.OutboxEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = resilience.OutboxPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_outbox (id, lead_id, backend, status, error, error_type, attempts, max_attempts, next_attempt_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (lead_id, backend) WHERE status = 'pending' DO UPDATE SET
			error = EXCLUDED.error,
			error_type = EXCLUDED.error_type,
			last_failed_at = EXCLUDED.last_failed_at,
			next_attempt_at = LEAST(sync_outbox.next_attempt_at, EXCLUDED.next_attempt_at)`,
		e.ID, e.LeadID, e.Backend, string(e.Status), e.Error, e.ErrorType, e.Attempts, e.MaxAttempts,
		e.NextAttemptAt, e.CreatedAt, nullTime(e.LastFailedAt),
	)
	return wrapStorage(err, "postgres: enqueue outbox")
}

func (s *PostgresStore) DueOutbox(ctx context.Context, f OutboxFilter) ([]resilience.OutboxEntry, error) {
	f = f.withDefaults()
	where := []string{"status = $1", "next_attempt_at <= $2"}
	args := []any{string(f.Status), f.DueBy}
	if f.Backend != "" {
		args = append(args, f.Backend)
		where = append(where, fmt.Sprintf("backend = $%d", len(args)))
	}
	query := `SELECT id, lead_id, backend, status, error, error_type, attempts, max_attempts, next_attempt_at, created_at, last_failed_at
		FROM sync_outbox WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage(err, "postgres: due outbox")
	}
	defer rows.Close()

	var entries []resilience.OutboxEntry
	for rows.Next() {
		var (
			e        resilience.OutboxEntry
			status   string
			lastFail *time.Time
		)
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Backend, &status, &e.Error, &e.ErrorType,
			&e.Attempts, &e.MaxAttempts, &e.NextAttemptAt, &e.CreatedAt, &lastFail); err != nil {
			return nil, wrapStorage(err, "postgres: scan outbox")
		}
		e.Status = resilience.OutboxStatus(status)
		if lastFail != nil {
			e.LastFailedAt = *lastFail
		}
		entries = append(entries, e)
	}
	return entries, wrapStorage(rows.Err(), "postgres: iterate outbox")
}

func (s *PostgresStore) UpdateOutbox(ctx context.Context, e resilience.OutboxEntry) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_outbox SET status = $1, error = $2, error_type = $3, attempts = $4, next_attempt_at = $5, last_failed_at = $6 WHERE id = $7`,
		string(e.Status), e.Error, e.ErrorType, e.Attempts, e.NextAttemptAt, nullTime(e.LastFailedAt), e.ID,
	)
	if err != nil {
		return wrapStorage(err, "postgres: update outbox")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "outbox entry not found: %s", e.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteOutbox(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_outbox WHERE id = $1`, id)
	return wrapStorage(err, "postgres: delete outbox")
}

func (s *PostgresStore) CountOutbox(ctx context.Context, status resilience.OutboxStatus) (int, error) {
	var n int
	var err error
	if status == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_outbox`).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_outbox WHERE status = $1`, string(status)).Scan(&n)
	}
	return n, wrapStorage(err, "postgres: count outbox")
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
