package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"

// SQLiteStore implements Store using modernc.org/sqlite. Every operation
// runs on its own connection; idle connections are not pooled.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the SQLite database at path. The special path ":memory:"
// opens a private in-memory database pinned to a single connection.
func NewSQLite(path string) (*SQLiteStore, error) {
	memory := path == ":memory:"
	dsn := "file:" + path + "?" + sqlitePragmas
	if memory {
		dsn = "file::memory:?" + sqlitePragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if memory {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(0)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrapf(model.ErrStorage, "sqlite: open %s: %v", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	company    TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	needs      TEXT NOT NULL,
	budget     TEXT NOT NULL,
	timeline   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS crm_links (
	lead_id   INTEGER NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	backend   TEXT NOT NULL,
	native_id TEXT NOT NULL,
	synced_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (lead_id, backend)
);

CREATE TABLE IF NOT EXISTS sync_outbox (
	id              TEXT PRIMARY KEY,
	lead_id         INTEGER NOT NULL,
	backend         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	error           TEXT NOT NULL DEFAULT '',
	error_type      TEXT NOT NULL DEFAULT '',
	attempts        INTEGER NOT NULL DEFAULT 0,
	max_attempts    INTEGER NOT NULL DEFAULT 5,
	next_attempt_at INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	last_failed_at  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_leads_name ON leads(name);
CREATE INDEX IF NOT EXISTS idx_sync_outbox_status_next ON sync_outbox(status, next_attempt_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_outbox_pending ON sync_outbox(lead_id, backend) WHERE status = 'pending';
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return wrapStorage(err, "sqlite: migrate")
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Leads ---

// Insert validates and persists lead, filling in its ID and timestamps.
func (s *SQLiteStore) Insert(ctx context.Context, lead *model.Lead) error {
	if err := validateInsert(lead); err != nil {
		return err
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (name, company, email, needs, budget, timeline, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.Name, lead.Company, lead.Email, lead.Needs, lead.Budget, lead.Timeline, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return wrapStorage(err, "sqlite: insert lead")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wrapStorage(err, "sqlite: insert lead id")
	}
	lead.ID = id
	return nil
}

// UpdateField sets one column on every lead named name and returns how many
// rows changed.
func (s *SQLiteStore) UpdateField(ctx context.Context, name string, field model.Field, value string) (int64, error) {
	col, err := updateColumn(field)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`UPDATE leads SET %s = ?, updated_at = ? WHERE name = ?`, col)
	res, err := s.db.ExecContext(ctx, query, value, time.Now().UTC(), name)
	if err != nil {
		return 0, wrapStorage(err, "sqlite: update lead")
	}
	return rowsAffected(res)
}

// DeleteByName removes every lead named name.
func (s *SQLiteStore) DeleteByName(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE name = ?`, name)
	if err != nil {
		return 0, wrapStorage(err, "sqlite: delete lead")
	}
	return rowsAffected(res)
}

// List returns all leads in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]model.Lead, error) {
	return s.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY id`)
}

// FindByName returns all leads with exactly this name.
func (s *SQLiteStore) FindByName(ctx context.Context, name string) ([]model.Lead, error) {
	return s.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads WHERE name = ? ORDER BY id`, name)
}

// GetLead returns the lead with id, or nil if it does not exist.
func (s *SQLiteStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage(err, "sqlite: get lead")
	}
	return l, nil
}

func (s *SQLiteStore) queryLeads(ctx context.Context, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage(err, "sqlite: query leads")
	}
	defer rows.Close() //nolint:errcheck

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, wrapStorage(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, wrapStorage(rows.Err(), "sqlite: iterate leads")
}

// --- CRM links ---

// SaveLink records or replaces the native ID a backend assigned to a lead.
func (s *SQLiteStore) SaveLink(ctx context.Context, link model.CRMLink) error {
	if link.SyncedAt.IsZero() {
		link.SyncedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crm_links (lead_id, backend, native_id, synced_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (lead_id, backend) DO UPDATE SET native_id = excluded.native_id, synced_at = excluded.synced_at`,
		link.LeadID, link.Backend, link.NativeID, link.SyncedAt,
	)
	return wrapStorage(err, "sqlite: save crm link")
}

// GetLink returns the link for a lead and backend, or nil.
func (s *SQLiteStore) GetLink(ctx context.Context, leadID int64, backend string) (*model.CRMLink, error) {
	var l model.CRMLink
	err := s.db.QueryRowContext(ctx,
		`SELECT lead_id, backend, native_id, synced_at FROM crm_links WHERE lead_id = ? AND backend = ?`,
		leadID, backend,
	).Scan(&l.LeadID, &l.Backend, &l.NativeID, &l.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage(err, "sqlite: get crm link")
	}
	return &l, nil
}

// --- Outbox ---

// EnqueueOutbox adds a pending push. An empty ID is filled with a UUID.
// A lead has at most one pending entry per backend: enqueueing onto an
// existing one keeps its ID and attempts, records the new error and moves
// the next attempt to the earlier of the two schedules.
func (s *SQLiteStore) EnqueueOutbox(ctx context.Context, e resilience.OutboxEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = resilience.OutboxPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_outbox (id, lead_id, backend, status, error, error_type, attempts, max_attempts, next_attempt_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lead_id, backend) WHERE status = 'pending' DO UPDATE SET
			error = excluded.error,
			error_type = excluded.error_type,
			last_failed_at = excluded.last_failed_at,
			next_attempt_at = MIN(sync_outbox.next_attempt_at, excluded.next_attempt_at)`,
		e.ID, e.LeadID, e.Backend, string(e.Status), e.Error, e.ErrorType, e.Attempts, e.MaxAttempts,
		toMillis(e.NextAttemptAt), toMillis(e.CreatedAt), toMillis(e.LastFailedAt),
	)
	return wrapStorage(err, "sqlite: enqueue outbox")
}

// DueOutbox returns entries with the filter's status that are scheduled at
// or before its DueBy, oldest first.
func (s *SQLiteStore) DueOutbox(ctx context.Context, f OutboxFilter) ([]resilience.OutboxEntry, error) {
	f = f.withDefaults()
	where := []string{"status = ?", "next_attempt_at <= ?"}
	args := []any{string(f.Status), toMillis(f.DueBy)}
	if f.Backend != "" {
		where = append(where, "backend = ?")
		args = append(args, f.Backend)
	}

	query := `SELECT id, lead_id, backend, status, error, error_type, attempts, max_attempts, next_attempt_at, created_at, last_failed_at FROM sync_outbox WHERE ` +
		strings.Join(where, " AND ") + " ORDER BY created_at, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage(err, "sqlite: due outbox")
	}
	defer rows.Close() //nolint:errcheck

	var entries []resilience.OutboxEntry
	for rows.Next() {
		var (
			e                       resilience.OutboxEntry
			status                  string
			next, created, lastFail int64
		)
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Backend, &status, &e.Error, &e.ErrorType,
			&e.Attempts, &e.MaxAttempts, &next, &created, &lastFail); err != nil {
			return nil, wrapStorage(err, "sqlite: scan outbox")
		}
		e.Status = resilience.OutboxStatus(status)
		e.NextAttemptAt = fromMillis(next)
		e.CreatedAt = fromMillis(created)
		e.LastFailedAt = fromMillis(lastFail)
		entries = append(entries, e)
	}
	return entries, wrapStorage(rows.Err(), "sqlite: iterate outbox")
}

// UpdateOutbox persists the retry bookkeeping of an entry.
func (s *SQLiteStore) UpdateOutbox(ctx context.Context, e resilience.OutboxEntry) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_outbox SET status = ?, error = ?, error_type = ?, attempts = ?, next_attempt_at = ?, last_failed_at = ? WHERE id = ?`,
		string(e.Status), e.Error, e.ErrorType, e.Attempts, toMillis(e.NextAttemptAt), toMillis(e.LastFailedAt), e.ID,
	)
	if err != nil {
		return wrapStorage(err, "sqlite: update outbox")
	}
	return checkRowsAffected(res, "outbox entry", e.ID)
}

// DeleteOutbox removes an entry, typically after a successful push.
func (s *SQLiteStore) DeleteOutbox(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_outbox WHERE id = ?`, id)
	return wrapStorage(err, "sqlite: delete outbox")
}

// CountOutbox counts entries with status, or all entries when status is empty.
func (s *SQLiteStore) CountOutbox(ctx context.Context, status resilience.OutboxStatus) (int, error) {
	var n int
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_outbox`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_outbox WHERE status = ?`, string(status)).Scan(&n)
	}
	return n, wrapStorage(err, "sqlite: count outbox")
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStorage(err, "rows affected")
	}
	return n, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s not found: %s", entity, id)
	}
	return nil
}

// wrapStorage tags a driver error as a storage failure. It returns nil for a
// nil err.
func wrapStorage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return eris.Wrapf(model.ErrStorage, "%s: %v", msg, err)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
