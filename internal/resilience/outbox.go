package resilience

import (
	"time"
)

// OutboxStatus is the lifecycle state of a queued push.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxDead    OutboxStatus = "dead" // permanent error or attempts exhausted
)

// Error classes recorded on outbox entries.
const (
	ErrorTransient = "transient"
	ErrorPermanent = "permanent"
)

// OutboxEntry is a CRM push that failed after the local commit and is waiting
// to be re-driven. The lead itself is re-read from the store on each attempt,
// so the latest local write is what reaches the CRM.
type OutboxEntry struct {
	ID            string       `json:"id"`
	LeadID        int64        `json:"lead_id"`
	Backend       string       `json:"backend"`
	Status        OutboxStatus `json:"status"`
	Error         string       `json:"error"`
	ErrorType     string       `json:"error_type"`
	Attempts      int          `json:"attempts"`
	MaxAttempts   int          `json:"max_attempts"`
	NextAttemptAt time.Time    `json:"next_attempt_at"`
	CreatedAt     time.Time    `json:"created_at"`
	LastFailedAt  time.Time    `json:"last_failed_at"`
}

// CanRetry reports whether the entry has attempts left and is not dead.
func (e *OutboxEntry) CanRetry() bool {
	return e.Status != OutboxDead && e.Attempts < e.MaxAttempts
}

// Fail records a failed attempt at now. Permanent errors and exhausted entries
// are marked dead; others are rescheduled using the policy's backoff.
func (e *OutboxEntry) Fail(err error, p RetryPolicy, now time.Time) {
	e.Attempts++
	e.Error = err.Error()
	e.ErrorType = ClassifyError(err)
	e.LastFailedAt = now
	if e.ErrorType == ErrorPermanent || e.Attempts >= e.MaxAttempts {
		e.Status = OutboxDead
		return
	}
	e.Status = OutboxPending
	e.NextAttemptAt = now.Add(p.Backoff(e.Attempts - 1))
}

// ClassifyError labels err as ErrorTransient or ErrorPermanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}
