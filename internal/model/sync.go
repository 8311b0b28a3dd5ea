package model

import "time"

// SyncStatus is the overall outcome of a caller-facing operation.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial" // local commit ok, at least one remote push failed
	SyncError   SyncStatus = "error"
)

// Stage is a state of the lead capture state machine.
type Stage string

const (
	StageExtracting   Stage = "extracting"
	StageValidating   Stage = "validating"
	StageLocalCommit  Stage = "local_commit"
	StageRemoteUpsert Stage = "remote_upsert"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// RemoteOutcome is the result of pushing a lead to one CRM backend.
type RemoteOutcome struct {
	Backend  string `json:"backend"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	NativeID string `json:"native_id,omitempty"`
	Queued   bool   `json:"queued,omitempty"` // failed push was written to the outbox
	// Data is the record as the backend holds it, set by lookups.
	Data map[string]any `json:"data,omitempty"`
}

// Succeeded reports whether the push reached the backend.
func (o RemoteOutcome) Succeeded() bool {
	return o.Status == "success"
}

// SyncResult is returned by every caller-facing operation. Message is meant to
// be read back to the end user as-is.
type SyncResult struct {
	Status    SyncStatus      `json:"status"`
	Stage     Stage           `json:"stage,omitempty"`
	ErrorKind ErrorKind       `json:"error_kind,omitempty"`
	Message   string          `json:"message"`
	Lead      *Lead           `json:"lead,omitempty"`
	Leads     []string        `json:"leads,omitempty"`
	Affected  int64           `json:"affected,omitempty"`
	Local     string          `json:"local,omitempty"`
	Remote    []RemoteOutcome `json:"remote,omitempty"`
}

// OK reports whether the operation fully succeeded.
func (r SyncResult) OK() bool {
	return r.Status == SyncSuccess
}

// CRMLink records the identifier a backend assigned to a local lead.
type CRMLink struct {
	LeadID   int64     `json:"lead_id"`
	Backend  string    `json:"backend"`
	NativeID string    `json:"native_id"`
	SyncedAt time.Time `json:"synced_at"`
}
