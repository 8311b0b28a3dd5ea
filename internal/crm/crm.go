// Package crm adapts remote CRM systems to a single create-or-update
// contract. Adapters report every outcome as a Result and never return Go
// errors, retry, or panic; retry and queueing belong to the caller.
package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/async"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
)

// Backend names a CRM system.
type Backend string

const (
	BackendHubSpot    Backend = "hubspot"
	BackendAirtable   Backend = "airtable"
	BackendSalesforce Backend = "salesforce"
	BackendNotion     Backend = "notion"
)

// IdentityModel is how a backend recognizes an existing record.
type IdentityModel int

const (
	// KeyedByEmail backends upsert on the lead's email.
	KeyedByEmail IdentityModel = iota
	// RecordID backends assign their own identifier on create, which must be
	// kept to update the same record later.
	RecordID
)

func (m IdentityModel) String() string {
	if m == RecordID {
		return "record_id"
	}
	return "keyed_by_email"
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultTimeout bounds each remote call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of one remote call.
type Result struct {
	Backend    Backend        `json:"backend"`
	Status     string         `json:"status"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	NativeID   string         `json:"native_id,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Transient  bool           `json:"transient,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Err converts a failed Result into an error wrapping model.ErrRemote, marked
// transient when the backend said so. It returns nil for a success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	err := eris.Wrapf(model.ErrRemote, "%s: %s", r.Backend, r.Message)
	if r.Transient {
		return resilience.NewTransientError(err, r.StatusCode)
	}
	return err
}

// Adapter pushes leads to one CRM backend.
type Adapter interface {
	Backend() Backend
	Identity() IdentityModel
	CreateOrUpdateLead(ctx context.Context, lead model.Lead) Result
}

// Fetcher reads back the record a backend assigned to a lead.
type Fetcher interface {
	GetLead(ctx context.Context, nativeID string) Result
}

// RecordAdapter is implemented by RecordID backends, which can address a
// record by the identifier they assigned.
type RecordAdapter interface {
	Adapter
	Fetcher
	UpdateLead(ctx context.Context, nativeID string, lead model.Lead) Result
}

// statusCoder is implemented by the wire clients' HTTP status errors.
type statusCoder interface {
	error
	HTTPStatus() (int, string)
}

func success(b Backend, nativeID string, data map[string]any) Result {
	return Result{Backend: b, Status: StatusSuccess, NativeID: nativeID, Data: data}
}

// failure turns a client error into a Result with a narration-friendly
// message: "HTTP error: <status>" for rejected requests and
// "Network error: <err>" for everything that never got a response.
func failure(b Backend, err error) Result {
	r := Result{Backend: b, Status: StatusError}

	var sc statusCoder
	if errors.As(err, &sc) {
		code, status := sc.HTTPStatus()
		r.StatusCode = code
		r.Message = "HTTP error: " + status
		r.Transient = resilience.IsTransientStatus(code)
		return r
	}
	r.Message = "Network error: " + eris.Cause(err).Error()
	r.Transient = resilience.IsTransient(err)
	return r
}

// invalid reports a lead the backend cannot accept as sent.
func invalid(b Backend, msg string) Result {
	return Result{Backend: b, Status: StatusError, Message: msg, StatusCode: http.StatusUnprocessableEntity}
}

// call runs fn under timeout and abandons it once the deadline passes, so a
// client that ignores its context still cannot hold the caller. A deadline is
// a transient timeout; a cancelled caller is not.
func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := async.Go(ctx, fn).Wait(ctx)
	if err != nil && ctx.Err() != nil {
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, resilience.NewTransientError(
				eris.New(fmt.Sprintf("timeout after %s", timeout)), 0)
		}
		return zero, eris.Wrap(ctx.Err(), "crm: call cancelled")
	}
	return v, err
}
