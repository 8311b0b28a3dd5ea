package leadsync

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadsync/internal/crm"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
)

// fanOut pushes lead to every adapter concurrently. Failed pushes are queued
// in the outbox; the returned outcomes are in adapter order.
func (c *Coordinator) fanOut(ctx context.Context, lead model.Lead) []model.RemoteOutcome {
	if len(c.adapters) == 0 {
		return nil
	}

	outcomes := make([]model.RemoteOutcome, len(c.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range c.adapters {
		g.Go(func() error {
			r := c.push(gctx, lead, a)
			out := model.RemoteOutcome{
				Backend:  string(r.Backend),
				Status:   r.Status,
				Message:  r.Message,
				NativeID: r.NativeID,
			}
			if !r.OK() {
				err := r.Err()
				// A push cut short by the caller got no verdict from the backend.
				if ctx.Err() != nil && r.StatusCode == 0 {
					err = resilience.NewTransientError(err, 0)
				}
				out.Queued = c.enqueue(ctx, lead.ID, a.Backend(), err)
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// push sends lead to one backend through its circuit breaker and the in-line
// retry policy. It never returns an error; failures are in the Result.
func (c *Coordinator) push(ctx context.Context, lead model.Lead, a crm.Adapter) crm.Result {
	backend := string(a.Backend())
	log := c.log().With(zap.String("backend", backend), zap.Int64("lead_id", lead.ID))

	br := c.breakers.For(backend)
	if err := br.Allow(); err != nil {
		log.Warn("crm push skipped, circuit open")
		recordPush(backend, "circuit_open")
		return crm.Result{
			Backend:   a.Backend(),
			Status:    crm.StatusError,
			Message:   "Circuit open: " + backend + " is temporarily disabled",
			Transient: true,
		}
	}

	p := c.opts.Retry
	p.OnRetry = resilience.LogRetry(backend, "push")

	var last crm.Result
	_, err := resilience.Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		last = c.pushOnce(ctx, lead, a)
		return struct{}{}, last.Err()
	})

	// Rejected records do not count against the breaker.
	if err != nil && last.Transient {
		br.Record(err)
	} else {
		br.Record(nil)
	}

	if err != nil {
		log.Warn("crm push failed", zap.String("message", last.Message), zap.Bool("transient", last.Transient))
		recordPush(backend, crm.StatusError)
		return last
	}
	log.Debug("crm push succeeded", zap.String("native_id", last.NativeID))
	recordPush(backend, crm.StatusSuccess)
	return last
}

// pushOnce makes a single attempt. Record-ID backends update the record they
// assigned earlier and fall back to creating one when it is gone.
func (c *Coordinator) pushOnce(ctx context.Context, lead model.Lead, a crm.Adapter) crm.Result {
	ra, ok := a.(crm.RecordAdapter)
	if !ok || a.Identity() != crm.RecordID {
		r := a.CreateOrUpdateLead(ctx, lead)
		if r.OK() && r.NativeID != "" {
			c.saveLink(ctx, lead.ID, a.Backend(), r.NativeID)
		}
		return r
	}

	link, err := c.store.GetLink(ctx, lead.ID, string(a.Backend()))
	if err != nil {
		c.log().Warn("link lookup failed, creating a new record",
			zap.String("backend", string(a.Backend())), zap.Error(err))
	}
	if link != nil && link.NativeID != "" {
		r := ra.UpdateLead(ctx, link.NativeID, lead)
		if r.StatusCode != http.StatusNotFound {
			return r
		}
	}

	r := ra.CreateOrUpdateLead(ctx, lead)
	if r.OK() && r.NativeID != "" {
		c.saveLink(ctx, lead.ID, a.Backend(), r.NativeID)
	}
	return r
}

func (c *Coordinator) saveLink(ctx context.Context, leadID int64, b crm.Backend, nativeID string) {
	link := model.CRMLink{LeadID: leadID, Backend: string(b), NativeID: nativeID, SyncedAt: c.now().UTC()}
	if err := c.store.SaveLink(ctx, link); err != nil {
		c.log().Warn("failed to save crm link",
			zap.String("backend", string(b)), zap.String("native_id", nativeID), zap.Error(err))
	}
}

// enqueue records a failed push in the outbox and reports whether the relay
// will retry it. Permanent failures are stored dead for inspection.
func (c *Coordinator) enqueue(ctx context.Context, leadID int64, b crm.Backend, pushErr error) bool {
	if c.opts.DisableOutbox || pushErr == nil {
		return false
	}
	now := c.now().UTC()
	e := resilience.OutboxEntry{
		ID:          uuid.NewString(),
		LeadID:      leadID,
		Backend:     string(b),
		MaxAttempts: c.opts.OutboxMaxAttempts,
		CreatedAt:   now,
	}
	e.Fail(pushErr, c.opts.OutboxBackoff, now)

	// The caller may already be gone; the entry must still be written.
	if err := c.store.EnqueueOutbox(context.WithoutCancel(ctx), e); err != nil {
		c.log().Error("failed to enqueue outbox entry",
			zap.String("backend", string(b)), zap.Int64("lead_id", leadID), zap.Error(err))
		return false
	}
	return e.Status == resilience.OutboxPending
}
