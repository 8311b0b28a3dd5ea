package leadsync

import (
	"context"

	"github.com/sells-group/leadsync/internal/async"
	"github.com/sells-group/leadsync/internal/model"
)

// The Async forms start the operation on a background goroutine and return
// at once. The operation runs under ctx; Wait on the future takes its own.

// CaptureAsync runs Capture in the background.
func (c *Coordinator) CaptureAsync(ctx context.Context, text string) *async.Future[model.SyncResult] {
	return async.Go(ctx, func(ctx context.Context) (model.SyncResult, error) {
		return c.Capture(ctx, text), nil
	})
}

// AddLeadAsync runs AddLead in the background.
func (c *Coordinator) AddLeadAsync(ctx context.Context, lead model.Lead) *async.Future[model.SyncResult] {
	return async.Go(ctx, func(ctx context.Context) (model.SyncResult, error) {
		return c.AddLead(ctx, lead), nil
	})
}

// UpdateLeadAsync runs UpdateLead in the background.
func (c *Coordinator) UpdateLeadAsync(ctx context.Context, name, field, value string) *async.Future[model.SyncResult] {
	return async.Go(ctx, func(ctx context.Context) (model.SyncResult, error) {
		return c.UpdateLead(ctx, name, field, value), nil
	})
}

// DeleteLeadAsync runs DeleteLead in the background.
func (c *Coordinator) DeleteLeadAsync(ctx context.Context, name string) *async.Future[model.SyncResult] {
	return async.Go(ctx, func(ctx context.Context) (model.SyncResult, error) {
		return c.DeleteLead(ctx, name), nil
	})
}

// ListLeadsAsync runs ListLeads in the background.
func (c *Coordinator) ListLeadsAsync(ctx context.Context) *async.Future[model.SyncResult] {
	return async.Go(ctx, func(ctx context.Context) (model.SyncResult, error) {
		return c.ListLeads(ctx), nil
	})
}
