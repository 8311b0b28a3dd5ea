package store

import (
	"context"

	"github.com/sells-group/leadsync/internal/async"
	"github.com/sells-group/leadsync/internal/model"
)

// Async runs Store calls on background goroutines and hands back futures,
// so callers on an event loop never block on the database.
type Async struct {
	Store Store
}

// NewAsync wraps st.
func NewAsync(st Store) *Async {
	return &Async{Store: st}
}

// InsertAsync inserts a copy of lead and resolves to it with ID set.
func (a *Async) InsertAsync(ctx context.Context, lead model.Lead) *async.Future[model.Lead] {
	return async.Go(ctx, func(ctx context.Context) (model.Lead, error) {
		err := a.Store.Insert(ctx, &lead)
		return lead, err
	})
}

// UpdateFieldAsync sets field on every lead named name and resolves to the
// number of rows changed.
func (a *Async) UpdateFieldAsync(ctx context.Context, name string, field model.Field, value string) *async.Future[int64] {
	return async.Go(ctx, func(ctx context.Context) (int64, error) {
		return a.Store.UpdateField(ctx, name, field, value)
	})
}

// DeleteByNameAsync removes every lead named name and resolves to the number
// of rows removed.
func (a *Async) DeleteByNameAsync(ctx context.Context, name string) *async.Future[int64] {
	return async.Go(ctx, func(ctx context.Context) (int64, error) {
		return a.Store.DeleteByName(ctx, name)
	})
}

// ListAsync resolves to every stored lead in insertion order.
func (a *Async) ListAsync(ctx context.Context) *async.Future[[]model.Lead] {
	return async.Go(ctx, func(ctx context.Context) ([]model.Lead, error) {
		return a.Store.List(ctx)
	})
}
