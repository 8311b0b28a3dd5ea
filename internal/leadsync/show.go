package leadsync

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadsync/internal/crm"
	"github.com/sells-group/leadsync/internal/model"
)

// ShowLead returns the leads with this name and, for every backend that
// assigned one of them a record, that record as the backend holds it now.
func (c *Coordinator) ShowLead(ctx context.Context, name string) model.SyncResult {
	res := c.showLead(ctx, name)
	recordOperation("show", res)
	return res
}

func (c *Coordinator) showLead(ctx context.Context, name string) model.SyncResult {
	leads, err := c.store.FindByName(ctx, name)
	if err != nil {
		c.log().Error("lookup failed", zap.String("name", name), zap.Error(err))
		return failedErr(err, "I couldn't read the lead from the local database.")
	}
	if len(leads) == 0 {
		return failed(model.ErrorKindNotFound, fmt.Sprintf("I couldn't find a lead named %s.", name))
	}

	lines := make([]string, 0, len(leads))
	var outcomes []model.RemoteOutcome
	for _, lead := range leads {
		lines = append(lines, lead.Display())
		outcomes = append(outcomes, c.fetchRemote(ctx, lead)...)
	}

	res := model.SyncResult{
		Stage:    model.StageDone,
		Local:    crm.StatusSuccess,
		Leads:    lines,
		Affected: int64(len(leads)),
		Remote:   outcomes,
	}
	if len(leads) == 1 {
		res.Lead = &leads[0]
	}
	res.Status, res.Message = summarizeLookup(outcomes, name, len(leads))
	return res
}

// fetchRemote reads lead back from every backend that holds a link for it.
// Backends without a link are left out.
func (c *Coordinator) fetchRemote(ctx context.Context, lead model.Lead) []model.RemoteOutcome {
	outcomes := make([]*model.RemoteOutcome, len(c.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range c.adapters {
		f, ok := a.(crm.Fetcher)
		if !ok {
			continue
		}
		g.Go(func() error {
			backend := string(a.Backend())
			link, err := c.store.GetLink(gctx, lead.ID, backend)
			if err != nil {
				c.log().Warn("link lookup failed", zap.String("backend", backend), zap.Int64("lead_id", lead.ID), zap.Error(err))
				return nil
			}
			if link == nil || link.NativeID == "" {
				return nil
			}
			r := f.GetLead(gctx, link.NativeID)
			outcomes[i] = &model.RemoteOutcome{
				Backend:  backend,
				Status:   r.Status,
				Message:  r.Message,
				NativeID: link.NativeID,
				Data:     r.Data,
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []model.RemoteOutcome
	for _, o := range outcomes {
		if o != nil {
			out = append(out, *o)
		}
	}
	return out
}

func summarizeLookup(outcomes []model.RemoteOutcome, name string, n int) (model.SyncStatus, string) {
	subject := fmt.Sprintf("Found lead %s", name)
	if n > 1 {
		subject = fmt.Sprintf("Found %d leads named %s", n, name)
	}

	var ok, bad []string
	for _, o := range outcomes {
		if o.Succeeded() {
			ok = append(ok, o.Backend)
			continue
		}
		bad = append(bad, fmt.Sprintf("%s (%s)", o.Backend, o.Message))
	}
	switch {
	case len(bad) > 0:
		return model.SyncPartial, fmt.Sprintf("%s locally, but reading it from %s failed.", subject, strings.Join(bad, ", "))
	case len(ok) > 0:
		return model.SyncSuccess, fmt.Sprintf("%s and read it back from %s.", subject, strings.Join(dedupe(ok), ", "))
	default:
		return model.SyncSuccess, subject + "."
	}
}
