package leadsync

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadsync/internal/crm"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
	"github.com/sells-group/leadsync/internal/store"
)

// RelayOptions tune the outbox relay.
type RelayOptions struct {
	// PollInterval is the delay between drains in Run. Default 30s.
	PollInterval time.Duration
	// BatchSize caps the entries handled per drain. Default 50.
	BatchSize int
	// Concurrency caps the pushes in flight during a drain. Default 4.
	Concurrency int
}

// DrainReport summarizes one pass over the outbox.
type DrainReport struct {
	Due         int `json:"due"`
	Delivered   int `json:"delivered"`
	Rescheduled int `json:"rescheduled"`
	Dead        int `json:"dead"`
	Dropped     int `json:"dropped"` // lead deleted locally since the push failed
	Pending     int `json:"pending"`
	DeadTotal   int `json:"dead_total"`
}

// Relay re-drives failed pushes from the outbox.
type Relay struct {
	coord    *Coordinator
	adapters map[string]crm.Adapter
	opts     RelayOptions
}

// NewRelay returns a relay that pushes through c's adapters, breakers and
// retry policy.
func NewRelay(c *Coordinator, opts RelayOptions) *Relay {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	adapters := make(map[string]crm.Adapter, len(c.adapters))
	for _, a := range c.adapters {
		adapters[string(a.Backend())] = a
	}
	return &Relay{coord: c, adapters: adapters, opts: opts}
}

// Run drains the outbox every PollInterval. It blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "leadsync.relay"))
	log.Info("starting outbox relay",
		zap.Duration("interval", r.opts.PollInterval),
		zap.Int("batch_size", r.opts.BatchSize),
	)

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			rep, err := r.Drain(ctx)
			if err != nil {
				log.Error("leadsync: outbox drain failed", zap.Error(err))
				continue
			}
			if rep.Due > 0 {
				log.Info("leadsync: outbox drained",
					zap.Int("due", rep.Due),
					zap.Int("delivered", rep.Delivered),
					zap.Int("rescheduled", rep.Rescheduled),
					zap.Int("dead", rep.Dead),
					zap.Int("dropped", rep.Dropped),
				)
			}
		}
	}
}

// Drain makes one pass over the due entries. Each entry's lead is re-read so
// the latest local write is what gets pushed. Store failures abort the pass.
func (r *Relay) Drain(ctx context.Context) (DrainReport, error) {
	var rep DrainReport
	st := r.coord.store

	entries, err := st.DueOutbox(ctx, store.OutboxFilter{
		DueBy: r.coord.now().UTC(),
		Limit: r.opts.BatchSize,
	})
	if err != nil {
		return rep, eris.Wrap(err, "leadsync: load due outbox entries")
	}
	rep.Due = len(entries)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, e := range entries {
		g.Go(func() error {
			outcome, err := r.redrive(gctx, e)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeDelivered:
				rep.Delivered++
			case outcomeDropped:
				rep.Dropped++
			case outcomeDead:
				rep.Dead++
			default:
				rep.Rescheduled++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	if rep.Pending, err = st.CountOutbox(ctx, resilience.OutboxPending); err != nil {
		return rep, eris.Wrap(err, "leadsync: count pending outbox entries")
	}
	if rep.DeadTotal, err = st.CountOutbox(ctx, resilience.OutboxDead); err != nil {
		return rep, eris.Wrap(err, "leadsync: count dead outbox entries")
	}
	recordOutbox(resilience.OutboxPending, rep.Pending)
	recordOutbox(resilience.OutboxDead, rep.DeadTotal)
	return rep, nil
}

type redriveOutcome int

const (
	outcomeRescheduled redriveOutcome = iota
	outcomeDelivered
	outcomeDropped
	outcomeDead
)

func (r *Relay) redrive(ctx context.Context, e resilience.OutboxEntry) (redriveOutcome, error) {
	st := r.coord.store
	log := zap.L().With(
		zap.String("component", "leadsync.relay"),
		zap.String("entry_id", e.ID),
		zap.String("backend", e.Backend),
		zap.Int64("lead_id", e.LeadID),
	)

	lead, err := st.GetLead(ctx, e.LeadID)
	if err != nil {
		return 0, eris.Wrapf(err, "leadsync: load lead %d", e.LeadID)
	}
	if lead == nil {
		log.Info("lead gone, dropping outbox entry")
		if err := st.DeleteOutbox(ctx, e.ID); err != nil {
			return 0, eris.Wrapf(err, "leadsync: delete outbox entry %s", e.ID)
		}
		return outcomeDropped, nil
	}

	a, ok := r.adapters[e.Backend]
	if !ok {
		log.Warn("backend not configured, marking outbox entry dead")
		e.Fail(eris.Wrapf(model.ErrRemote, "backend %s is not configured", e.Backend), r.coord.opts.OutboxBackoff, r.coord.now().UTC())
		e.Status = resilience.OutboxDead
		if err := st.UpdateOutbox(ctx, e); err != nil {
			return 0, eris.Wrapf(err, "leadsync: update outbox entry %s", e.ID)
		}
		return outcomeDead, nil
	}

	res := r.coord.push(ctx, *lead, a)
	if res.OK() {
		if err := st.DeleteOutbox(ctx, e.ID); err != nil {
			return 0, eris.Wrapf(err, "leadsync: delete outbox entry %s", e.ID)
		}
		log.Info("outbox entry delivered", zap.Int("attempts", e.Attempts+1))
		return outcomeDelivered, nil
	}

	e.Fail(res.Err(), r.coord.opts.OutboxBackoff, r.coord.now().UTC())
	if err := st.UpdateOutbox(ctx, e); err != nil {
		return 0, eris.Wrapf(err, "leadsync: update outbox entry %s", e.ID)
	}
	if e.Status == resilience.OutboxDead {
		log.Warn("outbox entry dead", zap.Int("attempts", e.Attempts), zap.String("error", e.Error))
		return outcomeDead, nil
	}
	return outcomeRescheduled, nil
}
