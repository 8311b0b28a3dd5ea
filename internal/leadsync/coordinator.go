// Package leadsync turns conversational text into stored leads and keeps the
// configured CRMs in step with the local store. Every caller-facing operation
// returns a model.SyncResult whose Message can be read back to the user.
package leadsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/crm"
	"github.com/sells-group/leadsync/internal/extract"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
	"github.com/sells-group/leadsync/internal/store"
)

// Options tune the coordinator. The zero value is usable.
type Options struct {
	// EmailDomain is used to derive an email for leads that lack one.
	EmailDomain string
	// Retry governs in-line retries of a single push. The default makes one
	// attempt and leaves recovery to the outbox.
	Retry resilience.RetryPolicy
	// Breaker configures the per-backend circuit breakers.
	Breaker resilience.BreakerConfig
	// OutboxMaxAttempts bounds how often the relay re-drives one entry.
	OutboxMaxAttempts int
	// OutboxBackoff schedules the next relay attempt after a failure.
	OutboxBackoff resilience.RetryPolicy
	// DisableOutbox reports failed pushes without queueing them.
	DisableOutbox bool
}

const defaultOutboxMaxAttempts = 5

func (o Options) withDefaults() Options {
	if o.EmailDomain == "" {
		o.EmailDomain = model.DefaultEmailDomain
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = resilience.DefaultRetryPolicy()
	}
	if o.OutboxMaxAttempts <= 0 {
		o.OutboxMaxAttempts = defaultOutboxMaxAttempts
	}
	if o.OutboxBackoff.InitialBackoff <= 0 {
		o.OutboxBackoff = resilience.RetryPolicy{
			InitialBackoff: 30 * time.Second,
			MaxBackoff:     30 * time.Minute,
			Multiplier:     2,
			Jitter:         0.1,
		}
	}
	return o
}

// Coordinator runs the capture state machine against a Store and a set of
// CRM adapters.
type Coordinator struct {
	store     store.Store
	adapters  []crm.Adapter
	breakers  *resilience.Breakers
	extractor extract.Extractor
	opts      Options
	now       func() time.Time
}

// New returns a Coordinator. adapters may be empty, in which case leads are
// only stored locally.
func New(st store.Store, adapters []crm.Adapter, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		store:    st,
		adapters: adapters,
		breakers: resilience.NewBreakers(opts.Breaker),
		opts:     opts,
		now:      time.Now,
	}
}

// Backends returns the names of the configured adapters.
func (c *Coordinator) Backends() []string {
	names := make([]string, 0, len(c.adapters))
	for _, a := range c.adapters {
		names = append(names, string(a.Backend()))
	}
	return names
}

// BreakerStates reports the circuit state of every backend pushed to so far.
func (c *Coordinator) BreakerStates() map[string]resilience.BreakerState {
	return c.breakers.States()
}

func (c *Coordinator) log() *zap.Logger {
	return zap.L().With(zap.String("component", "leadsync.coordinator"))
}

// Extract pulls lead fields out of text. It never fails; text with nothing
// recognizable yields an empty result.
func (c *Coordinator) Extract(text string) model.ExtractionResult {
	return c.extractor.Extract(text)
}

// Capture extracts a lead from text and adds it. Text without a needs label
// keeps the whole utterance as the lead's needs.
func (c *Coordinator) Capture(ctx context.Context, text string) model.SyncResult {
	fields := c.Extract(text)
	if len(fields) == 0 {
		res := failed(model.ErrorKindValidation, "I couldn't find any lead details in that.")
		recordOperation("capture", res)
		return res
	}
	lead := fields.ToLead()
	if lead.Needs == "" {
		lead.Needs = strings.TrimSpace(text)
	}
	res := c.addLead(ctx, lead)
	recordOperation("capture", res)
	return res
}

// AddLead validates lead, stores it and pushes it to every backend.
func (c *Coordinator) AddLead(ctx context.Context, lead model.Lead) model.SyncResult {
	res := c.addLead(ctx, lead)
	recordOperation("add", res)
	return res
}

func (c *Coordinator) addLead(ctx context.Context, lead model.Lead) model.SyncResult {
	log := c.log()

	lead.ID = 0
	lead.Name = strings.TrimSpace(lead.Name)
	if lead.Email == "" && lead.Name != "" {
		lead.Email = model.DeriveEmail(lead.Name, c.opts.EmailDomain)
	}
	if lead.Needs == "" && lead.Timeline != "" {
		lead.Needs = "Timeline: " + lead.Timeline
	}

	// VALIDATING
	if missing := lead.Missing(); len(missing) > 0 {
		log.Debug("lead rejected", zap.String("missing", joinFields(missing)))
		return failed(model.ErrorKindValidation,
			fmt.Sprintf("I couldn't save the lead because the %s %s missing.", joinFields(missing), isAre(len(missing))))
	}

	// LOCAL_COMMIT
	if err := c.store.Insert(ctx, &lead); err != nil {
		log.Error("local commit failed", zap.String("name", lead.Name), zap.Error(err))
		return failedErr(err, "I couldn't save the lead to the local database.")
	}
	log.Info("lead stored", zap.Int64("lead_id", lead.ID), zap.String("name", lead.Name))

	// REMOTE_UPSERT
	outcomes := c.fanOut(ctx, lead)

	res := model.SyncResult{
		Stage:    model.StageDone,
		Lead:     &lead,
		Affected: 1,
		Local:    crm.StatusSuccess,
		Remote:   outcomes,
	}
	res.Status, res.Message = summarize(outcomes, fmt.Sprintf("Saved lead %s", lead.Name))
	return res
}

// UpdateLead sets one field on every lead with this name and re-pushes the
// updated leads.
func (c *Coordinator) UpdateLead(ctx context.Context, name, field, value string) model.SyncResult {
	res := c.updateLead(ctx, name, field, value)
	recordOperation("update", res)
	return res
}

func (c *Coordinator) updateLead(ctx context.Context, name, field, value string) model.SyncResult {
	log := c.log()

	f, err := model.ParseField(field)
	if err != nil {
		return failed(model.ErrorKindValidation, fmt.Sprintf("I can't update %q; try name, company, email, needs, budget or timeline.", field))
	}
	value = strings.TrimSpace(value)
	if value == "" && isRequired(f) {
		return failed(model.ErrorKindValidation, fmt.Sprintf("The %s can't be empty.", f))
	}

	// The IDs are taken before the write so a rename re-pushes only the
	// renamed leads, not others that already carried the new name.
	matched, err := c.store.FindByName(ctx, name)
	if err != nil {
		log.Error("lookup before update failed", zap.String("name", name), zap.Error(err))
		return failedErr(err, "I couldn't read the lead from the local database.")
	}

	n, err := c.store.UpdateField(ctx, name, f, value)
	if err != nil {
		log.Error("update failed", zap.String("name", name), zap.Stringer("field", f), zap.Error(err))
		return failedErr(err, "I couldn't update the lead in the local database.")
	}
	if n == 0 {
		return failed(model.ErrorKindNotFound, fmt.Sprintf("I couldn't find a lead named %s.", name))
	}

	leads := make([]model.Lead, 0, len(matched))
	for _, m := range matched {
		lead, err := c.store.GetLead(ctx, m.ID)
		if err != nil {
			log.Error("reload after update failed", zap.Int64("lead_id", m.ID), zap.Error(err))
			return failedErr(err, "The lead was updated but I couldn't reload it.")
		}
		if lead != nil {
			leads = append(leads, *lead)
		}
	}

	var outcomes []model.RemoteOutcome
	for _, lead := range leads {
		outcomes = append(outcomes, c.fanOut(ctx, lead)...)
	}

	res := model.SyncResult{
		Stage:    model.StageDone,
		Affected: n,
		Local:    crm.StatusSuccess,
		Remote:   outcomes,
	}
	if len(leads) == 1 {
		res.Lead = &leads[0]
	}
	subject := fmt.Sprintf("Updated the %s of %s", f, name)
	if n > 1 {
		subject = fmt.Sprintf("Updated the %s of %d leads named %s", f, n, name)
	}
	res.Status, res.Message = summarize(outcomes, subject)
	return res
}

// DeleteLead removes every lead with this name from the local store. CRMs
// are left untouched.
func (c *Coordinator) DeleteLead(ctx context.Context, name string) model.SyncResult {
	res := c.deleteLead(ctx, name)
	recordOperation("delete", res)
	return res
}

func (c *Coordinator) deleteLead(ctx context.Context, name string) model.SyncResult {
	n, err := c.store.DeleteByName(ctx, name)
	if err != nil {
		c.log().Error("delete failed", zap.String("name", name), zap.Error(err))
		return failedErr(err, "I couldn't delete the lead from the local database.")
	}
	if n == 0 {
		return failed(model.ErrorKindNotFound, fmt.Sprintf("I couldn't find a lead named %s.", name))
	}
	msg := fmt.Sprintf("Deleted lead %s.", name)
	if n > 1 {
		msg = fmt.Sprintf("Deleted %d leads named %s.", n, name)
	}
	return model.SyncResult{Status: model.SyncSuccess, Stage: model.StageDone, Affected: n, Local: crm.StatusSuccess, Message: msg}
}

// ListLeads returns every stored lead as a display line, in storage order.
func (c *Coordinator) ListLeads(ctx context.Context) model.SyncResult {
	res := c.listLeads(ctx)
	recordOperation("list", res)
	return res
}

func (c *Coordinator) listLeads(ctx context.Context) model.SyncResult {
	leads, err := c.store.List(ctx)
	if err != nil {
		c.log().Error("list failed", zap.Error(err))
		return failedErr(err, "I couldn't read the leads from the local database.")
	}
	lines := make([]string, 0, len(leads))
	for _, l := range leads {
		lines = append(lines, l.Display())
	}
	msg := "You have no leads yet."
	switch len(leads) {
	case 0:
	case 1:
		msg = "You have 1 lead."
	default:
		msg = fmt.Sprintf("You have %d leads.", len(leads))
	}
	return model.SyncResult{
		Status:   model.SyncSuccess,
		Stage:    model.StageDone,
		Local:    crm.StatusSuccess,
		Leads:    lines,
		Affected: int64(len(leads)),
		Message:  msg,
	}
}

func failed(kind model.ErrorKind, msg string) model.SyncResult {
	return model.SyncResult{
		Status:    model.SyncError,
		Stage:     model.StageFailed,
		ErrorKind: kind,
		Message:   msg,
	}
}

func failedErr(err error, msg string) model.SyncResult {
	res := failed(model.KindOf(err), msg)
	if res.ErrorKind != model.ErrorKindStorage {
		return res
	}
	res.Local = crm.StatusError
	return res
}

// summarize derives the overall status from the remote outcomes and builds
// the spoken message around subject.
func summarize(outcomes []model.RemoteOutcome, subject string) (model.SyncStatus, string) {
	var ok, bad []string
	var queued bool
	for _, o := range outcomes {
		if o.Succeeded() {
			ok = append(ok, o.Backend)
			continue
		}
		bad = append(bad, fmt.Sprintf("%s (%s)", o.Backend, o.Message))
		queued = queued || o.Queued
	}

	if len(bad) == 0 {
		if len(ok) == 0 {
			return model.SyncSuccess, subject + "."
		}
		return model.SyncSuccess, fmt.Sprintf("%s and synced it to %s.", subject, strings.Join(dedupe(ok), ", "))
	}

	msg := fmt.Sprintf("%s locally, but syncing to %s failed.", subject, strings.Join(bad, ", "))
	if queued {
		msg += " I'll retry in the background."
	}
	return model.SyncPartial, msg
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func joinFields(fields []model.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

func isRequired(f model.Field) bool {
	for _, r := range model.StoreRequiredFields {
		if r == f {
			return true
		}
	}
	return false
}
