// Package batch drives a collection of leads through the enrichment pipeline
// one at a time, in input order, with periodic checkpoints.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/metrics"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/resilience"
)

// DefaultCheckpointInterval is the number of leads between checkpoints.
const DefaultCheckpointInterval = 5

// Enricher enriches a single lead. *enrich.Pipeline satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, lead model.Lead) *model.EnrichmentResult
}

// EnricherFunc adapts a function to Enricher.
type EnricherFunc func(ctx context.Context, lead model.Lead) *model.EnrichmentResult

// Enrich calls f.
func (f EnricherFunc) Enrich(ctx context.Context, lead model.Lead) *model.EnrichmentResult {
	return f(ctx, lead)
}

// Limiter spaces consecutive leads. *apiclient.RateLimiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Checkpointer persists the completed prefix of a run. *sink.Checkpoint
// satisfies it.
type Checkpointer interface {
	Save(results []model.EnrichmentResult) error
}

// ResultStore is the subset of store.Store the driver writes to.
type ResultStore interface {
	SaveResults(ctx context.Context, runID string, offset int, results []model.EnrichmentResult) error
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
}

// Driver runs leads sequentially through an Enricher.
type Driver struct {
	enricher   Enricher
	limiter    Limiter
	checkpoint Checkpointer
	store      ResultStore
	metrics    *metrics.Recorder
	runID      string
	interval   int
	maxRetries int
	prior      []model.EnrichmentResult
	now        func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithLimiter applies l before every lead.
func WithLimiter(l Limiter) Option {
	return func(d *Driver) { d.limiter = l }
}

// WithCheckpoint writes the completed prefix to c every interval leads.
// Intervals below 1 use DefaultCheckpointInterval.
func WithCheckpoint(c Checkpointer, interval int) Option {
	return func(d *Driver) {
		d.checkpoint = c
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithStore records results and dead letters for runID in s at each
// checkpoint.
func WithStore(s ResultStore, runID string, dlqMaxRetries int) Option {
	return func(d *Driver) {
		d.store = s
		d.runID = runID
		d.maxRetries = dlqMaxRetries
	}
}

// WithMetrics records per-lead outcomes in m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithResume treats prior as the already completed prefix of the input.
func WithResume(prior []model.EnrichmentResult) Option {
	return func(d *Driver) { d.prior = prior }
}

// New creates a Driver.
func New(e Enricher, opts ...Option) *Driver {
	d := &Driver{
		enricher: e,
		interval: DefaultCheckpointInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run enriches leads in order. A lead that panics is recorded with its error
// and the run continues. On context cancellation the completed prefix is
// checkpointed and the context error returned along with the partial batch.
// A checkpoint write failure is fatal.
func (d *Driver) Run(ctx context.Context, leads []model.Lead) (*model.EnrichedBatch, error) {
	if len(d.prior) > len(leads) {
		return nil, eris.Errorf("batch: checkpoint holds %d results for %d leads", len(d.prior), len(leads))
	}

	start := d.now()
	b := &model.EnrichedBatch{
		Results: make([]model.EnrichmentResult, 0, len(leads)),
		Stats:   model.BatchStats{Total: len(leads)},
	}
	for i := range d.prior {
		d.record(b, &d.prior[i])
	}
	saved := 0

	if len(d.prior) > 0 {
		zap.L().Info("batch: resuming from checkpoint",
			zap.Int("completed", len(d.prior)),
			zap.Int("total", len(leads)),
		)
	}

	for i := len(d.prior); i < len(leads); i++ {
		if err := ctx.Err(); err != nil {
			return b, d.interrupt(ctx, b, &saved, err)
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return b, d.interrupt(ctx, b, &saved, err)
			}
		}

		res := d.enrichOne(ctx, i, leads[i])
		if err := ctx.Err(); err != nil {
			// The lead did not finish; a resumed run enriches it again.
			return b, d.interrupt(ctx, b, &saved, err)
		}
		d.record(b, res)

		zap.L().Debug("batch: lead processed",
			zap.Int("position", i),
			zap.Int("processed", b.Stats.Processed),
			zap.Int("total", len(leads)),
			zap.Bool("errored", res.Error != ""),
		)

		if (i+1)%d.interval == 0 {
			if err := d.flush(ctx, b, &saved); err != nil {
				return b, err
			}
		}
	}

	d.persist(ctx, b, &saved)

	elapsed := d.now().Sub(start)
	d.metrics.SetDuration(elapsed.Seconds())
	c := b.Completion()
	zap.L().Info("batch: complete",
		zap.Int("total", b.Stats.Total),
		zap.Int("succeeded", b.Stats.Succeeded),
		zap.Int("errored", b.Stats.Errored),
		zap.Int("skipped", b.Stats.Skipped),
		zap.Float64("spend_usd", b.Stats.SpendUSD),
		zap.Float64("phone_pct", c.Phone),
		zap.Float64("email_pct", c.Email),
		zap.Float64("age_pct", c.Age),
		zap.Float64("line_type_pct", c.LineType),
		zap.Float64("dnc_pct", c.DNC),
		zap.Duration("elapsed", elapsed),
	)
	return b, nil
}

// SafeEnrich runs e for one lead and converts a panic or a nil result into
// an error.
func SafeEnrich(ctx context.Context, e Enricher, lead model.Lead) (res *model.EnrichmentResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, eris.New(fmt.Sprintf("batch: lead panicked: %v", rec))
		}
	}()
	res = e.Enrich(ctx, lead)
	if res == nil {
		return nil, eris.New("batch: enricher returned no result")
	}
	return res, nil
}

// FailedResult is the placeholder recorded for a lead whose enrichment
// failed outright. It keeps the lead's own fields, with phone and email
// normalized as the pipeline does.
func FailedResult(lead model.Lead, err error) *model.EnrichmentResult {
	return &model.EnrichmentResult{
		Name:      lead.Name,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		City:      lead.City,
		State:     lead.State,
		ZipCode:   lead.ZipCode,
		Phone:     enrich.NormalizePhone(lead.Phone),
		Email:     strings.TrimSpace(lead.Email),
		Error:     err.Error(),
	}
}

func (d *Driver) enrichOne(ctx context.Context, pos int, lead model.Lead) *model.EnrichmentResult {
	res, err := SafeEnrich(ctx, d.enricher, lead)
	if err == nil {
		return res
	}
	zap.L().Error("batch: lead failed", zap.Int("position", pos), zap.Error(err))
	d.deadLetter(ctx, pos, lead, err)
	return FailedResult(lead, err)
}

func (d *Driver) deadLetter(ctx context.Context, pos int, lead model.Lead, err error) {
	d.metrics.DeadLettered()
	if d.store == nil {
		return
	}
	entry := resilience.NewDLQEntry(d.runID, pos, lead, "", err, d.maxRetries, d.now().UTC())
	if qErr := d.store.EnqueueDLQ(ctx, entry); qErr != nil {
		zap.L().Warn("batch: enqueue dead letter failed", zap.Int("position", pos), zap.Error(qErr))
	}
}

func (d *Driver) record(b *model.EnrichedBatch, res *model.EnrichmentResult) {
	b.Results = append(b.Results, *res)
	b.Stats.Processed++
	b.Stats.SpendUSD += res.CostUSD
	switch metrics.Outcome(res) {
	case metrics.OutcomeErrored:
		b.Stats.Errored++
	case metrics.OutcomeSkipped:
		b.Stats.Skipped++
	default:
		b.Stats.Succeeded++
	}
	d.metrics.ObserveResult(res)
}

// flush writes the checkpoint and stores results not yet saved.
func (d *Driver) flush(ctx context.Context, b *model.EnrichedBatch, saved *int) error {
	if d.checkpoint != nil {
		if err := d.checkpoint.Save(b.Results); err != nil {
			return eris.Wrap(err, "batch: write checkpoint")
		}
		d.metrics.CheckpointWritten()
		zap.L().Info("batch: checkpoint",
			zap.Int("processed", b.Stats.Processed),
			zap.Int("total", b.Stats.Total),
			zap.Int("errored", b.Stats.Errored),
		)
	}
	d.persist(ctx, b, saved)
	return nil
}

// persist saves results after *saved to the store. Store failures are logged;
// the checkpoint file remains the source of truth for resume.
func (d *Driver) persist(ctx context.Context, b *model.EnrichedBatch, saved *int) {
	if d.store == nil || *saved >= len(b.Results) {
		return
	}
	if err := d.store.SaveResults(ctx, d.runID, *saved, b.Results[*saved:]); err != nil {
		zap.L().Warn("batch: save results failed",
			zap.String("run_id", d.runID),
			zap.Int("offset", *saved),
			zap.Error(err),
		)
		return
	}
	*saved = len(b.Results)
}

// interrupt flushes the completed prefix after cancellation and returns cause.
func (d *Driver) interrupt(ctx context.Context, b *model.EnrichedBatch, saved *int, cause error) error {
	zap.L().Warn("batch: interrupted",
		zap.Int("processed", b.Stats.Processed),
		zap.Int("total", b.Stats.Total),
		zap.Error(cause),
	)
	// The run context is done; persist with a detached one.
	flushCtx := context.WithoutCancel(ctx)
	if err := d.flush(flushCtx, b, saved); err != nil {
		return err
	}
	return cause
}
