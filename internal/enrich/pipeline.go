// Package enrich implements the per-lead enrichment pipeline: identity
// resolution, phone discovery, phone intelligence, gatekeeping, age
// enrichment and DNC checks.
package enrich

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/geo"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/resolve"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
	"github.com/sells-group/lead-enricher/pkg/telnyx"
)

// Pipeline runs the enrichment stages for one lead at a time. It is safe to
// reuse across leads but is driven sequentially.
type Pipeline struct {
	skiptrace skiptrace.Client
	telnyx    telnyx.Client
	dnc       *DNCChecker
	zips      *geo.ZipIndex
	gate      *Gatekeeper
	calc      *cost.Calculator
	tally     *cost.Tally
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDNC enables the inline DNC stage.
func WithDNC(c *DNCChecker) Option {
	return func(p *Pipeline) { p.dnc = c }
}

// WithZipIndex sets the local ZIP index used when a lead has no ZIP.
func WithZipIndex(z *geo.ZipIndex) Option {
	return func(p *Pipeline) { p.zips = z }
}

// WithGatekeeper replaces the default gatekeeping rules.
func WithGatekeeper(g *Gatekeeper) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.gate = g
		}
	}
}

// WithCost prices each paid call. The tally, when set, accumulates spend
// across leads.
func WithCost(calc *cost.Calculator, tally *cost.Tally) Option {
	return func(p *Pipeline) {
		p.calc = calc
		p.tally = tally
	}
}

// New creates a Pipeline over the given providers.
func New(st skiptrace.Client, tx telnyx.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		skiptrace: st,
		telnyx:    tx,
		gate:      defaultGatekeeper,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// DNCEnabled reports whether the inline DNC stage runs.
func (p *Pipeline) DNCEnabled() bool {
	return p.dnc != nil
}

// Enrich runs every stage for lead and returns the aggregated result. It
// never returns an error: stage failures are recorded on the result, the
// first one in result.Error. The result carries no timestamps, so identical
// leads against deterministic providers yield identical results.
func (p *Pipeline) Enrich(ctx context.Context, lead model.Lead) *model.EnrichmentResult {
	r := &model.EnrichmentResult{
		Email:       strings.TrimSpace(lead.Email),
		LinkedInURL: lead.LinkedInURL,
		Title:       lead.Title,
		Company:     lead.Company,
		Phone:       NormalizePhone(lead.Phone),
	}
	log := zap.L().With(zap.String("lead", lead.Name))

	track := func(name string, fn func() model.StageOutcome) {
		start := time.Now()
		out := fn()
		out.Name = name
		r.Stages = append(r.Stages, out)

		fields := []zap.Field{
			zap.String("stage", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		switch out.Status {
		case model.StageStatusFailed:
			r.RecordError(out.Error)
			log.Warn("enrich: stage failed", append(fields, zap.String("error", out.Error))...)
		case model.StageStatusSkipped:
			log.Debug("enrich: stage skipped", append(fields, zap.String("reason", out.Reason))...)
		default:
			log.Debug("enrich: stage complete", append(fields, zap.String("reason", out.Reason))...)
		}
	}

	var id resolve.Identity
	track(model.StageResolve, func() model.StageOutcome {
		id = resolve.Resolve(lead, p.zips)
		return complete("")
	})

	if r.Phone != "" && !id.HasName() {
		track(model.StageReverseLookup, func() model.StageOutcome {
			var out model.StageOutcome
			id, out = p.reverseLookup(ctx, r, id)
			return out
		})
	}

	var found *skiptrace.Person
	track(model.StageDiscovery, func() model.StageOutcome {
		if r.Phone != "" {
			return skipped("phone supplied")
		}
		var out model.StageOutcome
		found, out = p.discoverPhone(ctx, r, id)
		return out
	})
	if found != nil {
		r.Phone = NormalizePhone(found.Phone)
		if r.Email == "" {
			r.Email = strings.TrimSpace(found.Email)
		}
		r.SkipTracingData = found.Raw
	}

	track(model.StagePhoneIntel, func() model.StageOutcome {
		intel, out := p.classifyPhone(ctx, r, r.Phone)
		r.LineType = intel.LineType
		r.CarrierName = intel.CarrierName
		r.TelnyxLookupData = intel.Raw
		return out
	})

	var gate model.GateDecision
	track(model.StageGatekeep, func() model.StageOutcome {
		gate = p.gate.Decide(r.Phone, r.LineType, r.CarrierName)
		r.Gatekeep = &gate
		return complete(string(gate.Reason))
	})

	var ageRec *skiptrace.AgeRecord
	track(model.StageAge, func() model.StageOutcome {
		if !gate.Passed {
			return skipped("gatekeep: " + string(gate.Reason))
		}
		var out model.StageOutcome
		ageRec, out = p.lookupAge(ctx, r, id)
		return out
	})
	if ageRec != nil {
		r.AgeLookupData = ageRec.Raw
	}

	r.FirstName = id.FirstName
	r.LastName = id.LastName
	r.Name = strings.TrimSpace(lead.Name)
	if r.Name == "" {
		r.Name = id.FullName()
	}
	r.City = id.City
	r.State = id.State
	r.ZipCode = id.ZipCode
	r.Age, r.DOB = mergeAge(lead, found, ageRec)

	if p.dnc != nil {
		track(model.StageDNC, func() model.StageOutcome {
			if r.Phone == "" {
				return skipped("no phone")
			}
			status, out := p.dnc.Check(ctx, r.Phone)
			if status != nil {
				p.charge(r, cost.DNCCheck, false)
				r.DNC = status
			}
			return out
		})
	}

	log.Info("enrich: lead complete",
		zap.Bool("gatekeep_passed", gate.Passed),
		zap.Float64("cost_usd", r.CostUSD),
		zap.Bool("errored", r.Error != ""),
	)
	return r
}

// charge prices one paid call onto r. Cached answers are free.
func (p *Pipeline) charge(r *model.EnrichmentResult, kind string, cached bool) {
	if cached {
		return
	}
	if p.tally != nil {
		r.CostUSD += p.tally.Add(kind)
		return
	}
	r.CostUSD += p.calc.Price(kind)
}

// mergeAge applies field precedence: age stage, then discovery, then the
// lead's own value. Age and DOB are merged independently.
func mergeAge(lead model.Lead, found *skiptrace.Person, rec *skiptrace.AgeRecord) (age, dob string) {
	var discAge, discDOB, recAge, recDOB string
	if found != nil {
		discAge, discDOB = found.Age, found.DOB
	}
	if rec != nil {
		recAge, recDOB = rec.Age, rec.DOB
	}
	return firstNonEmpty(recAge, discAge, lead.Age), firstNonEmpty(recDOB, discDOB)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func complete(reason string) model.StageOutcome {
	return model.StageOutcome{Status: model.StageStatusComplete, Reason: reason}
}

func skipped(reason string) model.StageOutcome {
	return model.StageOutcome{Status: model.StageStatusSkipped, Reason: reason}
}

func failed(err error) model.StageOutcome {
	return model.StageOutcome{Status: model.StageStatusFailed, Error: err.Error()}
}
