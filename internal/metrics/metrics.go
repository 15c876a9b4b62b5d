// Package metrics counts batch enrichment outcomes in a Prometheus registry
// and exports them in the node_exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
)

const namespace = "leadgen"

// Lead outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeErrored   = "errored"
	OutcomeSkipped   = "skipped"
)

// Recorder holds the batch counters. A nil *Recorder discards everything.
type Recorder struct {
	registry    *prometheus.Registry
	leads       *prometheus.CounterVec
	stages      *prometheus.CounterVec
	gate        *prometheus.CounterVec
	spend       prometheus.Counter
	checkpoints prometheus.Counter
	dlq         prometheus.Counter
	duration    prometheus.Gauge
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		leads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Leads processed by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_total",
			Help:      "Pipeline stage outcomes by stage and status.",
		}, []string{"stage", "status"}),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gatekeep_decisions_total",
			Help:      "Gatekeep decisions by reason.",
		}, []string{"reason"}),
		spend: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spend_usd_total",
			Help:      "Estimated provider spend in USD.",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoints written.",
		}),
		dlq: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_total",
			Help:      "Leads sent to the dead-letter queue.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last batch run.",
		}),
	}
	r.registry.MustRegister(r.leads, r.stages, r.gate, r.spend, r.checkpoints, r.dlq, r.duration)
	return r
}

// Registry exposes the underlying registry as a Gatherer.
func (r *Recorder) Registry() prometheus.Gatherer {
	return r.registry
}

// ObserveResult records one lead's outcome, stage statuses and spend.
func (r *Recorder) ObserveResult(res *model.EnrichmentResult) {
	if r == nil || res == nil {
		return
	}
	r.leads.WithLabelValues(Outcome(res)).Inc()
	for _, s := range res.Stages {
		r.stages.WithLabelValues(s.Name, string(s.Status)).Inc()
	}
	if res.Gatekeep != nil {
		r.gate.WithLabelValues(string(res.Gatekeep.Reason)).Inc()
	}
	if res.CostUSD > 0 {
		r.spend.Add(res.CostUSD)
	}
}

// CheckpointWritten counts a checkpoint.
func (r *Recorder) CheckpointWritten() {
	if r == nil {
		return
	}
	r.checkpoints.Inc()
}

// DeadLettered counts a lead sent to the dead-letter queue.
func (r *Recorder) DeadLettered() {
	if r == nil {
		return
	}
	r.dlq.Inc()
}

// SetDuration records the run wall time in seconds.
func (r *Recorder) SetDuration(seconds float64) {
	if r == nil {
		return
	}
	r.duration.Set(seconds)
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return eris.Wrapf(prometheus.WriteToTextfile(path, r.registry), "metrics: write %s", path)
}

// enrichmentStages are the provider-backed stages. Resolve and gatekeep are
// local and always complete, so they do not count toward an outcome.
var enrichmentStages = map[string]bool{
	model.StageReverseLookup: true,
	model.StageDiscovery:     true,
	model.StagePhoneIntel:    true,
	model.StageAge:           true,
}

// Outcome classifies a result. A lead with no completed provider stage counts
// as skipped.
func Outcome(res *model.EnrichmentResult) string {
	if res.Error != "" {
		return OutcomeErrored
	}
	for _, s := range res.Stages {
		if enrichmentStages[s.Name] && s.Status == model.StageStatusComplete {
			return OutcomeSucceeded
		}
	}
	return OutcomeSkipped
}
