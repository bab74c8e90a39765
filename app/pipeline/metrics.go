package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/portal"
)

const metricsNamespace = "moltdir"

// Metrics holds the run counters and dataset gauges.
type Metrics struct {
	Registry *prometheus.Registry

	CandidatesTotal *prometheus.CounterVec
	OutcomesTotal   *prometheus.CounterVec
	DeltaTotal      *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.GaugeVec
	LastRun         *prometheus.GaugeVec

	Portals    *prometheus.GaugeVec
	Exclusions *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CandidatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "candidates_total",
			Help:      "Candidates evaluated, by discovery source",
		}, []string{"source"}),
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "candidate_outcomes_total",
			Help:      "Per-candidate merge outcomes",
		}, []string{"outcome"}),
		DeltaTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_changes_total",
			Help:      "Dataset changes written, by kind",
		}, []string{"kind"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Pipeline runs, by mode and result",
		}, []string{"mode", "result"}),
		RunDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run",
		}, []string{"mode"}),
		LastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}, []string{"mode"}),
		Portals: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "portals",
			Help:      "Portals in the dataset, by trust",
		}, []string{"trust"}),
		Exclusions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "exclusions",
			Help:      "Excluded domains, by category",
		}, []string{"category"}),
	}
}

func (m *Metrics) ObserveReport(r *Report, err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RunsTotal.WithLabelValues(r.Mode, result).Inc()
	m.RunDuration.WithLabelValues(r.Mode).Set(r.Duration.Seconds())
	m.LastRun.WithLabelValues(r.Mode).Set(float64(time.Now().Unix()))

	for source, n := range r.BySource {
		m.CandidatesTotal.WithLabelValues(source).Add(float64(n))
	}
	for outcome, n := range r.Merge.Outcomes {
		m.OutcomesTotal.WithLabelValues(string(outcome)).Add(float64(n))
	}
	d := r.Merge.Delta
	m.DeltaTotal.WithLabelValues("added").Add(float64(len(d.Added)))
	m.DeltaTotal.WithLabelValues("removed").Add(float64(len(d.Removed)))
	m.DeltaTotal.WithLabelValues("changed").Add(float64(len(d.Changed)))
	m.DeltaTotal.WithLabelValues("excluded").Add(float64(len(d.Excluded)))
}

// ObserveDataset resets the dataset gauges from the current state.
func (m *Metrics) ObserveDataset(ds *dataset.Dataset) {
	if m == nil || ds == nil {
		return
	}

	stats := ds.Stats()
	m.Portals.Reset()
	for _, trust := range []portal.Trust{portal.TrustUntrusted, portal.TrustLow, portal.TrustMedium, portal.TrustHigh, portal.TrustVerified} {
		m.Portals.WithLabelValues(string(trust)).Set(float64(stats.ByTrust[trust]))
	}
	m.Exclusions.Reset()
	for _, category := range portal.ExclusionCategories {
		m.Exclusions.WithLabelValues(string(category)).Set(float64(stats.Excluded[category]))
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
