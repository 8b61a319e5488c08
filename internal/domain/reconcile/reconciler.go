// Package reconcile joins charging telemetry with cluster assignments and
// derives the dashboard views. Everything here is pure: the same inputs
// always give the same output.
package reconcile

import (
	"github.com/okian/chargeview/internal/domain/model"
)

// Inputs are the raw backend payloads of the last successful fetch of each
// endpoint. A nil Latest means no latest record.
type Inputs struct {
	Latest   model.RawRecord   `json:"latest"`
	History  []model.RawRecord `json:"history"`
	Clusters []model.RawRecord `json:"clusters"`
}

// Derived is the full output of one reconciliation.
type Derived struct {
	Latest      *model.TelemetryRecord
	History     []model.TelemetryRecord
	Assignments []model.ClusterAssignment
	Index       model.ClusterIndex
	Merged      []model.MergedRecord
	Stats       []model.ClusterStats
	Reports     model.Reports
	Summary     model.Summary
	Excluded    Exclusions
}

// Reconciler runs the reconciliation pipeline with presentation settings.
type Reconciler struct {
	palette     Palette
	costWindow  int
	radarLimit  int
	energyScale float64
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPalette sets the cluster colors. An empty palette is ignored.
func WithPalette(colors []string) Option {
	return func(r *Reconciler) {
		if len(colors) > 0 {
			r.palette = append(Palette(nil), colors...)
		}
	}
}

// WithCostWindow sets how many trailing history entries feed the cost chart.
func WithCostWindow(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.costWindow = n
		}
	}
}

// WithRadarLimit sets how many clusters feed the performance radar.
func WithRadarLimit(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.radarLimit = n
		}
	}
}

// WithEnergyScale sets the factor applied to average energy on the radar.
func WithEnergyScale(f float64) Option {
	return func(r *Reconciler) {
		if f > 0 {
			r.energyScale = f
		}
	}
}

// DefaultPalette is used when no palette is configured.
var DefaultPalette = Palette{"#8884d8", "#82ca9d", "#ffc658", "#ff7300", "#d0ed57", "#a4de6c"}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		palette:     DefaultPalette,
		costWindow:  DefaultCostWindow,
		radarLimit:  DefaultRadarLimit,
		energyScale: DefaultEnergyScale,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Palette returns the configured palette.
func (r *Reconciler) Palette() Palette { return r.palette }

// Reconcile normalizes the inputs and derives every view from them.
func (r *Reconciler) Reconcile(in Inputs) Derived {
	history := NormalizeHistory(in.History)
	index, assignments, badAssignments := BuildClusterIndex(in.Clusters)

	merged := Join(history, index)
	for i := range merged {
		merged[i].Color = r.palette.Color(merged[i].Cluster)
	}

	stats := SortedStats(AggregateByCluster(merged))
	excluded := CountExclusions(history, index)
	excluded.InvalidCluster = badAssignments

	return Derived{
		Latest:      NormalizeLatest(in.Latest),
		History:     history,
		Assignments: assignments,
		Index:       index,
		Merged:      merged,
		Stats:       stats,
		Reports:     deriveReports(history, stats, r.costWindow, r.radarLimit, r.energyScale),
		Summary:     Summarize(history, merged, stats),
		Excluded:    excluded,
	}
}
