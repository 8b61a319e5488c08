package reconcile

import (
	"fmt"

	"github.com/okian/chargeview/internal/domain/model"
)

// Report defaults.
const (
	DefaultCostWindow  = 5
	DefaultRadarLimit  = 5
	DefaultEnergyScale = 10.0
)

// DeriveReports builds the chart projections with the default window, limit
// and energy scale.
func DeriveReports(history []model.TelemetryRecord, stats []model.ClusterStats) model.Reports {
	return deriveReports(history, stats, DefaultCostWindow, DefaultRadarLimit, DefaultEnergyScale)
}

func deriveReports(history []model.TelemetryRecord, stats []model.ClusterStats, window, limit int, scale float64) model.Reports {
	start := max(0, len(history)-max(window, 0))
	cost := make([]model.CostPoint, 0, len(history)-start)
	for _, rec := range history[start:] {
		cost = append(cost, model.CostPoint{ID: rec.ID, Timestamp: rec.Timestamp, Cost: rec.Cost})
	}

	n := min(len(stats), max(limit, 0))
	perf := make([]model.PerformancePoint, 0, n)
	for _, s := range stats[:n] {
		perf = append(perf, model.PerformancePoint{
			Subject: fmt.Sprintf("Cluster %d", s.Cluster),
			A:       s.AvgTemp,
			B:       roundTo(s.AvgEnergy*scale, 2),
		})
	}
	return model.Reports{CostDistribution: cost, PerformanceData: perf}
}

// Summarize computes the summary card numbers. Averages over an empty
// history are 0. Temperature averages ignore records without a valid value.
func Summarize(history []model.TelemetryRecord, merged []model.MergedRecord, stats []model.ClusterStats) model.Summary {
	var (
		cost, duration, temp float64
		temps                int
	)
	for _, rec := range history {
		cost += rec.Cost
		duration += rec.Duration
		if rec.Temperature.Valid() {
			temp += float64(rec.Temperature)
			temps++
		}
	}

	s := model.Summary{
		TotalCost:    roundTo(cost, 2),
		RecordCount:  len(history),
		MergedCount:  len(merged),
		ClusterCount: len(stats),
	}
	if len(history) > 0 {
		s.AvgDuration = roundTo(duration/float64(len(history)), 2)
	}
	if temps > 0 {
		s.AvgTemperature = roundTo(temp/float64(temps), 1)
	}
	return s
}
