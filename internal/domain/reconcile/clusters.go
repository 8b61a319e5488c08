package reconcile

import (
	"maps"
	"slices"

	"github.com/okian/chargeview/internal/domain/model"
)

// Exclusions counts history records left out of the merged view.
type Exclusions struct {
	Unclustered     int `json:"unclustered"`
	InvalidFeatures int `json:"invalidFeatures"`
	InvalidCluster  int `json:"invalidCluster"`
}

// BuildClusterIndex turns raw assignments into a lookup keyed by normalized
// identifier. When an identifier repeats, the later entry wins. Entries
// without a usable id or label are skipped and counted.
func BuildClusterIndex(raw []model.RawRecord) (model.ClusterIndex, []model.ClusterAssignment, int) {
	index := make(model.ClusterIndex, len(raw))
	assignments := make([]model.ClusterAssignment, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		key, ok := NormalizeID(r[model.FieldDeviceID])
		if !ok {
			skipped++
			continue
		}
		label, ok := clusterLabel(r[model.FieldCluster])
		if !ok {
			skipped++
			continue
		}
		index[key] = label
		assignments = append(assignments, model.ClusterAssignment{
			DeviceID: r[model.FieldDeviceID],
			Key:      key,
			Cluster:  label,
		})
	}
	return index, assignments, skipped
}

// Join keeps the history records that resolve to a cluster and carry both
// plotting features, in history order. Color is left empty.
func Join(history []model.TelemetryRecord, index model.ClusterIndex) []model.MergedRecord {
	merged := make([]model.MergedRecord, 0, len(history))
	for _, rec := range history {
		label, ok := lookup(index, rec)
		if !ok || !rec.Temperature.Valid() || !rec.Energy.Valid() {
			continue
		}
		merged = append(merged, model.MergedRecord{TelemetryRecord: rec, Cluster: label})
	}
	return merged
}

// CountExclusions reports why history records did not make it into Join's
// output.
func CountExclusions(history []model.TelemetryRecord, index model.ClusterIndex) Exclusions {
	var ex Exclusions
	for _, rec := range history {
		if _, ok := lookup(index, rec); !ok {
			ex.Unclustered++
			continue
		}
		if !rec.Temperature.Valid() || !rec.Energy.Valid() {
			ex.InvalidFeatures++
		}
	}
	return ex
}

func lookup(index model.ClusterIndex, rec model.TelemetryRecord) (int, bool) {
	if rec.Key == "" {
		return 0, false
	}
	label, ok := index[rec.Key]
	return label, ok
}

// AggregateByCluster groups merged records by label and computes rounded
// averages. Every label present in merged has a count of at least 1.
func AggregateByCluster(merged []model.MergedRecord) map[int]model.ClusterStats {
	type acc struct {
		count       int
		temp, energ float64
	}
	sums := make(map[int]*acc)
	for _, m := range merged {
		a, ok := sums[m.Cluster]
		if !ok {
			a = &acc{}
			sums[m.Cluster] = a
		}
		a.count++
		a.temp += float64(m.Temperature)
		a.energ += float64(m.Energy)
	}

	stats := make(map[int]model.ClusterStats, len(sums))
	for label, a := range sums {
		n := float64(a.count)
		stats[label] = model.ClusterStats{
			Cluster:   label,
			Count:     a.count,
			AvgTemp:   roundTo(a.temp/n, 1),
			AvgEnergy: roundTo(a.energ/n, 2),
		}
	}
	return stats
}

// SortedStats returns the stats ordered by ascending label.
func SortedStats(stats map[int]model.ClusterStats) []model.ClusterStats {
	out := make([]model.ClusterStats, 0, len(stats))
	for _, label := range slices.Sorted(maps.Keys(stats)) {
		out = append(out, stats[label])
	}
	return out
}
