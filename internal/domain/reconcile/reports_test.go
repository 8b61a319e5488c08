package reconcile_test

import (
	"fmt"
	"testing"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/internal/domain/reconcile"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPalette(t *testing.T) {
	Convey("Scenario D: label 12 on a six color palette", t, func() {
		So(reconcile.DefaultPalette.Index(12), ShouldEqual, 0)
		So(reconcile.DefaultPalette.Color(12), ShouldEqual, "#8884d8")
	})

	Convey("Given arbitrary labels", t, func() {
		for label := -20; label < 50; label++ {
			i := reconcile.PaletteIndex(label, 6)
			So(i, ShouldBeBetweenOrEqual, 0, 5)
		}
		So(reconcile.PaletteIndex(3, 0), ShouldEqual, 0)
		So(reconcile.Palette(nil).Color(3), ShouldEqual, "")
	})
}

func TestDeriveReports(t *testing.T) {
	Convey("Given seven history entries and six clusters", t, func() {
		raw := make([]model.RawRecord, 0, 7)
		for i := range 7 {
			r := rec(i, fmt.Sprintf("2024-01-0%dT10:00:00Z", i+1), 20, 5)
			r[model.FieldCost] = float64(i)
			raw = append(raw, r)
		}
		history := reconcile.NormalizeHistory(raw)

		stats := make([]model.ClusterStats, 0, 6)
		for i := range 6 {
			stats = append(stats, model.ClusterStats{Cluster: i, Count: 1, AvgTemp: 20.5, AvgEnergy: 5.25})
		}

		reports := reconcile.DeriveReports(history, stats)

		Convey("Then cost distribution holds the last five entries", func() {
			So(reports.CostDistribution, ShouldHaveLength, 5)
			So(reports.CostDistribution[0].Cost, ShouldEqual, 2)
			So(reports.CostDistribution[4].Cost, ShouldEqual, 6)
		})

		Convey("Then performance data holds the first five clusters with scaled energy", func() {
			So(reports.PerformanceData, ShouldHaveLength, 5)
			So(reports.PerformanceData[0], ShouldResemble, model.PerformancePoint{Subject: "Cluster 0", A: 20.5, B: 52.5})
			So(reports.PerformanceData[4].Subject, ShouldEqual, "Cluster 4")
		})
	})

	Convey("Given empty inputs", t, func() {
		reports := reconcile.DeriveReports(nil, nil)
		So(reports.CostDistribution, ShouldNotBeNil)
		So(reports.CostDistribution, ShouldBeEmpty)
		So(reports.PerformanceData, ShouldBeEmpty)
	})

	Convey("Given a reconciler with custom settings", t, func() {
		r := reconcile.New(
			reconcile.WithCostWindow(2),
			reconcile.WithRadarLimit(1),
			reconcile.WithEnergyScale(2),
			reconcile.WithPalette([]string{"#000", "#fff"}),
		)
		d := r.Reconcile(reconcile.Inputs{
			History: []model.RawRecord{
				rec(1, "2024-01-01T10:00:00Z", 20, 5),
				rec(2, "2024-01-02T10:00:00Z", 20, 5),
				rec(3, "2024-01-03T10:00:00Z", 20, 5),
			},
			Clusters: []model.RawRecord{assign(1, 3), assign(2, 4)},
		})
		So(d.Reports.CostDistribution, ShouldHaveLength, 2)
		So(d.Reports.PerformanceData, ShouldHaveLength, 1)
		So(d.Reports.PerformanceData[0].B, ShouldEqual, 10)
		So(d.Merged[0].Color, ShouldEqual, "#fff")
		So(d.Merged[1].Color, ShouldEqual, "#000")
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given empty history", t, func() {
		s := reconcile.Summarize(nil, nil, nil)
		So(s.AvgDuration, ShouldEqual, 0)
		So(s.AvgTemperature, ShouldEqual, 0)
		So(s.TotalCost, ShouldEqual, 0)
		So(s.RecordCount, ShouldEqual, 0)
	})

	Convey("Given history with costs and durations", t, func() {
		history := reconcile.NormalizeHistory([]model.RawRecord{
			{model.FieldID: 1, model.FieldCost: "2.5", model.FieldDuration: 1, model.FieldTemperature: 20},
			{model.FieldID: 2, model.FieldCost: 3, model.FieldDuration: "2", model.FieldTemperature: "x"},
		})
		s := reconcile.Summarize(history, nil, []model.ClusterStats{{Cluster: 0}})
		So(s.TotalCost, ShouldEqual, 5.5)
		So(s.AvgDuration, ShouldEqual, 1.5)
		So(s.AvgTemperature, ShouldEqual, 20)
		So(s.RecordCount, ShouldEqual, 2)
		So(s.ClusterCount, ShouldEqual, 1)
	})

	Convey("Given no latest payload", t, func() {
		d := reconcile.New().Reconcile(reconcile.Inputs{Latest: model.RawRecord{}})
		So(d.Latest, ShouldBeNil)
		So(d.Merged, ShouldBeEmpty)
		So(d.Stats, ShouldBeEmpty)
	})
}
