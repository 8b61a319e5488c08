package model

import "time"

// Endpoint names of the backend data source.
const (
	EndpointLatest   = "latest"
	EndpointHistory  = "history"
	EndpointClusters = "clusters"
)

// Endpoints lists every polled endpoint in fetch order.
var Endpoints = []string{EndpointLatest, EndpointHistory, EndpointClusters}

// CostPoint is one bar of the cost distribution.
type CostPoint struct {
	ID        any     `json:"id"`
	Timestamp string  `json:"timestamp"`
	Cost      float64 `json:"cost"`
}

// PerformancePoint is one axis of the cluster performance radar. A is the
// average temperature, B the scaled average energy.
type PerformancePoint struct {
	Subject string  `json:"subject"`
	A       float64 `json:"A"`
	B       float64 `json:"B"`
}

// Reports are chart-ready projections of already derived data.
type Reports struct {
	CostDistribution []CostPoint        `json:"costDistribution"`
	PerformanceData  []PerformancePoint `json:"performanceData"`
}

// Summary carries the aggregate numbers shown in summary cards.
type Summary struct {
	TotalCost      float64 `json:"totalCost"`
	AvgDuration    float64 `json:"avgDuration"`
	AvgTemperature float64 `json:"avgTemperature"`
	RecordCount    int     `json:"recordCount"`
	MergedCount    int     `json:"mergedCount"`
	ClusterCount   int     `json:"clusterCount"`
}

// Status describes the outcome of the most recent cycle.
type Status struct {
	Connected       bool      `json:"connected"`
	Stale           bool      `json:"stale"`
	Message         string    `json:"message,omitempty"`
	FailedEndpoints []string  `json:"failedEndpoints,omitempty"`
	LastAttemptAt   time.Time `json:"lastAttemptAt"`
	CycleID         string    `json:"cycleId,omitempty"`
}

// Snapshot is the complete reconciled state driving every presentation view.
type Snapshot struct {
	Version      uint64              `json:"version"`
	Latest       *TelemetryRecord    `json:"latest"`
	History      []TelemetryRecord   `json:"history"`
	Clusters     []ClusterAssignment `json:"clusters"`
	Merged       []MergedRecord      `json:"merged"`
	ClusterStats []ClusterStats      `json:"clusterStats"`
	Summary      Summary             `json:"summary"`
	Reports      Reports             `json:"reports"`
	FetchedAt    time.Time           `json:"fetchedAt"`
	Status       Status              `json:"status"`
}

// Empty returns a snapshot with non-nil collections, so it encodes as [] not null.
func Empty() Snapshot {
	return Snapshot{
		History:      []TelemetryRecord{},
		Clusters:     []ClusterAssignment{},
		Merged:       []MergedRecord{},
		ClusterStats: []ClusterStats{},
		Reports: Reports{
			CostDistribution: []CostPoint{},
			PerformanceData:  []PerformancePoint{},
		},
	}
}
