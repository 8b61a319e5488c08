// Package fakebackend serves generated charging telemetry and cluster
// assignments on the same endpoints as the real data source. It is used for
// local development and integration tests.
package fakebackend

import "time"

// Config controls the generated dataset.
type Config struct {
	Devices        int           // distinct device ids
	Sessions       int           // history records
	Clusters       int           // distinct cluster labels
	MalformedRatio float64       // share of records with a non-numeric feature
	StringIDRatio  float64       // share of ids encoded as strings
	Unclustered    int           // devices without an assignment
	Seed           uint64        // generator seed
	Start          time.Time     // timestamp of the first session
	Step           time.Duration // time between sessions
}

// DefaultConfig returns a small, varied dataset.
func DefaultConfig() Config {
	return Config{
		Devices:        20,
		Sessions:       120,
		Clusters:       4,
		MalformedRatio: 0.05,
		StringIDRatio:  0.5,
		Unclustered:    2,
		Seed:           42,
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Step:           15 * time.Minute,
	}
}
