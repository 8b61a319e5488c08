package model

import "time"

// Cycle trigger reasons.
const (
	ReasonStartup = "startup"
	ReasonTicker  = "ticker"
	ReasonManual  = "manual"
)

// CycleRequest asks for one fetch-reconcile cycle.
type CycleRequest struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}
