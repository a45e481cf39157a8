// Package allocation computes and stores HRP allocations for the universe.
package allocation

import (
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
)

// Snapshot is a stored allocation.
type Snapshot struct {
	ID           string                    `json:"id"`
	CreatedAt    time.Time                 `json:"created_at"`
	Linkage      optimization.Linkage      `json:"linkage"`
	LookbackDays int                       `json:"lookback_days"`
	AsOf         string                    `json:"as_of"`
	Periods      int                       `json:"periods"`
	Weights      optimization.WeightVector `json:"weights"`
	Order        []string                  `json:"order"`
	Excluded     []string                  `json:"excluded"`
}

// snapshotPayload is the msgpack-encoded part of a snapshot row.
type snapshotPayload struct {
	AsOf     string             `msgpack:"as_of"`
	Periods  int                `msgpack:"periods"`
	Weights  map[string]float64 `msgpack:"weights"`
	Order    []string           `msgpack:"order"`
	Excluded []string           `msgpack:"excluded"`
}

// ComputeRequest selects the universe and window of a stored-history allocation.
// Zero values fall back to the service defaults.
type ComputeRequest struct {
	Symbols      []string `json:"symbols,omitempty"`
	LookbackDays int      `json:"lookback_days,omitempty"`
	Linkage      string   `json:"linkage,omitempty"`
}
