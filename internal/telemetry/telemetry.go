// Package telemetry defines the per-joint electrical telemetry boundary.
// Everything above this package (calibration, detection, monitoring) depends
// only on the Source interface, so a real arm controller, a replayed log, or
// a simulator are interchangeable.
package telemetry

import (
	"context"
	"time"
)

// Snapshot is one reading of per-joint voltage and current. Immutable once
// captured; callers must not mutate the slices.
type Snapshot struct {
	Voltages []float64 `json:"joint_voltage"`
	Currents []float64 `json:"joint_current"`
	Taken    time.Time `json:"-"`
}

// Usable reports whether the snapshot carries both vectors. A snapshot
// missing either field is "no data this tick", never a fatal condition.
func (s *Snapshot) Usable() bool {
	return s != nil && len(s.Voltages) > 0 && len(s.Currents) > 0
}

// Joints returns the number of joints covered by both vectors.
func (s *Snapshot) Joints() int {
	if s == nil {
		return 0
	}
	if len(s.Voltages) < len(s.Currents) {
		return len(s.Voltages)
	}
	return len(s.Currents)
}

// Source supplies telemetry snapshots on demand. Implementations must be
// bounded: a slow or failing read returns an error rather than stalling the
// caller's sampling tick.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}
