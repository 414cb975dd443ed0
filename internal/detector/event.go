package detector

import "time"

// Method names the electrical signal that triggered a detection.
type Method string

const (
	MethodVoltageDrop  Method = "voltage_drop"
	MethodCurrentSpike Method = "current_spike"
)

// EventDetails carries the context a detection was made in.
type EventDetails struct {
	// Methods lists every rule that triggered, in evaluation order.
	Methods []Method `json:"detection_methods"`
	// Baseline vectors the live snapshot was compared against (truncated to
	// the joint count actually evaluated).
	BaselineVoltages []float64 `json:"baseline_voltages"`
	BaselineCurrents []float64 `json:"baseline_currents"`
	// Extrema observed across all joints, flagged or not.
	MaxVoltageDrop  float64 `json:"max_voltage_drop"`
	MaxCurrentSpike float64 `json:"max_current_spike"`
}

// Event is one detected contact. Immutable once constructed; the monitoring
// session consumes it read-only.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	// Method is the labeling rule: voltage_drop when that rule triggered
	// (it is evaluated first), otherwise current_spike. Details.Methods has
	// the full list.
	Method     Method  `json:"detection_method"`
	Confidence float64 `json:"confidence"`
	// Live snapshot copies, truncated to the evaluated joint count.
	Voltages []float64 `json:"joint_voltages"`
	Currents []float64 `json:"joint_currents"`
	// AffectedJoints is the sorted, deduplicated union of joints flagged by
	// either rule. Never empty on a non-nil Event.
	AffectedJoints []int `json:"affected_joints"`
	// VoltageDrops is the full per-joint (baseline − live) vector.
	VoltageDrops []float64    `json:"voltage_drops"`
	Details      EventDetails `json:"details"`
}

// SameJoints reports whether both events flag the same affected-joint set.
// The monitoring loop uses this as the dedup identity within the debounce
// window; AffectedJoints is sorted at construction so a slice compare is
// enough.
func (e *Event) SameJoints(other *Event) bool {
	if e == nil || other == nil {
		return false
	}
	if len(e.AffectedJoints) != len(other.AffectedJoints) {
		return false
	}
	for i, j := range e.AffectedJoints {
		if other.AffectedJoints[i] != j {
			return false
		}
	}
	return true
}
