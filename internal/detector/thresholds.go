// Package detector implements the contact-detection core: per-joint electrical
// baselines and the voltage-drop / current-spike anomaly rules. A motor pushed
// against an obstacle draws more current and its supply voltage sags, so two
// independent electrical signals are blended into one confidence score.
package detector

import (
	"fmt"
	"time"
)

// Sensitivity names a thresholds preset.
type Sensitivity string

const (
	SensitivityHigh   Sensitivity = "high"
	SensitivityNormal Sensitivity = "normal"
	SensitivityLow    Sensitivity = "low"
)

// Thresholds is the immutable detection configuration for one session.
type Thresholds struct {
	// VoltageDrop is the minimum (baseline − live) volts on a joint to flag
	// a voltage-drop anomaly.
	VoltageDrop float64
	// CurrentSpike is the minimum (live − baseline) amps on a joint to flag
	// a current-spike anomaly.
	CurrentSpike float64
	// Confidence is the minimum aggregate confidence required to emit an event.
	Confidence float64
	// Frequency is the target sampling rate of the monitoring loop, in Hz.
	Frequency float64
	// JointCount sizes the default baseline when calibration yields nothing.
	JointCount int
}

// TickInterval derives the sampling-loop tick from Frequency.
func (t Thresholds) TickInterval() time.Duration {
	if t.Frequency <= 0 {
		return 67 * time.Millisecond // ~15 Hz
	}
	return time.Duration(float64(time.Second) / t.Frequency)
}

// ThresholdsFor returns the preset for a named sensitivity. Unknown names get
// the normal preset and an error so callers can warn and continue.
func ThresholdsFor(s Sensitivity) (Thresholds, error) {
	switch s {
	case SensitivityHigh:
		return Thresholds{
			VoltageDrop:  1.0,
			CurrentSpike: 0.3,
			Confidence:   0.6,
			Frequency:    20.0,
			JointCount:   6,
		}, nil
	case SensitivityLow:
		return Thresholds{
			VoltageDrop:  3.0,
			CurrentSpike: 1.0,
			Confidence:   0.85,
			Frequency:    10.0,
			JointCount:   6,
		}, nil
	case SensitivityNormal, "":
		return Thresholds{
			VoltageDrop:  2.0,
			CurrentSpike: 0.6,
			Confidence:   0.75,
			Frequency:    15.0,
			JointCount:   6,
		}, nil
	default:
		th, _ := ThresholdsFor(SensitivityNormal)
		return th, fmt.Errorf("unknown sensitivity %q, using normal", s)
	}
}
