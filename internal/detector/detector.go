package detector

import (
	"sort"
	"time"

	"github.com/ardelt/armsentry/internal/telemetry"
)

// Per-method confidence is capped at 0.9 and the blended confidence at 0.95,
// so a single saturated signal never reads as certainty.
const (
	methodConfidenceCap = 0.9
	eventConfidenceCap  = 0.95
)

// Detect compares one live snapshot against the baseline and returns a
// contact Event, or nil when nothing crosses the thresholds or the blended
// confidence stays below th.Confidence.
//
// Detect is a pure function of its inputs: no hidden state, identical
// arguments yield identical results.
func Detect(snap *telemetry.Snapshot, baseline *Baseline, th Thresholds) *Event {
	if !snap.Usable() || baseline.Joints() == 0 {
		return nil
	}

	// Transient telemetry-length mismatches are tolerated by truncating both
	// sides to the shorter joint count.
	n := snap.Joints()
	if baseline.Joints() < n {
		n = baseline.Joints()
	}
	if len(baseline.Currents) < n {
		n = len(baseline.Currents)
	}

	voltages := snap.Voltages[:n]
	currents := snap.Currents[:n]
	baseV := baseline.Voltages[:n]
	baseC := baseline.Currents[:n]

	voltageDrops := make([]float64, n)
	currentRises := make([]float64, n)
	for j := 0; j < n; j++ {
		voltageDrops[j] = baseV[j] - voltages[j]
		currentRises[j] = currents[j] - baseC[j]
	}

	var (
		flagged    = map[int]bool{}
		methods    []Method
		confidence float64
	)

	// Voltage-drop rule.
	if maxDrop, joints := exceeding(voltageDrops, th.VoltageDrop); len(joints) > 0 {
		for _, j := range joints {
			flagged[j] = true
		}
		methods = append(methods, MethodVoltageDrop)
		confidence += methodConfidence(maxDrop, th.VoltageDrop)
	}

	// Current-spike rule.
	if maxRise, joints := exceeding(currentRises, th.CurrentSpike); len(joints) > 0 {
		for _, j := range joints {
			flagged[j] = true
		}
		methods = append(methods, MethodCurrentSpike)
		confidence += methodConfidence(maxRise, th.CurrentSpike)
	}

	if len(flagged) == 0 {
		return nil
	}

	confidence /= float64(len(methods))
	if confidence > eventConfidenceCap {
		confidence = eventConfidenceCap
	}
	if confidence < th.Confidence {
		// Sub-threshold anomaly: suppressed, no event, no side effect.
		return nil
	}

	affected := make([]int, 0, len(flagged))
	for j := range flagged {
		affected = append(affected, j)
	}
	sort.Ints(affected)

	ts := snap.Taken
	if ts.IsZero() {
		ts = time.Now()
	}

	return &Event{
		Timestamp:      ts,
		Method:         methods[0],
		Confidence:     confidence,
		Voltages:       copyVec(voltages),
		Currents:       copyVec(currents),
		AffectedJoints: affected,
		VoltageDrops:   copyVec(voltageDrops),
		Details: EventDetails{
			Methods:          methods,
			BaselineVoltages: copyVec(baseV),
			BaselineCurrents: copyVec(baseC),
			MaxVoltageDrop:   maxVec(voltageDrops),
			MaxCurrentSpike:  maxVec(currentRises),
		},
	}
}

// exceeding returns the largest delta above threshold and the joints whose
// delta exceeds it (strictly).
func exceeding(deltas []float64, threshold float64) (float64, []int) {
	var (
		joints []int
		max    float64
	)
	for j, d := range deltas {
		if d > threshold {
			joints = append(joints, j)
			if d > max {
				max = d
			}
		}
	}
	return max, joints
}

// methodConfidence scales the worst excess against twice the threshold,
// capped at methodConfidenceCap.
func methodConfidence(maxDelta, threshold float64) float64 {
	c := maxDelta / (threshold * 2)
	if c > methodConfidenceCap {
		c = methodConfidenceCap
	}
	return c
}

func copyVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func maxVec(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	return max
}
