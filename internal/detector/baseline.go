package detector

import (
	"context"
	"time"

	"github.com/ardelt/armsentry/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaselineVoltage / DefaultBaselineCurrent are the per-joint
	// fallback values used when calibration yields zero usable samples.
	// 24 V bus and ~0.5 A idle draw match the arm's unloaded state.
	DefaultBaselineVoltage = 24.0
	DefaultBaselineCurrent = 0.5

	// DefaultCalibrationSamples is the number of snapshots averaged into
	// the baseline, spaced DefaultCalibrationInterval apart.
	DefaultCalibrationSamples  = 10
	DefaultCalibrationInterval = 100 * time.Millisecond
)

// Baseline is the per-joint reference vector for one session. Read-only after
// calibration completes; owned by the session that created it.
type Baseline struct {
	Voltages []float64
	Currents []float64
}

// Joints returns the baseline's joint count.
func (b *Baseline) Joints() int {
	if b == nil {
		return 0
	}
	return len(b.Voltages)
}

// DefaultBaseline builds the fallback baseline for the given joint count.
func DefaultBaseline(jointCount int) *Baseline {
	b := &Baseline{
		Voltages: make([]float64, jointCount),
		Currents: make([]float64, jointCount),
	}
	for j := range b.Voltages {
		b.Voltages[j] = DefaultBaselineVoltage
		b.Currents[j] = DefaultBaselineCurrent
	}
	return b
}

// Calibrator reduces repeated telemetry snapshots to a Baseline.
type Calibrator struct {
	Samples  int
	Interval time.Duration
	Log      *logrus.Logger
}

// NewCalibrator creates a Calibrator with the default sample plan.
func NewCalibrator(log *logrus.Logger) *Calibrator {
	return &Calibrator{
		Samples:  DefaultCalibrationSamples,
		Interval: DefaultCalibrationInterval,
		Log:      log,
	}
}

// Calibrate draws snapshots from src and returns their elementwise mean.
// Unusable snapshots (read error, missing vectors) are logged and skipped;
// samples whose joint count differs from the first usable one are discarded.
// With zero usable samples it degrades to the default baseline for jointCount
// rather than failing — calibration never returns an error.
func (c *Calibrator) Calibrate(ctx context.Context, src telemetry.Source, jointCount int) *Baseline {
	var (
		voltageSum []float64
		currentSum []float64
		used       int
	)

	for i := 0; i < c.Samples; i++ {
		snap, err := src.Snapshot(ctx)
		switch {
		case err != nil:
			c.Log.WithError(err).Warnf("calibration sample %d/%d failed, skipping", i+1, c.Samples)
		case !snap.Usable():
			c.Log.Warnf("calibration sample %d/%d missing data, skipping", i+1, c.Samples)
		case voltageSum != nil && snap.Joints() != len(voltageSum):
			c.Log.Warnf("calibration sample %d/%d has %d joints, want %d, discarding",
				i+1, c.Samples, snap.Joints(), len(voltageSum))
		default:
			n := snap.Joints()
			if voltageSum == nil {
				voltageSum = make([]float64, n)
				currentSum = make([]float64, n)
			}
			for j := 0; j < n; j++ {
				voltageSum[j] += snap.Voltages[j]
				currentSum[j] += snap.Currents[j]
			}
			used++
		}

		if i < c.Samples-1 {
			select {
			case <-ctx.Done():
				i = c.Samples // stop sampling, fall through to the average
			case <-time.After(c.Interval):
			}
		}
	}

	if used == 0 {
		c.Log.Warnf("calibration produced no usable samples, using default baseline (%d joints)", jointCount)
		return DefaultBaseline(jointCount)
	}

	b := &Baseline{
		Voltages: make([]float64, len(voltageSum)),
		Currents: make([]float64, len(currentSum)),
	}
	for j := range voltageSum {
		b.Voltages[j] = voltageSum[j] / float64(used)
		b.Currents[j] = currentSum[j] / float64(used)
	}
	c.Log.WithFields(logrus.Fields{
		"samples": used,
		"joints":  b.Joints(),
	}).Info("baseline established")
	return b
}
