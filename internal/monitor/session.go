package monitor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ardelt/armsentry/internal/detector"
	"github.com/ardelt/armsentry/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/sirupsen/logrus"
)

// State is the session lifecycle phase. A session calibrates exactly once:
// there is no transition back into Calibrating after monitoring begins.
type State string

const (
	StateIdle        State = "idle"
	StateCalibrating State = "calibrating"
	StateMonitoring  State = "monitoring"
	StateStopped     State = "stopped"
)

const (
	// DefaultDebounce is the window after a recorded event during which
	// identical-affected-joints detections count as the same ongoing contact.
	DefaultDebounce = 500 * time.Millisecond

	// stopJoin bounds how long Stop waits for the sampling loop to exit.
	stopJoin = 2 * time.Second
)

// Session owns one calibrate-then-monitor run against a telemetry source.
// The sampling loop runs in its own goroutine; Stop is safe to call from a
// signal handler and is idempotent.
type Session struct {
	// Debounce and OnEvent may be adjusted before Start; Calibrator likewise.
	Debounce   time.Duration
	OnEvent    func(offset time.Duration, ev *detector.Event)
	Calibrator *detector.Calibrator

	src telemetry.Source
	th  detector.Thresholds
	log *logrus.Logger

	mu       sync.Mutex
	state    State
	baseline *detector.Baseline
	record   SessionRecord

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewSession creates an idle session for the given source and thresholds.
func NewSession(src telemetry.Source, th detector.Thresholds, sensitivity detector.Sensitivity, log *logrus.Logger) *Session {
	s := &Session{
		Debounce:   DefaultDebounce,
		Calibrator: detector.NewCalibrator(log),
		src:        src,
		th:         th,
		log:        log,
		state:      StateIdle,
	}
	s.record = SessionRecord{
		ID:          uuid.NewString(),
		Sensitivity: sensitivity,
	}
	if h, err := os.Hostname(); err == nil {
		s.record.Hostname = h
	}
	if info, err := host.Info(); err == nil && info.Platform != "" {
		s.record.Platform = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
	}
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Baseline returns the calibrated baseline, or nil before calibration.
func (s *Session) Baseline() *detector.Baseline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Start calibrates the baseline and launches the sampling loop. Calling it
// on anything but an idle session is a logged no-op, so a racing interrupt
// can never turn lifecycle misuse into a failure. A Stop that lands during
// calibration wins: calibration is cut short and the loop never launches.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		s.log.Warnf("session start ignored in state %q", state)
		return nil
	}
	// The cancelable context spans calibration too, so Stop can interrupt it.
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = StateCalibrating
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	baseline := s.Calibrator.Calibrate(loopCtx, s.src, s.th.JointCount)

	s.mu.Lock()
	if s.state != StateCalibrating {
		// Stopped while calibrating: never enter monitoring.
		s.mu.Unlock()
		cancel()
		close(done)
		return nil
	}
	s.baseline = baseline
	s.record.StartedAt = time.Now()
	s.state = StateMonitoring
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session":   s.record.ID,
		"frequency": s.th.Frequency,
		"joints":    baseline.Joints(),
	}).Info("monitoring started")

	go s.loop(loopCtx, done)
	return nil
}

// loop is the periodic sampling loop. It is the only writer of the session
// record; transient source failures skip the tick and keep the loop alive.
func (s *Session) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.th.TickInterval())
	defer ticker.Stop()

	deb := &debouncer{window: s.Debounce}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := s.src.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Debug("telemetry read failed, skipping tick")
			continue
		}

		ev := detector.Detect(snap, s.baseline, s.th)
		if ev == nil {
			deb.reset()
			continue
		}
		if !deb.admit(ev, time.Now()) {
			continue
		}

		s.mu.Lock()
		offset := ev.Timestamp.Sub(s.record.StartedAt)
		s.record.append(offset, ev)
		s.mu.Unlock()

		s.log.WithFields(logrus.Fields{
			"offset":     offset.Round(10 * time.Millisecond),
			"method":     ev.Method,
			"confidence": fmt.Sprintf("%.2f", ev.Confidence),
			"joints":     ev.AffectedJoints,
		}).Info("contact detected")
		if s.OnEvent != nil {
			s.OnEvent(offset, ev)
		}

		// Brief pause so one ongoing contact is not re-reported every tick;
		// a distinct contact is admitted on the very next tick after reset.
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.Debounce):
		}
		deb.reset()
	}
}

// Stop ends the session wherever it is in its lifecycle: marks it stopped,
// cancels calibration or the sampling loop, waits with a bounded join, and
// stamps the end time exactly once. Safe to call repeatedly, before Start,
// and from an asynchronous signal handler.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		// The state flips first so a Start still in calibration sees it and
		// refuses to enter monitoring.
		s.mu.Lock()
		s.state = StateStopped
		cancel, done := s.cancel, s.done
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil {
			select {
			case <-done:
			case <-time.After(stopJoin):
				s.log.Warn("sampling loop did not exit within join timeout")
			}
		}

		s.mu.Lock()
		if !s.record.StartedAt.IsZero() {
			s.record.EndedAt = time.Now()
			s.record.Duration = s.record.EndedAt.Sub(s.record.StartedAt)
		}
		s.mu.Unlock()

		s.log.WithField("session", s.record.ID).Info("monitoring stopped")
	})
}

// Record returns a copy of the session record. Call after Stop for the
// finalized record; during monitoring it returns a consistent snapshot of
// everything recorded so far.
func (s *Session) Record() SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.snapshot()
}

// JointStatus reports the live per-joint deviation from the baseline, for
// operator debugging. Returns an error when telemetry is unavailable or the
// session has no baseline yet.
func (s *Session) JointStatus(ctx context.Context) (*JointStatus, error) {
	s.mu.Lock()
	baseline := s.baseline
	s.mu.Unlock()
	if baseline == nil {
		return nil, fmt.Errorf("no baseline: session not calibrated")
	}

	snap, err := s.src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading telemetry: %w", err)
	}

	n := snap.Joints()
	if baseline.Joints() < n {
		n = baseline.Joints()
	}
	st := &JointStatus{
		Taken:        snap.Taken,
		Voltages:     snap.Voltages,
		Currents:     snap.Currents,
		VoltageDrops: make([]float64, n),
		CurrentRises: make([]float64, n),
	}
	for j := 0; j < n; j++ {
		st.VoltageDrops[j] = baseline.Voltages[j] - snap.Voltages[j]
		st.CurrentRises[j] = snap.Currents[j] - baseline.Currents[j]
	}
	return st, nil
}

// DebugStatus logs the live joint deviation at Debug level every interval
// until ctx is cancelled. A no-op when the logger will not emit Debug, so
// production runs pay nothing for it.
func (s *Session) DebugStatus(ctx context.Context, interval time.Duration) {
	if !s.log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			st, err := s.JointStatus(ctx)
			if err != nil {
				continue
			}
			s.log.WithFields(logrus.Fields{
				"voltage_drops": st.VoltageDrops,
				"current_rises": st.CurrentRises,
			}).Debug("joint status")
		}
	}()
}

// JointStatus is a point-in-time deviation report.
type JointStatus struct {
	Taken        time.Time `json:"taken"`
	Voltages     []float64 `json:"joint_voltages"`
	Currents     []float64 `json:"joint_currents"`
	VoltageDrops []float64 `json:"voltage_drops"`
	CurrentRises []float64 `json:"current_rises"`
}

// debouncer decides whether a detection is a new contact or the same ongoing
// one. Identity is the affected-joint set; the window lapses after
// s.Debounce and tracking resets on any tick without a detection.
type debouncer struct {
	window time.Duration
	last   *detector.Event
	until  time.Time
}

// admit reports whether ev should be recorded, and if so starts a new
// debounce window around it.
func (d *debouncer) admit(ev *detector.Event, now time.Time) bool {
	if ev.SameJoints(d.last) && now.Before(d.until) {
		return false
	}
	d.last = ev
	d.until = now.Add(d.window)
	return true
}

// reset clears the last-event tracking so a later identical joint set is a
// new contact.
func (d *debouncer) reset() {
	d.last = nil
}
