package telemetry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Contact scripts a simulated mechanical contact: between From and Until
// (relative to the first Snapshot call) the given joint's voltage sags by
// VoltageSag volts and its current rises by CurrentRise amps.
type Contact struct {
	Joint       int
	From, Until time.Duration
	VoltageSag  float64
	CurrentRise float64
}

// SimSource is a scripted Source for running without hardware. It produces
// nominal 24 V / 0.5 A readings with small gaussian noise, plus any scripted
// contacts and fault ticks.
type SimSource struct {
	mu       sync.Mutex
	joints   int
	noise    float64
	contacts []Contact
	failing  map[int]bool // tick index → return an error
	rng      *rand.Rand
	started  time.Time
	tick     int
}

// NewSimSource creates a simulator for the given joint count. Noise is the
// standard deviation applied to both vectors (volts / amps respectively).
func NewSimSource(joints int, noise float64, contacts ...Contact) *SimSource {
	return &SimSource{
		joints:   joints,
		noise:    noise,
		contacts: contacts,
		failing:  make(map[int]bool),
		rng:      rand.New(rand.NewSource(42)),
	}
}

// FailOnTick makes the source return an error on the given tick indexes
// (0-based, counted across all Snapshot calls). Used to exercise the
// skip-and-continue path.
func (s *SimSource) FailOnTick(ticks ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ticks {
		s.failing[t] = true
	}
}

// Snapshot produces the next scripted reading.
func (s *SimSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.started.IsZero() {
		s.started = now
	}
	tick := s.tick
	s.tick++

	if s.failing[tick] {
		return nil, fmt.Errorf("simulated telemetry fault on tick %d", tick)
	}

	elapsed := now.Sub(s.started)
	snap := &Snapshot{
		Voltages: make([]float64, s.joints),
		Currents: make([]float64, s.joints),
		Taken:    now,
	}
	for j := 0; j < s.joints; j++ {
		snap.Voltages[j] = 24.0 + s.rng.NormFloat64()*s.noise
		snap.Currents[j] = 0.5 + s.rng.NormFloat64()*s.noise*0.1
	}
	for _, c := range s.contacts {
		if c.Joint < s.joints && elapsed >= c.From && elapsed < c.Until {
			snap.Voltages[c.Joint] -= c.VoltageSag
			snap.Currents[c.Joint] += c.CurrentRise
		}
	}
	return snap, nil
}
