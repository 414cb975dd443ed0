// Package monitor runs the background contact-monitoring session: calibrate
// once, sample the telemetry source at the configured frequency, deduplicate
// repeated detections, and finalize a session record on stop.
package monitor

import (
	"time"

	"github.com/ardelt/armsentry/internal/detector"
)

// RecordedEvent pairs a detection with its offset from session start.
type RecordedEvent struct {
	Offset time.Duration   `json:"offset"`
	Event  *detector.Event `json:"event"`
}

// SessionRecord accumulates everything one monitoring session produced.
// It is mutated only by the session's sampling loop (under the session
// mutex) and finalized exactly once on stop.
type SessionRecord struct {
	ID          string               `json:"id"`
	Sensitivity detector.Sensitivity `json:"sensitivity"`

	// Monitoring-host context, stamped at session start.
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`

	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`

	// Events in strict detection order.
	Events []RecordedEvent `json:"events"`

	TotalDetections   int `json:"total_detections"`
	VoltageDetections int `json:"voltage_detections"`
	CurrentDetections int `json:"current_detections"`
}

// append records one event and bumps the per-method counters. Counters follow
// the triggered rules, not just the labeling method, so an event flagged by
// both signals counts toward both.
func (r *SessionRecord) append(offset time.Duration, ev *detector.Event) {
	r.Events = append(r.Events, RecordedEvent{Offset: offset, Event: ev})
	r.TotalDetections++
	for _, m := range ev.Details.Methods {
		switch m {
		case detector.MethodVoltageDrop:
			r.VoltageDetections++
		case detector.MethodCurrentSpike:
			r.CurrentDetections++
		}
	}
}

// snapshot returns a copy whose event slice is detached from the original.
// Event values themselves are immutable and safely shared.
func (r *SessionRecord) snapshot() SessionRecord {
	out := *r
	out.Events = make([]RecordedEvent, len(r.Events))
	copy(out.Events, r.Events)
	return out
}
