package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardelt/armsentry/internal/detector"
)

// Report is the durable, lossless serialization of a SessionRecord. The
// operator summary and the structured report are both derived from the same
// record so the two representations cannot drift apart.
type Report struct {
	SessionID   string               `json:"session_id"`
	Sensitivity detector.Sensitivity `json:"sensitivity"`
	Hostname    string               `json:"hostname"`
	Platform    string               `json:"platform"`

	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	TotalDuration float64 `json:"total_duration"` // seconds

	CollisionCount    int `json:"collision_count"`
	VoltageDetections int `json:"voltage_detections"`
	CurrentDetections int `json:"current_detections"`

	CollisionEvents []ReportEvent `json:"collision_events"`
}

// ReportEvent is one collision in the report.
type ReportEvent struct {
	// Time is the offset from session start, in seconds.
	Time float64 `json:"time"`
	// Timestamp is the absolute detection time, RFC 3339 with nanoseconds.
	Timestamp       string                `json:"timestamp"`
	DetectionMethod detector.Method       `json:"detection_method"`
	Confidence      float64               `json:"confidence"`
	AffectedJoints  []int                 `json:"affected_joints"`
	JointVoltages   []float64             `json:"joint_voltages"`
	JointCurrents   []float64             `json:"joint_currents"`
	VoltageDrops    []float64             `json:"voltage_drops"`
	Details         detector.EventDetails `json:"details"`
}

const timeLayout = "2006-01-02 15:04:05"

// BuildReport converts a finalized record into its report form. A record
// with zero events yields a valid summary-only report.
func BuildReport(rec SessionRecord) *Report {
	rep := &Report{
		SessionID:         rec.ID,
		Sensitivity:       rec.Sensitivity,
		Hostname:          rec.Hostname,
		Platform:          rec.Platform,
		TotalDuration:     rec.Duration.Seconds(),
		CollisionCount:    rec.TotalDetections,
		VoltageDetections: rec.VoltageDetections,
		CurrentDetections: rec.CurrentDetections,
		CollisionEvents:   make([]ReportEvent, 0, len(rec.Events)),
	}
	if !rec.StartedAt.IsZero() {
		rep.StartTime = rec.StartedAt.Format(timeLayout)
	}
	if !rec.EndedAt.IsZero() {
		rep.EndTime = rec.EndedAt.Format(timeLayout)
	}
	for _, re := range rec.Events {
		ev := re.Event
		rep.CollisionEvents = append(rep.CollisionEvents, ReportEvent{
			Time:            re.Offset.Seconds(),
			Timestamp:       ev.Timestamp.Format(time.RFC3339Nano),
			DetectionMethod: ev.Method,
			Confidence:      ev.Confidence,
			AffectedJoints:  ev.AffectedJoints,
			JointVoltages:   ev.Voltages,
			JointCurrents:   ev.Currents,
			VoltageDrops:    ev.VoltageDrops,
			Details:         ev.Details,
		})
	}
	return rep
}

// WriteReport serializes the record to <dir>/collision_report_<stamp>.json
// and returns the path. An I/O failure is surfaced to the caller; the record
// itself is untouched.
func WriteReport(rec SessionRecord, dir string) (string, error) {
	rep := BuildReport(rec)

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("collision_report_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// Summary renders the human-readable session summary from the same record
// that backs the structured report.
func Summary(rec SessionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%s)\n", rec.ID, rec.Sensitivity)
	if !rec.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  started:    %s\n", rec.StartedAt.Format(timeLayout))
	}
	if !rec.EndedAt.IsZero() {
		fmt.Fprintf(&b, "  ended:      %s\n", rec.EndedAt.Format(timeLayout))
	}
	fmt.Fprintf(&b, "  duration:   %.1fs\n", rec.Duration.Seconds())
	fmt.Fprintf(&b, "  collisions: %d (voltage: %d, current: %d)\n",
		rec.TotalDetections, rec.VoltageDetections, rec.CurrentDetections)
	for i, re := range rec.Events {
		fmt.Fprintf(&b, "  #%d at %6.2fs  %-13s conf=%.2f joints=%v\n",
			i+1, re.Offset.Seconds(), re.Event.Method, re.Event.Confidence, re.Event.AffectedJoints)
	}
	return b.String()
}

// PushReport POSTs the report to a central server's data plane with the
// pre-shared bearer token. addr is "host:port" of the data plane.
func PushReport(rec SessionRecord, addr, token string) error {
	body, err := json.Marshal(BuildReport(rec))
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/api/reports", addr)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("server rejected token (401) — check --token or collector_token in config")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}
