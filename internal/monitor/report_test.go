package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardelt/armsentry/internal/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() SessionRecord {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	ev := &detector.Event{
		Timestamp:      start.Add(3 * time.Second),
		Method:         detector.MethodVoltageDrop,
		Confidence:     0.9,
		Voltages:       []float64{24, 24, 18, 24, 24, 24},
		Currents:       []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		AffectedJoints: []int{2},
		VoltageDrops:   []float64{0, 0, 6, 0, 0, 0},
		Details: detector.EventDetails{
			Methods:          []detector.Method{detector.MethodVoltageDrop},
			BaselineVoltages: []float64{24, 24, 24, 24, 24, 24},
			BaselineCurrents: []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
			MaxVoltageDrop:   6,
		},
	}

	rec := SessionRecord{
		ID:          "11111111-2222-3333-4444-555555555555",
		Sensitivity: detector.SensitivityNormal,
		Hostname:    "bench-01",
		Platform:    "debian 12",
		StartedAt:   start,
		EndedAt:     start.Add(90 * time.Second),
		Duration:    90 * time.Second,
	}
	rec.append(3*time.Second, ev)
	return rec
}

func TestWriteReportRoundTrip(t *testing.T) {
	rec := sampleRecord()

	path, err := WriteReport(rec, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rep Report
	require.NoError(t, json.Unmarshal(data, &rep))

	assert.Equal(t, rec.ID, rep.SessionID)
	assert.Equal(t, "bench-01", rep.Hostname)
	assert.Equal(t, 90.0, rep.TotalDuration)
	assert.Equal(t, 1, rep.CollisionCount)
	require.Len(t, rep.CollisionEvents, 1)

	got := rep.CollisionEvents[0]
	assert.Equal(t, 3.0, got.Time)
	assert.Equal(t, detector.MethodVoltageDrop, got.DetectionMethod)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, []int{2}, got.AffectedJoints)
	assert.Equal(t, rec.Events[0].Event.Voltages, got.JointVoltages)
	assert.Equal(t, rec.Events[0].Event.VoltageDrops, got.VoltageDrops)
	assert.Equal(t, rec.Events[0].Event.Details, got.Details)
}

func TestWriteReportEmptySession(t *testing.T) {
	rec := SessionRecord{ID: "empty", Sensitivity: detector.SensitivityLow}

	path, err := WriteReport(rec, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rep Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, 0, rep.CollisionCount)
	assert.Empty(t, rep.CollisionEvents)
	assert.Empty(t, rep.StartTime)
}

func TestWriteReportSurfacesIOFailure(t *testing.T) {
	// A file where the report dir should be makes MkdirAll fail.
	dir := t.TempDir() + "/blocked"
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	_, err := WriteReport(sampleRecord(), dir)
	assert.Error(t, err)
}

func TestSummaryMatchesRecord(t *testing.T) {
	rec := sampleRecord()
	s := Summary(rec)

	assert.Contains(t, s, rec.ID)
	assert.Contains(t, s, "collisions: 1")
	assert.Contains(t, s, "duration:   90.0s")
	assert.Contains(t, s, "voltage_drop")
	assert.Contains(t, s, "[2]")
}

func TestPushReport(t *testing.T) {
	const token = "test-collector-token"

	var got Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "/api/reports", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	rec := sampleRecord()

	require.NoError(t, PushReport(rec, addr, token))
	assert.Equal(t, rec.ID, got.SessionID)

	err := PushReport(rec, addr, "wrong-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
