package server

import (
	"path/filepath"
	"testing"

	"github.com/ardelt/armsentry/internal/config"
	"github.com/ardelt/armsentry/internal/detector"
	"github.com/ardelt/armsentry/internal/monitor"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	cfg := &config.Config{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "armsentry_test.db"),
	}
	require.NoError(t, InitDB(cfg, log))
}

func sampleReport(id string) *monitor.Report {
	return &monitor.Report{
		SessionID:         id,
		Sensitivity:       detector.SensitivityNormal,
		Hostname:          "bench-01",
		Platform:          "debian 12",
		StartTime:         "2025-06-01 12:00:00",
		EndTime:           "2025-06-01 12:01:30",
		TotalDuration:     90,
		CollisionCount:    1,
		VoltageDetections: 1,
		CollisionEvents: []monitor.ReportEvent{
			{
				Time:            3.0,
				Timestamp:       "2025-06-01T12:00:03Z",
				DetectionMethod: detector.MethodVoltageDrop,
				Confidence:      0.9,
				AffectedJoints:  []int{2},
				JointVoltages:   []float64{24, 24, 18, 24, 24, 24},
				JointCurrents:   []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
				VoltageDrops:    []float64{0, 0, 6, 0, 0, 0},
			},
		},
	}
}

func TestSaveReportAndQuery(t *testing.T) {
	setupDB(t)

	row, err := SaveReport(sampleReport("sess-1"))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", row.SessionID)

	sessions, err := ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].CollisionCount)
	assert.Equal(t, 90.0, sessions[0].DurationSeconds)

	got, err := GetSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "bench-01", got.Hostname)

	collisions, err := GetCollisions("sess-1")
	require.NoError(t, err)
	require.Len(t, collisions, 1)
	assert.Equal(t, "voltage_drop", collisions[0].Method)
	assert.Equal(t, 3.0, collisions[0].OffsetSeconds)
	assert.JSONEq(t, "[2]", collisions[0].AffectedJoints)
	assert.JSONEq(t, "[24,24,18,24,24,24]", collisions[0].JointVoltages)
}

func TestSaveReportReplacesOnRepush(t *testing.T) {
	setupDB(t)

	_, err := SaveReport(sampleReport("sess-2"))
	require.NoError(t, err)

	// Same session pushed again must replace, not duplicate.
	rep := sampleReport("sess-2")
	rep.CollisionCount = 2
	rep.CollisionEvents = append(rep.CollisionEvents, monitor.ReportEvent{
		Time:            7.5,
		Timestamp:       "2025-06-01T12:00:07.5Z",
		DetectionMethod: detector.MethodCurrentSpike,
		Confidence:      0.8,
		AffectedJoints:  []int{4},
	})
	_, err = SaveReport(rep)
	require.NoError(t, err)

	sessions, err := ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].CollisionCount)

	collisions, err := GetCollisions("sess-2")
	require.NoError(t, err)
	assert.Len(t, collisions, 2)
}

func TestSaveReportRejectsMissingID(t *testing.T) {
	setupDB(t)
	_, err := SaveReport(&monitor.Report{})
	assert.Error(t, err)
}

func TestDeleteSession(t *testing.T) {
	setupDB(t)

	_, err := SaveReport(sampleReport("sess-3"))
	require.NoError(t, err)

	require.NoError(t, DeleteSession("sess-3"))

	_, err = GetSession("sess-3")
	assert.Error(t, err)

	assert.Error(t, DeleteSession("sess-3"))
}
