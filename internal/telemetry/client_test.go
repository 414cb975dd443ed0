package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func clientFor(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	return NewClient(strings.TrimPrefix(srv.URL, "http://"), timeout, testLogger())
}

func TestClientSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/phy_data", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"joint_voltage":[24.1,23.9,24.0],"joint_current":[0.48,0.52,0.5]}`))
	}))
	defer srv.Close()

	snap, err := clientFor(t, srv, 0).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{24.1, 23.9, 24.0}, snap.Voltages)
	assert.Equal(t, []float64{0.48, 0.52, 0.5}, snap.Currents)
	assert.Equal(t, 3, snap.Joints())
	assert.False(t, snap.Taken.IsZero())
}

func TestClientMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"joint_voltage":[24.0,24.0]}`))
	}))
	defer srv.Close()

	_, err := clientFor(t, srv, 0).Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := clientFor(t, srv, 0).Snapshot(context.Background())
	assert.Error(t, err)
}

func TestClientBoundedRead(t *testing.T) {
	// A stalled controller must fail the tick, not hang it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	start := time.Now()
	_, err := clientFor(t, srv, 30*time.Millisecond).Snapshot(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestSnapshotUsable(t *testing.T) {
	assert.False(t, (*Snapshot)(nil).Usable())
	assert.False(t, (&Snapshot{Voltages: []float64{24}}).Usable())
	assert.False(t, (&Snapshot{Currents: []float64{0.5}}).Usable())
	assert.True(t, (&Snapshot{Voltages: []float64{24}, Currents: []float64{0.5}}).Usable())
}

func TestSimSourceContactWindow(t *testing.T) {
	sim := NewSimSource(6, 0, Contact{Joint: 1, From: 0, Until: time.Hour, VoltageSag: 6.0, CurrentRise: 0.8})

	snap, err := sim.Snapshot(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 18.0, snap.Voltages[1], 1e-9)
	assert.InDelta(t, 1.3, snap.Currents[1], 1e-9)
	assert.InDelta(t, 24.0, snap.Voltages[0], 1e-9)
}

func TestSimSourceScriptedFaults(t *testing.T) {
	sim := NewSimSource(6, 0)
	sim.FailOnTick(1)

	_, err := sim.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = sim.Snapshot(context.Background())
	require.Error(t, err)
	_, err = sim.Snapshot(context.Background())
	require.NoError(t, err)
}
