package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one physical-data read at the controller boundary.
const DefaultTimeout = 2 * time.Second

// Client polls an arm controller's physical-data endpoint over HTTP.
// The endpoint returns joint_voltage and joint_current arrays:
//
//	GET http://<robot>/api/v1/phy_data
//	→ {"joint_voltage":[24.1, ...], "joint_current":[0.48, ...]}
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

// NewClient creates a Client for the given robot address ("host" or
// "host:port"). The timeout applies per request; zero means DefaultTimeout.
func NewClient(robotAddr string, timeout time.Duration, log *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s", robotAddr),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Snapshot fetches one reading. Any transport error, non-200 status, or
// response missing either vector comes back as an error; the caller treats
// that as a skipped tick.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/phy_data", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("phy_data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("controller returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading phy_data body: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decoding phy_data: %w", err)
	}
	if !snap.Usable() {
		return nil, fmt.Errorf("phy_data missing joint_voltage or joint_current")
	}

	snap.Taken = time.Now()
	return &snap, nil
}
