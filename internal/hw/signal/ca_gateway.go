package signal

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/cjeanneret/RFQGo/internal/debug"
)

// CAGateway is a Source implementation polling a process variable through the
// facility's channel-access HTTP gateway. The gateway exposes the current PV
// value at GET <base>/pv/<name> as {"name": "...", "value": <float>}.
type CAGateway struct {
	client  *http.Client
	baseURL string
	pvName  string
}

// NewCAGateway creates a gateway-backed coefficient source.
// baseURL is the gateway root (e.g. "http://ca-gw.acc.local:8080"),
// pvName the process variable to poll, timeout the per-read bound.
func NewCAGateway(baseURL, pvName string, timeout time.Duration) (*CAGateway, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("signal: gateway_url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("signal: invalid gateway_url: %w", err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &CAGateway{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		pvName:  pvName,
	}, nil
}

// pvResponse is the gateway's JSON answer for a single PV read.
type pvResponse struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"` // nil when the PV is disconnected/stale
}

func (g *CAGateway) ReadCoefficient() (float64, error) {
	endpoint := fmt.Sprintf("%s/pv/%s", g.baseURL, url.PathEscape(g.pvName))

	resp, err := g.client.Get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("read PV %s: %w", g.pvName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("read PV %s: gateway returned %s", g.pvName, resp.Status)
	}

	var pv pvResponse
	if err := json.NewDecoder(resp.Body).Decode(&pv); err != nil {
		return 0, fmt.Errorf("read PV %s: decode gateway response: %w", g.pvName, err)
	}
	if pv.Value == nil {
		return 0, fmt.Errorf("read PV %s: no value (disconnected or stale)", g.pvName)
	}
	if math.IsNaN(*pv.Value) || math.IsInf(*pv.Value, 0) {
		return 0, fmt.Errorf("read PV %s: non-finite value", g.pvName)
	}

	debug.Trace("PV %s = %g", g.pvName, *pv.Value)
	return *pv.Value, nil
}
