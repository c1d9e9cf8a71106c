package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Overrides holds tuning parameters that can override config defaults for a
// manual cycle. Zero values mean "use config default".
type Overrides struct {
	CoefMin        float64 `json:"coef_min"`
	CoefMax        float64 `json:"coef_max"`
	TestStepMm     float64 `json:"test_step_mm"`
	TrackingStepMm float64 `json:"tracking_step_mm"`
}

// RunCycleFunc runs one manual control cycle with the given overrides.
// It is called from the POST /run handler in a goroutine.
type RunCycleFunc func(overrides Overrides) error

// FormConfig holds default values for the tuning form (from config).
type FormConfig struct {
	CoefMin        float64 `json:"coef_min"`
	CoefMax        float64 `json:"coef_max"`
	TestStepMm     float64 `json:"test_step_mm"`
	TrackingStepMm float64 `json:"tracking_step_mm"`
	UpdateRateHz   float64 `json:"update_rate_hz"`
}

// Status is a point-in-time snapshot of the tuner.
type Status struct {
	State       string  `json:"state"`
	Coefficient float64 `json:"coefficient"`
	PositionMm  float64 `json:"position_mm"`
}

// StatusFunc returns the current tuner status snapshot.
type StatusFunc func() Status

// ValidateOverrides checks manual-cycle overrides. Zero means "keep config
// default"; anything set must be finite, positive and within mechanical
// limits (steps at most 5 mm).
func ValidateOverrides(o Overrides) error {
	for name, v := range map[string]float64{
		"coef_min":         o.CoefMin,
		"coef_max":         o.CoefMax,
		"test_step_mm":     o.TestStepMm,
		"tracking_step_mm": o.TrackingStepMm,
	} {
		if v != 0 && (math.IsNaN(v) || math.IsInf(v, 0) || v < 0) {
			return fmt.Errorf("%s must be a positive number", name)
		}
	}
	if o.CoefMin > 0 && o.CoefMax > 0 && o.CoefMax <= o.CoefMin {
		return fmt.Errorf("coef_max must be greater than coef_min")
	}
	if o.TestStepMm > 5 {
		return fmt.Errorf("test_step_mm must be at most 5")
	}
	if o.TrackingStepMm > 5 {
		return fmt.Errorf("tracking_step_mm must be at most 5")
	}
	return nil
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunCycle     RunCycleFunc
	GetStatus    StatusFunc
	FormDefaults FormConfig
	limiter      *rate.Limiter
	runningMu    sync.Mutex
	running      bool
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runCycle is nil (continuous loop active), POST /run returns 503.
// Manual cycles actuate real hardware, so /run is rate limited to one request
// per 10 seconds with a burst of 1.
func NewHandlers(broadcaster *StatusBroadcaster, runCycle RunCycleFunc, getStatus StatusFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunCycle:     runCycle,
		GetStatus:    getStatus,
		FormDefaults: formDefaults,
		limiter:      rate.NewLimiter(rate.Limit(0.1), 1),
		staticFS:     staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// HandleStatus returns the current tuner status snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.GetStatus == nil {
		json.NewEncoder(w).Encode(Status{State: "unknown"})
		return
	}
	json.NewEncoder(w).Encode(h.GetStatus())
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to trigger one manual control cycle.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.RunCycle == nil {
		http.Error(w, "manual cycles disabled (continuous loop active)", http.StatusServiceUnavailable)
		return
	}

	if !h.limiter.Allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var overrides Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := ValidateOverrides(overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "cycle already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		if err := h.RunCycle(overrides); err != nil {
			h.Broadcaster.Broadcast("error", "Cycle failed: "+err.Error())
			log.Printf("manual cycle failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Cycle complete")
		}
		if h.GetStatus != nil {
			h.Broadcaster.BroadcastStatus(h.GetStatus())
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			w.Write([]byte("data: " + string(data) + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
