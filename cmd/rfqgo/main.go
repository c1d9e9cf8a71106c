package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/RFQGo/internal/config"
	"github.com/cjeanneret/RFQGo/internal/debug"
	"github.com/cjeanneret/RFQGo/internal/hw/motor"
	sig "github.com/cjeanneret/RFQGo/internal/hw/signal"
	"github.com/cjeanneret/RFQGo/internal/hw/transport"
	"github.com/cjeanneret/RFQGo/internal/logic/tuner"
	"github.com/cjeanneret/RFQGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	once := flag.Bool("once", false, "run a single control cycle and exit")
	manual := flag.Bool("manual", false, "disable the continuous loop; cycles are triggered via the web UI (requires -web)")
	coefMin := flag.Float64("coef_min", 0, "override acceptable-band floor")
	coefMax := flag.Float64("coef_max", 0, "override acceptable-band ceiling")
	testStepMm := flag.Float64("test_step_mm", 0, "override direction-probe step in mm")
	trackingStepMm := flag.Float64("tracking_step_mm", 0, "override tracking step in mm")
	updateRateHz := flag.Float64("update_rate_hz", 0, "override control loop frequency in Hz")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*coefMin, *coefMax, *testStepMm, *trackingStepMm, *updateRateHz); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}

	// Apply CLI overrides to config
	applyOverrides(cfg, web.Overrides{
		CoefMin:        *coefMin,
		CoefMax:        *coefMax,
		TestStepMm:     *testStepMm,
		TrackingStepMm: *trackingStepMm,
	}, *updateRateHz)

	if *manual && webPort.port() == 0 {
		log.Fatalf("-manual requires -web")
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock motor", cfg.Defaults.MockMotor)

	// Initialize actuator transport and drive
	tr, err := transport.New(cfg.Defaults.MockMotor, cfg.MotorAddr(), cfg.MotorTimeout())
	if err != nil {
		log.Fatalf("init motor transport failed: %v", err)
	}
	drive, err := motor.NewDrive(tr, cfg.Motor.Axes)
	if err != nil {
		log.Fatalf("init tuner drive failed: %v", err)
	}
	defer func() {
		if err := drive.Close(); err != nil {
			log.Printf("closing tuner drive failed: %v", err)
		}
	}()
	debug.Value("Motor endpoint", cfg.MotorAddr())
	debug.Value("Axes", cfg.Motor.Axes)

	// Initialize coefficient source
	source, err := newSourceFromConfig(cfg)
	if err != nil {
		log.Fatalf("init coefficient source failed: %v", err)
	}
	debug.Value("Signal type", cfg.Signal.Type)
	debug.Value("PV name", cfg.Signal.PVName)

	ctrl, err := tuner.NewController(source, drive, tuningFromConfig(cfg))
	if err != nil {
		log.Fatalf("init tuner controller failed: %v", err)
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		formDefaults := web.FormConfig{
			CoefMin:        cfg.Tuning.CoefMin,
			CoefMax:        cfg.Tuning.CoefMax,
			TestStepMm:     cfg.Tuning.TestStepMm,
			TrackingStepMm: cfg.Tuning.TrackingStepMm,
			UpdateRateHz:   cfg.Tuning.UpdateRateHz,
		}
		getStatus := func() web.Status {
			return web.Status{
				State:       ctrl.State().String(),
				Coefficient: ctrl.LastCoefficient(),
				PositionMm:  drive.Position(),
			}
		}

		// Manual cycles are only offered when the continuous loop is off;
		// the controller is not reentrant. The runner keeps the most recent
		// cycle's controller visible to /status, so the dashboard reflects
		// manual cycles instead of the idle startup controller.
		var runCycle web.RunCycleFunc
		if *manual {
			runner := newManualRunner(cfg, source, drive, ctrl)
			runCycle = runner.Run
			getStatus = runner.Status
		}

		srv := web.NewServer(webAddr, broadcaster, runCycle, getStatus, formDefaults)

		if *manual {
			if err := srv.Run(ctx); err != nil {
				log.Fatalf("web server: %v", err)
			}
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx)
		})
		g.Go(func() error {
			return runContinuous(gctx, ctrl, cfg)
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("control loop: %v", err)
		}
		return
	}

	if *once {
		debug.Section("Single Control Cycle")
		if err := ctrl.RunOnce(); err != nil {
			log.Fatalf("control cycle failed: %v", err)
		}
		debug.Value("Final state", ctrl.State())
		debug.Value("Final coefficient", ctrl.LastCoefficient())
		debug.Value("Net position (mm)", drive.Position())
		return
	}

	if err := runContinuous(ctx, ctrl, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("control loop: %v", err)
	}
}

// runContinuous drives the controller at the configured update rate until
// cancellation or an unrecoverable error.
func runContinuous(ctx context.Context, ctrl *tuner.Controller, cfg *config.Config) error {
	sched, err := tuner.NewScheduler(ctrl, cfg.UpdatePeriod())
	if err != nil {
		return err
	}
	debug.Section("Continuous Control")
	debug.Value("Update rate (Hz)", cfg.Tuning.UpdateRateHz)
	return sched.Run(ctx)
}

// manualRunner executes operator-triggered cycles. Each cycle runs on a fresh
// controller built from the base config plus the request overrides; the most
// recent controller stays referenced so the status endpoint reports it.
type manualRunner struct {
	cfg    *config.Config
	source sig.Source
	drive  *motor.Drive

	mu   sync.RWMutex
	last *tuner.Controller
}

func newManualRunner(cfg *config.Config, source sig.Source, drive *motor.Drive, initial *tuner.Controller) *manualRunner {
	return &manualRunner{
		cfg:    cfg,
		source: source,
		drive:  drive,
		last:   initial,
	}
}

// Run executes one control cycle with overrides applied to a copy of the base
// config. The new controller becomes visible to Status before the cycle runs,
// so polls during a cycle see its live state.
func (m *manualRunner) Run(overrides web.Overrides) error {
	cfg := applyOverridesToCopy(m.cfg, overrides)

	ctrl, err := tuner.NewController(m.source, m.drive, tuningFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	m.mu.Lock()
	m.last = ctrl
	m.mu.Unlock()

	return ctrl.RunOnce()
}

// Status reports the most recently run controller and the shared drive.
func (m *manualRunner) Status() web.Status {
	m.mu.RLock()
	ctrl := m.last
	m.mu.RUnlock()

	return web.Status{
		State:       ctrl.State().String(),
		Coefficient: ctrl.LastCoefficient(),
		PositionMm:  m.drive.Position(),
	}
}

// tuningFromConfig maps the application config onto the controller's config.
func tuningFromConfig(cfg *config.Config) tuner.Config {
	return tuner.Config{
		CoefMin:          cfg.Tuning.CoefMin,
		CoefMax:          cfg.Tuning.CoefMax,
		TestStepMm:       cfg.Tuning.TestStepMm,
		TrackingStepMm:   cfg.Tuning.TrackingStepMm,
		SettlingTime:     cfg.SettlingTime(),
		MaxTrackingSteps: cfg.Tuning.MaxTrackingSteps,
		NoiseTolerance:   cfg.Tuning.NoiseTolerance,
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(coefMin, coefMax, testStep, trackingStep, updateRate float64) error {
	for name, v := range map[string]float64{
		"coef_min":         coefMin,
		"coef_max":         coefMax,
		"test_step_mm":     testStep,
		"tracking_step_mm": trackingStep,
		"update_rate_hz":   updateRate,
	} {
		if v != 0 && (math.IsNaN(v) || math.IsInf(v, 0) || v < 0) {
			return fmt.Errorf("%s must be a positive number, got %g", name, v)
		}
	}
	if coefMin > 0 && coefMax > 0 && coefMax <= coefMin {
		return fmt.Errorf("coef_max must be greater than coef_min, got %g <= %g", coefMax, coefMin)
	}
	if testStep > 5 {
		return fmt.Errorf("test_step_mm must be at most 5, got %g", testStep)
	}
	if trackingStep > 5 {
		return fmt.Errorf("tracking_step_mm must be at most 5, got %g", trackingStep)
	}
	if updateRate > 100 {
		return fmt.Errorf("update_rate_hz must be at most 100, got %g", updateRate)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, overrides web.Overrides, updateRateHz float64) {
	if overrides.CoefMin > 0 {
		cfg.Tuning.CoefMin = overrides.CoefMin
	}
	if overrides.CoefMax > 0 {
		cfg.Tuning.CoefMax = overrides.CoefMax
	}
	if overrides.TestStepMm > 0 {
		cfg.Tuning.TestStepMm = overrides.TestStepMm
	}
	if overrides.TrackingStepMm > 0 {
		cfg.Tuning.TrackingStepMm = overrides.TrackingStepMm
	}
	if updateRateHz > 0 {
		cfg.Tuning.UpdateRateHz = updateRateHz
	}
}

// applyOverridesToCopy returns a new config with overrides applied.
// Zero values in overrides mean "use base config".
func applyOverridesToCopy(baseCfg *config.Config, overrides web.Overrides) *config.Config {
	cfg := *baseCfg
	if overrides.CoefMin > 0 {
		cfg.Tuning.CoefMin = overrides.CoefMin
	}
	if overrides.CoefMax > 0 {
		cfg.Tuning.CoefMax = overrides.CoefMax
	}
	if overrides.TestStepMm > 0 {
		cfg.Tuning.TestStepMm = overrides.TestStepMm
	}
	if overrides.TrackingStepMm > 0 {
		cfg.Tuning.TrackingStepMm = overrides.TrackingStepMm
	}
	return &cfg
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newSourceFromConfig selects a coefficient source implementation based on configuration.
func newSourceFromConfig(cfg *config.Config) (sig.Source, error) {
	switch cfg.Signal.Type {
	case "ca_gateway_http":
		return sig.NewCAGateway(cfg.Signal.GatewayURL, cfg.Signal.PVName, cfg.SignalTimeout())
	case "mock":
		// Mid-band value: the loop stays idle until the value is changed.
		return sig.NewMockSource((cfg.Tuning.CoefMin + cfg.Tuning.CoefMax) / 2), nil
	default:
		return nil, fmt.Errorf("unsupported signal type: %s", cfg.Signal.Type)
	}
}
