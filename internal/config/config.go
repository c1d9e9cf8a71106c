package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MotorConfig describes the tuner motor controller endpoint.
type MotorConfig struct {
	Host      string   `yaml:"host"`       // motor controller IP address
	Port      int      `yaml:"port"`       // TCP port
	TimeoutMs int      `yaml:"timeout_ms"` // per-command exchange timeout (ms)
	Axes      []string `yaml:"axes"`       // ordered axis identifiers, one MOVE_REL per axis per logical move
}

// SignalConfig describes where the reflection coefficient is read from.
// Type selects a concrete implementation (e.g., "ca_gateway_http").
type SignalConfig struct {
	Type       string `yaml:"type"`        // e.g., "ca_gateway_http" or "mock"
	GatewayURL string `yaml:"gateway_url"` // channel-access HTTP gateway base URL
	PVName     string `yaml:"pv_name"`     // process variable holding the reflection coefficient
	TimeoutMs  int    `yaml:"timeout_ms"`  // per-read timeout (ms)
}

// TuningConfig holds the seek-and-track algorithm parameters.
type TuningConfig struct {
	CoefMin          float64 `yaml:"coef_min"`           // lower bound of acceptable band; tracking target
	CoefMax          float64 `yaml:"coef_max"`           // upper bound; exceeding it triggers a tuning cycle
	TestStepMm       float64 `yaml:"test_step_mm"`       // step magnitude during direction probing
	TrackingStepMm   float64 `yaml:"tracking_step_mm"`   // step magnitude during convergence
	SettlingTimeMs   int     `yaml:"settling_time_ms"`   // wait after each move before trusting a reading (ms)
	MaxTrackingSteps int     `yaml:"max_tracking_steps"` // bound on tracking iterations
	NoiseTolerance   float64 `yaml:"noise_tolerance"`    // fractional overshoot allowance before "wrong direction"
	UpdateRateHz     float64 `yaml:"update_rate_hz"`     // continuous control loop frequency
}

// DefaultsConfig contains generic runtime parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockMotor  bool `yaml:"mock_motor"`  // use mock motor transport (true=dev/test, false=real controller)
}

// Config aggregates all application configuration.
type Config struct {
	Motor    MotorConfig    `yaml:"motor"`
	Signal   SignalConfig   `yaml:"signal"`
	Tuning   TuningConfig   `yaml:"tuning"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// DefaultAxes is the fixed axis order of the 8-rod tuner drive.
var DefaultAxes = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if !cfg.Defaults.MockMotor {
		if cfg.Motor.Host == "" {
			return nil, fmt.Errorf("motor.host is required")
		}
		if cfg.Motor.Port <= 0 || cfg.Motor.Port > 65535 {
			return nil, fmt.Errorf("motor.port must be 1-65535, got %d", cfg.Motor.Port)
		}
	}
	if cfg.Motor.TimeoutMs <= 0 {
		cfg.Motor.TimeoutMs = 5000 // 5s per command exchange
	}
	if len(cfg.Motor.Axes) == 0 {
		cfg.Motor.Axes = DefaultAxes
	}

	if cfg.Signal.Type == "" {
		return nil, fmt.Errorf("signal.type is required")
	}
	if cfg.Signal.PVName == "" {
		cfg.Signal.PVName = "PrtAcc:Pwr:ReflectionCoefCalc"
	}
	if cfg.Signal.TimeoutMs <= 0 {
		cfg.Signal.TimeoutMs = 2000 // 2s per read
	}

	// Tuning invariants: these are fatal, not defaulted.
	if cfg.Tuning.CoefMin <= 0 {
		return nil, fmt.Errorf("tuning.coef_min must be > 0, got %g", cfg.Tuning.CoefMin)
	}
	if cfg.Tuning.CoefMax <= cfg.Tuning.CoefMin {
		return nil, fmt.Errorf("tuning.coef_max must be > coef_min, got %g <= %g",
			cfg.Tuning.CoefMax, cfg.Tuning.CoefMin)
	}
	if cfg.Tuning.TestStepMm <= 0 {
		return nil, fmt.Errorf("tuning.test_step_mm must be > 0, got %g", cfg.Tuning.TestStepMm)
	}
	if cfg.Tuning.TrackingStepMm <= 0 {
		return nil, fmt.Errorf("tuning.tracking_step_mm must be > 0, got %g", cfg.Tuning.TrackingStepMm)
	}

	// Tuning defaults
	if cfg.Tuning.SettlingTimeMs <= 0 {
		cfg.Tuning.SettlingTimeMs = 200 // 200ms settling after each move
	}
	if cfg.Tuning.MaxTrackingSteps <= 0 {
		cfg.Tuning.MaxTrackingSteps = 100
	}
	if cfg.Tuning.NoiseTolerance <= 0 {
		cfg.Tuning.NoiseTolerance = 0.05 // 5% tolerance for noise
	}
	if cfg.Tuning.UpdateRateHz <= 0 {
		cfg.Tuning.UpdateRateHz = 1.0
	}

	return &cfg, nil
}

// MotorTimeout returns the per-command exchange timeout.
func (c *Config) MotorTimeout() time.Duration {
	return time.Duration(c.Motor.TimeoutMs) * time.Millisecond
}

// SignalTimeout returns the per-read timeout for the coefficient source.
func (c *Config) SignalTimeout() time.Duration {
	return time.Duration(c.Signal.TimeoutMs) * time.Millisecond
}

// SettlingTime returns the wait after a move before a reading is trusted.
func (c *Config) SettlingTime() time.Duration {
	return time.Duration(c.Tuning.SettlingTimeMs) * time.Millisecond
}

// UpdatePeriod returns the continuous loop period (1/update_rate_hz).
func (c *Config) UpdatePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.Tuning.UpdateRateHz)
}

// MotorAddr returns the motor controller address as host:port.
func (c *Config) MotorAddr() string {
	return fmt.Sprintf("%s:%d", c.Motor.Host, c.Motor.Port)
}
