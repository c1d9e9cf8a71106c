package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a temp YAML file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
motor:
  host: 10.0.28.39
  port: 3336
signal:
  type: ca_gateway_http
  gateway_url: http://ca-gw.acc.local:8080
tuning:
  coef_min: 0.01
  coef_max: 0.05
  test_step_mm: 0.1
  tracking_step_mm: 0.1
defaults:
  debug_level: 1
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Motor.Host != "10.0.28.39" || cfg.Motor.Port != 3336 {
		t.Errorf("motor endpoint = %s:%d, want 10.0.28.39:3336", cfg.Motor.Host, cfg.Motor.Port)
	}
	if cfg.Tuning.CoefMin != 0.01 || cfg.Tuning.CoefMax != 0.05 {
		t.Errorf("band = [%g, %g], want [0.01, 0.05]", cfg.Tuning.CoefMin, cfg.Tuning.CoefMax)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Motor.TimeoutMs != 5000 {
		t.Errorf("motor timeout default = %d, want 5000", cfg.Motor.TimeoutMs)
	}
	if len(cfg.Motor.Axes) != 8 || cfg.Motor.Axes[0] != "A" || cfg.Motor.Axes[7] != "H" {
		t.Errorf("axes default = %v, want A..H", cfg.Motor.Axes)
	}
	if cfg.Signal.PVName != "PrtAcc:Pwr:ReflectionCoefCalc" {
		t.Errorf("pv_name default = %q", cfg.Signal.PVName)
	}
	if cfg.Signal.TimeoutMs != 2000 {
		t.Errorf("signal timeout default = %d, want 2000", cfg.Signal.TimeoutMs)
	}
	if cfg.Tuning.SettlingTimeMs != 200 {
		t.Errorf("settling time default = %d, want 200", cfg.Tuning.SettlingTimeMs)
	}
	if cfg.Tuning.MaxTrackingSteps != 100 {
		t.Errorf("max tracking steps default = %d, want 100", cfg.Tuning.MaxTrackingSteps)
	}
	if cfg.Tuning.NoiseTolerance != 0.05 {
		t.Errorf("noise tolerance default = %g, want 0.05", cfg.Tuning.NoiseTolerance)
	}
	if cfg.Tuning.UpdateRateHz != 1.0 {
		t.Errorf("update rate default = %g, want 1.0", cfg.Tuning.UpdateRateHz)
	}
}

func TestLoad_TuningInvariants(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"coef_min_missing", `
motor: {host: h, port: 1}
signal: {type: mock}
tuning: {coef_max: 0.05, test_step_mm: 0.1, tracking_step_mm: 0.1}
`},
		{"coef_min_negative", `
motor: {host: h, port: 1}
signal: {type: mock}
tuning: {coef_min: -0.01, coef_max: 0.05, test_step_mm: 0.1, tracking_step_mm: 0.1}
`},
		{"coef_max_below_min", `
motor: {host: h, port: 1}
signal: {type: mock}
tuning: {coef_min: 0.05, coef_max: 0.01, test_step_mm: 0.1, tracking_step_mm: 0.1}
`},
		{"coef_max_equal_min", `
motor: {host: h, port: 1}
signal: {type: mock}
tuning: {coef_min: 0.05, coef_max: 0.05, test_step_mm: 0.1, tracking_step_mm: 0.1}
`},
		{"test_step_missing", `
motor: {host: h, port: 1}
signal: {type: mock}
tuning: {coef_min: 0.01, coef_max: 0.05, tracking_step_mm: 0.1}
`},
		{"tracking_step_negative", `
motor: {host: h, port: 1}
signal: {type: mock}
tuning: {coef_min: 0.01, coef_max: 0.05, test_step_mm: 0.1, tracking_step_mm: -0.1}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected invariant violation error, got nil")
			}
		})
	}
}

func TestLoad_MotorEndpointRequired(t *testing.T) {
	yaml := `
signal: {type: mock}
tuning: {coef_min: 0.01, coef_max: 0.05, test_step_mm: 0.1, tracking_step_mm: 0.1}
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Error("expected error for missing motor endpoint, got nil")
	}
}

func TestLoad_MockMotorSkipsEndpointCheck(t *testing.T) {
	yaml := `
signal: {type: mock}
tuning: {coef_min: 0.01, coef_max: 0.05, test_step_mm: 0.1, tracking_step_mm: 0.1}
defaults: {mock_motor: true}
`
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Errorf("mock motor should not require an endpoint, got: %v", err)
	}
}

func TestLoad_SignalTypeRequired(t *testing.T) {
	yaml := `
motor: {host: h, port: 1}
tuning: {coef_min: 0.01, coef_max: 0.05, test_step_mm: 0.1, tracking_step_mm: 0.1}
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Error("expected error for missing signal type, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "tuning: [not a map")); err == nil {
		t.Error("expected error for invalid yaml, got nil")
	}
}

func TestConfig_DurationAccessors(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.MotorTimeout(); got != 5*time.Second {
		t.Errorf("MotorTimeout = %v, want 5s", got)
	}
	if got := cfg.SignalTimeout(); got != 2*time.Second {
		t.Errorf("SignalTimeout = %v, want 2s", got)
	}
	if got := cfg.SettlingTime(); got != 200*time.Millisecond {
		t.Errorf("SettlingTime = %v, want 200ms", got)
	}
	if got := cfg.UpdatePeriod(); got != time.Second {
		t.Errorf("UpdatePeriod = %v, want 1s", got)
	}
}

func TestConfig_UpdatePeriodFromRate(t *testing.T) {
	cfg := &Config{}
	cfg.Tuning.UpdateRateHz = 2.0
	if got := cfg.UpdatePeriod(); got != 500*time.Millisecond {
		t.Errorf("UpdatePeriod at 2 Hz = %v, want 500ms", got)
	}
}

func TestConfig_MotorAddr(t *testing.T) {
	cfg := &Config{}
	cfg.Motor.Host = "10.0.28.39"
	cfg.Motor.Port = 3336
	if got := cfg.MotorAddr(); got != "10.0.28.39:3336" {
		t.Errorf("MotorAddr = %q, want 10.0.28.39:3336", got)
	}
}
