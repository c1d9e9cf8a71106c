package debug

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (state transitions, cycle outcomes)
	LevelLive    = 2 // Live info (moves issued, coefficient readings)
	LevelVerbose = 3 // Verbose (probe/track details, per-step values)
	LevelTrace   = 4 // Trace (transport exchanges, very low level)
)

var (
	level  int
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (state transitions, direction found, convergence)
// 2 = live info (moves, readings)
// 3 = verbose (per-step tracking values)
// 4 = trace (transport commands and acknowledgments)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(os.Stdout, "[RFQGo] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output, e.g. to mirror messages to the web UI.
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Section prints a section separator (level 1).
func Section(name string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// State prints a tuner state transition (level 1).
func State(from, to string, coef float64) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] State: %s -> %s (coef=%.4f)", from, to, coef)
	}
}

// Direction prints the outcome of a direction probe (level 1).
func Direction(dir string, initial, found float64) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Direction found: %s (coef: %.4f -> %.4f)", dir, initial, found)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Move prints a tuner move (level 2).
func Move(deltaMm, positionMm float64) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Move: %+.3f mm (position: %.3f mm)", deltaMm, positionMm)
	}
}

// Coef prints a coefficient reading (level 2).
func Coef(value float64) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Reflection coefficient: %.4f", value)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// Track prints a tracking step (level 3).
func Track(step int, coef float64) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Tracking step %d: coef = %.4f", step, coef)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// Command prints a transport exchange (level 4).
func Command(axis string, deltaMm float64, ack string) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRANSPORT] axis=%s delta=%+.3f ack=%q", axis, deltaMm, ack)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}

// Warn prints a warning (level 1+).
func Warn(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[WARN] "+format, args...)
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
