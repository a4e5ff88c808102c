// Package debug provides env-gated diagnostic logging.
//
// Debug output is off by default and enabled with GV_DEBUG=1 or the
// --verbose flag. Daemon health transitions always go to stderr
// regardless of the debug gate.
package debug

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	enabled     = os.Getenv("GV_DEBUG") != ""
	verboseMode = false
	mu          sync.Mutex
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Daemonf writes a timestamped line to stderr unconditionally.
// Used by the background workers for health transitions and cycle errors,
// which must be visible even when debug output is off.
func Daemonf(worker, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stderr, "%s %s: %s\n",
		time.Now().UTC().Format(time.RFC3339), worker, fmt.Sprintf(format, args...))
}
