// Package debug provides the search driver's logging and telemetry
// output. Telemetry lines use a fixed vocabulary so a downstream plotter
// can regex-match them out of the log; everything else is free-form
// leveled logging gated by verbosity.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// verbose tracks whether -v/--verbose was passed. Telemetry lines are
// always emitted; Debugf output is gated by this flag.
var verbose = false

// output is the writer all log and telemetry lines go to. Defaults to
// stderr so stdout stays free for any piped consumer of the final
// result path.
var output io.Writer = os.Stderr

var mu sync.Mutex

// SetVerbose toggles debug-level logging.
func SetVerbose(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = enabled
}

// SetOutput redirects all log and telemetry output. Passing nil
// restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

func isVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// Printf logs an informational line unconditionally.
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(writer(), "%s INFO  %s\n", timestamp(), fmt.Sprintf(format, args...))
}

// Debugf logs a line only when verbose mode is enabled.
func Debugf(format string, args ...interface{}) {
	if !isVerbose() {
		return
	}
	fmt.Fprintf(writer(), "%s DEBUG %s\n", timestamp(), fmt.Sprintf(format, args...))
}

// Warnf logs a warning line unconditionally.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(writer(), "%s WARN  %s\n", timestamp(), fmt.Sprintf(format, args...))
}

// Errorf logs an error line unconditionally.
func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(writer(), "%s ERROR %s\n", timestamp(), fmt.Sprintf(format, args...))
}

// Telemetry emits the per-iteration lines a downstream plotter depends
// on. The literal phrases below are a wire contract: do not reword them.
type Telemetry struct{}

// NewTelemetry returns a Telemetry logger writing through the package
// output.
func NewTelemetry() *Telemetry { return &Telemetry{} }

// Iteration logs the "Iteration N" line that opens one search-loop
// iteration's telemetry.
func (Telemetry) Iteration(index int) {
	Printf("Iteration %d", index)
}

// BestThisIteration logs the iteration's best candidate path, its
// heuristic value, and its (source_bytes, text_bytes) pair.
func (Telemetry) BestThisIteration(path string, heuristic float64, sourceBytes, textBytes uint64) {
	Printf("Best candidate this iteration: %s", path)
	Printf("Best heuristic value this iteration: %f", heuristic)
	Printf("Best candidate info: (%d, %d)", sourceBytes, textBytes)
}

// NoNewCandidates logs that an iteration produced no scoreable output.
func (Telemetry) NoNewCandidates(index int) {
	Printf("No new candidates this iteration %d", index)
}
