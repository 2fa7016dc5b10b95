// Package debug implements a gated diagnostic logger for the
// dictionary backend. Output is suppressed entirely while the process
// is serving the MCP stdio transport, since any stray byte on stdout
// would corrupt the JSON-RPC stream.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug can be set at build time:
// go build -ldflags "-X github.com/dictd/dictd/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode tracks whether the process is serving the MCP stdio
// transport (set by mcpsurface.New before the server starts).
var MCPMode = false

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetMCPMode enables MCP mode, which suppresses all debug output.
func SetMCPMode(enabled bool) { MCPMode = enabled }

// SetDebugOutput sets a custom writer for debug output. Pass nil to
// disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file
// under the OS temp directory and returns its path.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "dictd-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether diagnostic output should be emitted.
func IsDebugEnabled() bool {
	if MCPMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	if v := os.Getenv("DEBUG"); v == "1" || v == "true" {
		return true
	}
	return false
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf prints debug information only when debug mode is enabled and
// output is configured.
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if w := getDebugWriter(); w != nil {
		fmt.Fprintf(w, "[DEBUG] "+format, args...)
	}
}

// Log provides structured debug logging with a component tag.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if w := getDebugWriter(); w != nil {
		fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
	}
}

// LogIngest logs dataset ingestion activity.
func LogIngest(format string, args ...interface{}) { Log("INGEST", format, args...) }

// LogBuild logs runtime build-worker activity.
func LogBuild(format string, args ...interface{}) { Log("BUILD", format, args...) }

// LogSearch logs search-engine activity.
func LogSearch(format string, args ...interface{}) { Log("SEARCH", format, args...) }

// LogMCP logs MCP transport activity.
func LogMCP(format string, args ...interface{}) { Log("MCP", format, args...) }

// Progress logs one build-progress snapshot.
func Progress(phase string, current, total int, message string) {
	Log("PROGRESS", "%s %d/%d %s\n", phase, current, total, message)
}

// CatastrophicError logs an error indicating a systemic failure.
// Suppressed in MCP mode, where errors must travel through the
// protocol instead of stderr/a log file.
func CatastrophicError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !MCPMode {
		if w := getDebugWriter(); w != nil {
			fmt.Fprintf(w, "[CATASTROPHIC] %s", msg)
		}
	}
}
