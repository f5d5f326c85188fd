package telemetry

import (
	"os"
	"path/filepath"
)

const defaultEventsPath = ".agent/events.jsonl"

var observeEnabled bool

func init() {
	// Read once at process start. Mid-run environment changes have no effect
	// except the explicit AGT_OBSERVE_JSON=1 override below.
	observeEnabled = os.Getenv("AGT_OBSERVE_JSON") == "1"
}

// ObserveEnabled reports whether JSONL emission is on.
func ObserveEnabled() bool {
	// Allow tests to enable mid-run via env override.
	if os.Getenv("AGT_OBSERVE_JSON") == "1" {
		return true
	}
	return observeEnabled
}

// EventsPath is where events are appended; AGT_OBSERVE_PATH overrides the
// default .agent/events.jsonl.
func EventsPath() string {
	if p := os.Getenv("AGT_OBSERVE_PATH"); p != "" {
		return filepath.Clean(p)
	}
	return defaultEventsPath
}
