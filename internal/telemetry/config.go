package telemetry

import (
	"os"
	"path/filepath"
)

const defaultEventsDir = ".conv"

var (
	observeEnabled  bool
	featuresEnabled bool
)

func init() {
	// Read once at process start. Mid-run environment changes have no effect.
	observeEnabled = os.Getenv("CONV_OBSERVE_JSON") == "1"

	// Features: default to the observe setting when CONV_OBSERVE_FEATURES is unset; honour explicit 0/1.
	if v, ok := os.LookupEnv("CONV_OBSERVE_FEATURES"); ok {
		featuresEnabled = (v == "1")
	} else {
		featuresEnabled = observeEnabled
	}
}

// ObserveEnabled reports whether JSONL emission was enabled at startup.
func ObserveEnabled() bool {
	// Preserve startup-evaluated default, but allow tests to enable mid-run via env override.
	if os.Getenv("CONV_OBSERVE_JSON") == "1" {
		return true
	}
	return observeEnabled
}

// FeaturesEnabled reports whether per-message text features are attached to events.
func FeaturesEnabled() bool {
	if os.Getenv("CONV_OBSERVE_FEATURES") == "1" {
		return true
	}
	return featuresEnabled
}

// EventsPath is CONV_EVENTS_DIR/events.jsonl, defaulting to .conv/events.jsonl.
func EventsPath() string {
	dir := os.Getenv("CONV_EVENTS_DIR")
	if dir == "" {
		dir = defaultEventsDir
	}
	return filepath.Join(dir, "events.jsonl")
}
