package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a duration-typed config value such as
// watcher.max_age or escalate.dedup_window. Empty means unset and parses
// to zero; negative values are rejected because none of the duration
// fields have a meaningful negative reading.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for fields
// that always need a value, like storage.busy_timeout or
// bridge.setup_timeout: unset (or zero) yields def.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
