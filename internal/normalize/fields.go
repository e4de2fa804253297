// Package normalize maps the loosely-typed records recovered by the
// extraction engine onto canonical domain entities, tolerating the many
// field-name aliases the portal has used across releases.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"portalbridge/internal/extract"
	"portalbridge/internal/timezone"
)

// stringField returns the first non-empty string found under the aliases,
// tried in order. Numbers stringify, so ids survive shape drift.
func stringField(record extract.Record, aliases ...string) (string, bool) {
	for _, alias := range aliases {
		v, present := record[alias]
		if !present {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val, true
			}
		case float64:
			return trimFloat(val), true
		}
	}
	return "", false
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", f)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseInstant parses the portal's date strings; zone-less layouts parse
// in the portal's timezone. JSON numbers are epoch seconds, or epoch
// milliseconds when implausibly large for seconds.
func parseInstant(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), "/", "-")
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, timezone.Location); err == nil {
				return t, true
			}
		}
	case float64:
		if val <= 0 {
			return time.Time{}, false
		}
		if val > 1e12 {
			return time.UnixMilli(int64(val)).In(timezone.Location), true
		}
		return time.Unix(int64(val), 0).In(timezone.Location), true
	}
	return time.Time{}, false
}

func timeField(record extract.Record, aliases ...string) (time.Time, bool) {
	for _, alias := range aliases {
		v, present := record[alias]
		if !present {
			continue
		}
		if t, ok := parseInstant(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on", "high":
			return true
		}
	case float64:
		return val != 0
	}
	return false
}

func intField(record extract.Record, aliases ...string) (int, bool) {
	for _, alias := range aliases {
		v, present := record[alias]
		if !present {
			continue
		}
		switch val := v.(type) {
		case float64:
			return int(val), true
		case string:
			var n int
			if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func stringSliceField(record extract.Record, aliases ...string) []string {
	for _, alias := range aliases {
		arr, ok := record[alias].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
