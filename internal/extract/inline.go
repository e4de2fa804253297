package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"portalbridge/internal/components/telemetry"
)

// keys whose inline `"key":[...]` occurrences are worth parsing straight
// out of the raw text.
var inlineArrayKeys = []string{"news", "announcements", "items", "data"}

// balancedArray extracts the array literal starting at s[start] (which
// must be '['), honoring nested brackets and string escapes.
func balancedArray(s string, start int) (string, bool) {
	if start >= len(s) || s[start] != '[' {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

type inlineStrategy struct {
	tel telemetry.API
}

func (s inlineStrategy) name() string { return "inline-json-arrays" }

func (s inlineStrategy) attempt(payload string) ([]Record, bool) {
	for _, key := range inlineArrayKeys {
		needle := fmt.Sprintf(`"%s":`, key)
		offset := 0
		for {
			idx := strings.Index(payload[offset:], needle)
			if idx < 0 {
				break
			}
			arrStart := offset + idx + len(needle)
			for arrStart < len(payload) && (payload[arrStart] == ' ' || payload[arrStart] == '\t') {
				arrStart++
			}
			offset = arrStart

			literal, ok := balancedArray(payload, arrStart)
			if !ok {
				continue
			}
			var parsed []any
			if err := json.Unmarshal([]byte(literal), &parsed); err != nil {
				continue
			}
			if records, ok := recordsFromArray(parsed); ok {
				s.tel.ReportDebug(
					"recovered records from inline array",
					key,
					len(records),
				)
				return records, true
			}
		}
	}
	return nil, false
}
