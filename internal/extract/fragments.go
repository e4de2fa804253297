package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"portalbridge/internal/components/telemetry"
)

const (
	report_fragments = "extract.fragments"
)

// The rendering framework streams its payload into the page as a sequence
// of push-style script fragments, each `[slotId, payloadString]`. The
// payload string is frequently of the form `<id>:<JSON>`, or `<id>:T<len>,`
// which is a reference marker whose actual text arrives in a later
// fragment's payload under the same id.
var (
	fragmentPattern      = regexp.MustCompile(`self\.__next_f\.push\(\[(\d+),\s*"((?:[^"\\]|\\.)*)"\]\)`)
	payloadPrefixPattern = regexp.MustCompile(`(?s)^([0-9a-fA-F]+):(.+)$`)
	refMarkerPattern     = regexp.MustCompile(`([0-9a-fA-F]+):T[0-9a-fA-F]+,`)
	inlineTextPattern    = regexp.MustCompile(`^T[0-9a-fA-F]+,`)
)

// long-form content arrives with a small, fixed set of escapes applied.
// This is a best-effort unescape of exactly that set, not a general
// unicode-escape decoder; unknown escapes pass through untouched.
var contentUnescaper = strings.NewReplacer(
	`\u003c`, "<",
	`\u003e`, ">",
	`\u0026`, "&",
	`\"`, `"`,
	`\\`, `\`,
)

func unescapeContent(s string) string {
	return contentUnescaper.Replace(s)
}

type fragment struct {
	slot    int
	payload string
}

// parseFragments scans the page for streamed fragments. A fragment whose
// string body fails to decode is skipped, one broken fragment must never
// abort the whole scan.
func parseFragments(payload string) []fragment {
	matches := fragmentPattern.FindAllStringSubmatch(payload, -1)
	fragments := make([]fragment, 0, len(matches))
	for _, m := range matches {
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		var decoded string
		if err := json.Unmarshal([]byte(`"`+m[2]+`"`), &decoded); err != nil {
			continue
		}
		fragments = append(fragments, fragment{slot: slot, payload: decoded})
	}
	return fragments
}

// splitPrefix splits a payload of the `<id>:<rest>` form.
func splitPrefix(payload string) (id, rest string, ok bool) {
	m := payloadPrefixPattern.FindStringSubmatch(payload)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// buildSideTable collects the long-form text fragments keyed by their id
// so reference markers embedded in earlier fragments can be resolved.
// `<id>:T<len>,<text>` carries its text inline; `<id>:<text>` (where text
// is not JSON) is the delivery fragment for a marker announced earlier.
func buildSideTable(fragments []fragment) map[string]string {
	table := map[string]string{}
	for _, frag := range fragments {
		id, rest, ok := splitPrefix(frag.payload)
		if !ok {
			continue
		}
		// the inline form is exactly `T<len>,`; plain text that merely
		// starts with a T must stay intact
		if marker := inlineTextPattern.FindString(rest); marker != "" {
			table[id] = rest[len(marker):]
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(rest), &parsed); err == nil {
			// JSON payloads are record sources, not text deliveries
			continue
		}
		table[id] = rest
	}
	return table
}

type fragmentStrategy struct {
	tel telemetry.API
}

func (s fragmentStrategy) name() string { return "streamed-fragments" }

func (s fragmentStrategy) attempt(payload string) ([]Record, bool) {
	fragments := parseFragments(payload)
	if len(fragments) == 0 {
		return nil, false
	}

	for _, frag := range fragments {
		_, rest, ok := splitPrefix(frag.payload)
		if !ok {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(rest), &parsed); err != nil {
			continue
		}
		if records, ok := findRecordArray(parsed); ok {
			s.tel.ReportDebug(
				"recovered records from streamed fragments",
				len(records),
			)
			return records, true
		}
	}
	return nil, false
}

// attemptDetail recovers a single record from a detail page and resolves
// its long-form body through the reference-marker side-table.
func (s fragmentStrategy) attemptDetail(payload string) (Record, bool) {
	fragments := parseFragments(payload)
	if len(fragments) == 0 {
		return nil, false
	}
	sideTable := buildSideTable(fragments)

	for _, frag := range fragments {
		_, rest, ok := splitPrefix(frag.payload)
		if !ok {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(rest), &parsed); err != nil {
			continue
		}
		record, ok := findDetailRecord(parsed)
		if !ok {
			continue
		}

		if content, ok := s.resolveContent(record, sideTable); ok {
			record["content"] = unescapeContent(content)
		}
		return record, true
	}
	return nil, false
}

func (s fragmentStrategy) resolveContent(record Record, sideTable map[string]string) (string, bool) {
	if len(sideTable) == 0 {
		return "", false
	}

	if description, ok := record["description"].(string); ok {
		if m := refMarkerPattern.FindStringSubmatch(description); m != nil {
			if content, found := sideTable[m[1]]; found {
				return content, true
			}
			s.tel.ReportWarning(
				report_fragments,
				"reference marker has no matching fragment",
				m[1],
			)
		}
	}

	// no resolvable marker, fall back to the first delivered text; key
	// order is sorted so the choice is stable
	var ids []string
	for id := range sideTable {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", false
	}
	min := ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
	}
	return sideTable[min], true
}
