package extract

import (
	"encoding/json"
	"regexp"

	"portalbridge/internal/components/telemetry"
)

// the full-page-state blob shows up under a few quoting variants
// depending on the portal release.
var pageStatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<script[^>]*id="__NEXT_DATA__"[^>]*>(.*?)</script>`),
	regexp.MustCompile(`(?s)<script[^>]*id='__NEXT_DATA__'[^>]*>(.*?)</script>`),
	regexp.MustCompile(`(?s)window\.__NEXT_DATA__\s*=\s*(\{.*?\})\s*;?\s*</script>`),
}

type pageStateStrategy struct {
	tel telemetry.API
}

func (s pageStateStrategy) name() string { return "page-state" }

func parsePageState(payload string) (any, bool) {
	for _, pattern := range pageStatePatterns {
		m := pattern.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(m[1]), &parsed); err != nil {
			continue
		}
		return parsed, true
	}
	return nil, false
}

func (s pageStateStrategy) attempt(payload string) ([]Record, bool) {
	parsed, ok := parsePageState(payload)
	if !ok {
		return nil, false
	}
	records, ok := findRecordArray(parsed)
	if !ok {
		return nil, false
	}
	s.tel.ReportDebug("recovered records from page state", len(records))
	return records, true
}

// attemptDetail searches the page state for a single detail record.
func (s pageStateStrategy) attemptDetail(payload string) (Record, bool) {
	parsed, ok := parsePageState(payload)
	if !ok {
		return nil, false
	}
	return findDetailRecord(parsed)
}
