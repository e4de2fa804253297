package extract

import (
	"encoding/json"
	"strings"

	"portalbridge/internal/components/telemetry"

	"golang.org/x/net/html"
)

// attribute names whose values have carried serialized record arrays in
// older portal releases.
var salvageAttrs = []string{"data-news", "data-items", "data-records"}

// htmlEntityUnescaper covers the entities the portal uses when it embeds
// JSON into attribute values.
var htmlEntityUnescaper = strings.NewReplacer(
	"&quot;", `"`,
	"&#34;", `"`,
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#39;", "'",
)

// salvageStrategy is the last resort: data-* attributes and bare <script>
// array literals. False positives are expected here; the entity-shape
// heuristic is the only gate on what gets returned.
type salvageStrategy struct {
	tel telemetry.API
}

func (s salvageStrategy) name() string { return "loose-salvage" }

func scriptText(node *html.Node) string {
	var b strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
	}
	return b.String()
}

func (s salvageStrategy) tryParse(raw string) ([]Record, bool) {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}
	if arr, ok := parsed.([]any); ok {
		if records, ok := recordsFromArray(arr); ok {
			return records, true
		}
	}
	return findRecordArray(parsed)
}

func (s salvageStrategy) attempt(payload string) ([]Record, bool) {
	root, err := html.Parse(strings.NewReader(payload))
	if err != nil {
		return nil, false
	}

	var records []Record
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if records != nil {
			return
		}
		if node.Type == html.ElementNode {
			for _, attr := range node.Attr {
				for _, name := range salvageAttrs {
					if attr.Key != name {
						continue
					}
					decoded := htmlEntityUnescaper.Replace(attr.Val)
					if found, ok := s.tryParse(decoded); ok {
						records = found
						return
					}
				}
			}
			if node.Data == "script" {
				text := scriptText(node)
				if idx := strings.IndexByte(text, '['); idx >= 0 {
					if literal, ok := balancedArray(text, idx); ok {
						if found, ok := s.tryParse(literal); ok {
							records = found
							return
						}
					}
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	if records == nil {
		return nil, false
	}
	s.tel.ReportDebug("salvaged records from loose markup", len(records))
	return records, true
}
