package extract

import (
	"strings"
	"time"

	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/timezone"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_dom = "extract.dom"
)

// DomConfig captures layout assumptions observed from specific portal
// releases. They are configuration, not constants, because the layout has
// drifted before and will again.
type DomConfig struct {
	// GridContainerIndex selects which [role=presentation] element holds
	// the data grid. In every observed layout the first one is a
	// header/toolbar region and the second is the grid, hence default 1.
	GridContainerIndex int
}

// cell data-field values the grid has been observed to use.
var gridFields = []string{"title", "menuName", "isImportant", "isUnread", "publishedAt"}

// attributes that act as a stable row identifier.
var rowIdAttrs = []string{"data-id", "data-row-id", "data-rowindex"}

type domStrategy struct {
	cfg DomConfig
	tel telemetry.API
}

func (s domStrategy) name() string { return "dom-structural" }

func rowId(row *goquery.Selection) (string, bool) {
	for _, attr := range rowIdAttrs {
		if v, ok := row.Attr(attr); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// parseCellDate parses the grid's `YYYY/MM/DD HH:mm` local date text.
// Slashes convert to dashes first so both separator conventions parse.
// An unparsable date degrades to "now" instead of failing the row.
func parseCellDate(text string) time.Time {
	text = strings.ReplaceAll(strings.TrimSpace(text), "/", "-")
	for _, layout := range []string{
		"2006-01-02 15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, text, timezone.Location); err == nil {
			return t
		}
	}
	return timezone.Now()
}

func boolishCell(cell *goquery.Selection) bool {
	v := cell.AttrOr("data-value", strings.TrimSpace(cell.Text()))
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func (s domStrategy) attempt(payload string) ([]Record, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload))
	if err != nil {
		s.tel.ReportWarning(report_dom, err)
		return nil, false
	}

	containers := doc.Find(`[role="presentation"]`)
	if containers.Length() <= s.cfg.GridContainerIndex {
		return nil, false
	}
	grid := containers.Eq(s.cfg.GridContainerIndex)

	var records []Record
	grid.Find(`[role="row"]`).Each(func(_ int, row *goquery.Selection) {
		id, ok := rowId(row)
		if !ok {
			return
		}

		record := Record{"id": id}
		row.Find(`[role="cell"], [role="gridcell"]`).Each(func(_ int, cell *goquery.Selection) {
			field := cell.AttrOr("data-field", "")
			switch field {
			case "title":
				record["title"] = strings.TrimSpace(cell.Text())
				if href, ok := cell.Find("a").Attr("href"); ok {
					record["url"] = href
				}
			case "menuName":
				record["menuName"] = strings.TrimSpace(cell.Text())
			case "isImportant", "isUnread":
				record[field] = boolishCell(cell)
			case "publishedAt":
				record["publishedAt"] = parseCellDate(cell.Text()).Format(time.RFC3339)
			}
		})

		// a row without a resolvable title is a placeholder or a
		// selection checkbox row, drop it
		if title, _ := record["title"].(string); title == "" {
			return
		}
		records = append(records, record)
	})

	if len(records) == 0 {
		return nil, false
	}
	s.tel.ReportDebug("recovered records from data grid", len(records))
	return records, true
}
