// Package extract recovers structured records from the portal's rendered
// pages. The wire format is an undocumented, versioned framework payload,
// so the engine runs an ordered cascade of independent strategies; the
// first to produce a non-empty plausible result wins and nothing after it
// runs. When every strategy misses, the result is an explicit empty set
// plus a diagnostic of which markers were present, never an error.
package extract

import (
	"strings"

	"portalbridge/internal/components/assert"
	"portalbridge/internal/components/telemetry"
)

const (
	report_records = "engine.records"
	report_detail  = "engine.detail"
)

// Diagnostics tells the operator why an extraction came back empty:
// missing markers point at format drift, a missing session shows up as no
// markers at all on a login redirect page.
type Diagnostics struct {
	PayloadBytes       int    `json:"payloadBytes"`
	HasStreamFragments bool   `json:"hasStreamFragments"`
	HasPageState       bool   `json:"hasPageState"`
	HasDataGrid        bool   `json:"hasDataGrid"`
	HasInlineArrays    bool   `json:"hasInlineArrays"`
	HasScriptArrays    bool   `json:"hasScriptArrays"`
	StrategyUsed       string `json:"strategyUsed,omitempty"`
}

type strategy interface {
	name() string
	attempt(payload string) ([]Record, bool)
}

// detailStrategy is implemented by strategies that can also recover a
// single record from a detail page.
type detailStrategy interface {
	strategy
	attemptDetail(payload string) (Record, bool)
}

type Options struct {
	Dom DomConfig
}

// DefaultOptions reflects the currently observed portal layout.
func DefaultOptions() Options {
	return Options{
		Dom: DomConfig{GridContainerIndex: 1},
	}
}

type Engine struct {
	strategies []strategy
	tel        telemetry.API
}

func NewEngine(opts Options, tel telemetry.API) *Engine {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("extract", tel)

	// cascade order is part of the contract: cheap and precise first,
	// loose and false-positive-prone last
	return &Engine{
		strategies: []strategy{
			fragmentStrategy{tel: tel},
			domStrategy{cfg: opts.Dom, tel: tel},
			pageStateStrategy{tel: tel},
			inlineStrategy{tel: tel},
			salvageStrategy{tel: tel},
		},
		tel: tel,
	}
}

func (e *Engine) inspect(payload string) Diagnostics {
	return Diagnostics{
		PayloadBytes:       len(payload),
		HasStreamFragments: fragmentPattern.MatchString(payload),
		HasPageState:       strings.Contains(payload, "__NEXT_DATA__"),
		HasDataGrid:        strings.Contains(payload, `role="presentation"`) || strings.Contains(payload, `role='presentation'`),
		HasInlineArrays:    hasInlineArrayMarker(payload),
		HasScriptArrays:    strings.Contains(payload, "<script"),
	}
}

func hasInlineArrayMarker(payload string) bool {
	for _, key := range inlineArrayKeys {
		if strings.Contains(payload, `"`+key+`":[`) {
			return true
		}
	}
	return false
}

// Records recovers zero or more records from one rendered page. The
// returned slice is never nil; strategy selection is deterministic for a
// given payload.
func (e *Engine) Records(payload string) ([]Record, Diagnostics) {
	diag := e.inspect(payload)

	for _, s := range e.strategies {
		records, ok := s.attempt(payload)
		if !ok || len(records) == 0 {
			continue
		}
		diag.StrategyUsed = s.name()
		e.tel.ReportDebug("extraction succeeded", s.name(), len(records))
		e.tel.ReportCount(report_records, int64(len(records)))
		return records, diag
	}

	e.tel.ReportWarning(
		report_records,
		"every extraction strategy exhausted",
		diag,
	)
	return []Record{}, diag
}

// Detail recovers a single record from a detail page, or reports not
// found. Only the strategies that understand detail layouts participate.
func (e *Engine) Detail(payload string) (Record, bool, Diagnostics) {
	diag := e.inspect(payload)

	for _, s := range e.strategies {
		ds, ok := s.(detailStrategy)
		if !ok {
			continue
		}
		record, found := ds.attemptDetail(payload)
		if !found {
			continue
		}
		diag.StrategyUsed = s.name()
		e.tel.ReportDebug("detail extraction succeeded", s.name())
		return record, true, diag
	}

	e.tel.ReportDebug("detail extraction found nothing", diag)
	return nil, false, diag
}
