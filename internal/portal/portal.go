// Package portal is the top-level façade over the fetch → extract →
// normalize pipeline. It owns the session store and wires the transport,
// procedure client and extraction engine together; each resource read is
// a self-contained pipeline run with no shared state beyond the session.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"portalbridge/internal/components/assert"
	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/extract"
	"portalbridge/internal/normalize"
	"portalbridge/internal/rpc"
	"portalbridge/internal/session"
	"portalbridge/internal/transport"
)

const (
	report_news        = "portal.news"
	report_news_detail = "portal.news-detail"
	report_mark_read   = "portal.mark-read"
	report_calendar    = "portal.calendar"
	report_courses     = "portal.courses"
	report_dashboard   = "portal.dashboard"
	report_discover    = "portal.discover"
)

const DefaultBaseUrl = "https://portal.example-school.jp"

type Options struct {
	// BaseUrl overrides the default portal origin.
	BaseUrl string
	// UserAgent overrides the platform-default rotation.
	UserAgent string
	// Extract and Calendar are pointers so an explicit zero-valued config
	// is distinguishable from "use the defaults".
	Extract  *extract.Options
	Calendar *normalize.CalendarConfig
}

// ValidationError rejects bad caller input before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// DateRange is a validated calendar query window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange rejects inverted or sub-day windows; the portal's calendar
// procedure misbehaves on both.
func NewDateRange(from, to time.Time) (DateRange, error) {
	if from.IsZero() || to.IsZero() {
		return DateRange{}, &ValidationError{Reason: "both from and to dates are required"}
	}
	if to.Sub(from) < 24*time.Hour {
		return DateRange{}, &ValidationError{
			Reason: "the to date must be at least one day after the from date",
		}
	}
	return DateRange{From: from, To: to}, nil
}

type Portal struct {
	session   *session.Store
	transport *transport.Client
	rpc       *rpc.Client
	engine    *extract.Engine

	baseUrl     string
	calendarCfg normalize.CalendarConfig

	// discovered procedure names, cached for the session lifetime.
	// login is an exclusive user-driven flow, so no locking is needed
	// here by contract.
	newsProcedure    string
	listingProcedure string

	tel telemetry.API
}

func New(opts Options, tel telemetry.API) (*Portal, error) {
	assert.NotNil(tel)

	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}

	store := session.NewStore(tel)
	transportClient, err := transport.NewClient(store, transport.Options{
		BaseUrl:   baseUrl,
		UserAgent: opts.UserAgent,
	}, tel)
	if err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}

	extractOpts := extract.DefaultOptions()
	if opts.Extract != nil {
		extractOpts = *opts.Extract
	}
	calendarCfg := normalize.DefaultCalendarConfig()
	if opts.Calendar != nil {
		calendarCfg = *opts.Calendar
	}

	return &Portal{
		session:     store,
		transport:   transportClient,
		rpc:         rpc.NewClient(transportClient, store, tel),
		engine:      extract.NewEngine(extractOpts, tel),
		baseUrl:     baseUrl,
		calendarCfg: calendarCfg,
		tel:         telemetry.NewScopedAPI("portal", tel),
	}, nil
}

// SetSessionCookies replaces the session with a fresh cookie blob, as
// produced by the login collaborator or pasted by the operator.
func (p *Portal) SetSessionCookies(blob string) {
	p.session.SetCookies(blob)
}

func (p *Portal) IsAuthenticated() bool {
	return p.session.IsAuthenticated()
}

// Logout clears all session state.
func (p *Portal) Logout() {
	p.session.Clear()
	p.newsProcedure = ""
	p.listingProcedure = ""
}

// Session exposes the store for diagnostics and the procedure client.
func (p *Portal) Session() *session.Store {
	return p.session
}

// News fetches the news listing. The procedure name for it is not stable
// across portal releases, so the first call runs the discovery sweep and
// caches the winner; when procedures fail entirely the rendered news page
// is fetched and run through the extraction cascade instead.
func (p *Portal) News(ctx context.Context) ([]normalize.NewsItem, extract.Diagnostics, error) {
	records, diag, err := p.newsRecords(ctx)
	if err != nil {
		return nil, diag, err
	}
	return normalize.News(records, p.baseUrl), diag, nil
}

func (p *Portal) newsRecords(ctx context.Context) ([]extract.Record, extract.Diagnostics, error) {
	if p.newsProcedure != "" {
		result, err := p.rpc.Call(ctx, p.newsProcedure, nil)
		if err == nil {
			if records, ok := extract.FromJSON(result); ok {
				return records, extract.Diagnostics{StrategyUsed: "procedure"}, nil
			}
		} else if errors.Is(err, transport.ErrSessionExpired) {
			return nil, extract.Diagnostics{}, err
		}
		// the cached name stopped working, rediscover below
		p.newsProcedure = ""
	}

	name, result, err := p.rpc.Discover(ctx, "news", rpc.NewsCandidates)
	if err == nil {
		p.newsProcedure = name
		if records, ok := extract.FromJSON(result); ok {
			return records, extract.Diagnostics{StrategyUsed: "procedure"}, nil
		}
	} else if errors.Is(err, transport.ErrSessionExpired) {
		return nil, extract.Diagnostics{}, err
	} else {
		p.tel.ReportDebug("news discovery failed, falling back to page scrape", err)
	}

	body, err := p.transport.Get(ctx, "/news")
	if err != nil {
		p.tel.ReportBroken(report_news, fmt.Errorf("fetch news page: %w", err))
		return nil, extract.Diagnostics{}, err
	}
	records, diag := p.engine.Records(string(body))
	return records, diag, nil
}

// NewsDetail fetches one news item by id and marks it as read. The mark
// is fire-and-forget: its failure is reported but never invalidates the
// read that it accompanied.
func (p *Portal) NewsDetail(ctx context.Context, id string) (normalize.NewsItem, extract.Diagnostics, error) {
	if id == "" {
		return normalize.NewsItem{}, extract.Diagnostics{}, &ValidationError{Reason: "a news id is required"}
	}

	body, err := p.transport.Get(ctx, fmt.Sprintf("/news/%s", id))
	if err != nil {
		p.tel.ReportBroken(report_news_detail, fmt.Errorf("fetch: %w", err), id)
		return normalize.NewsItem{}, extract.Diagnostics{}, err
	}

	record, found, diag := p.engine.Detail(string(body))
	if !found {
		return normalize.NewsItem{}, diag, fmt.Errorf(
			"news item %s not found (if it exists, run diagnostics; the portal format may have drifted)",
			id,
		)
	}
	item := normalize.NewsItemFrom(record, 0, p.baseUrl)

	p.markRead(ctx, id)

	return item, diag, nil
}

func (p *Portal) markRead(ctx context.Context, id string) {
	_, err := p.rpc.Call(ctx, "news.markAsRead", map[string]any{"id": id})
	if err != nil {
		p.tel.ReportWarning(
			report_mark_read,
			fmt.Errorf("mark as read: %w", err),
			id,
		)
	}
}

// CalendarEvents fetches events inside a validated range, preferring the
// calendar procedure and falling back to scraping the calendar page.
func (p *Portal) CalendarEvents(ctx context.Context, r DateRange) ([]normalize.CalendarEvent, error) {
	result, err := p.rpc.Call(ctx, "calendar.getEvents", map[string]any{
		"from": r.From.Format(time.RFC3339),
		"to":   r.To.Format(time.RFC3339),
	})
	if err == nil {
		if records, ok := extract.FromJSON(result); ok {
			return normalize.Events(records, p.calendarCfg), nil
		}
	} else if errors.Is(err, transport.ErrSessionExpired) {
		return nil, err
	} else {
		p.tel.ReportDebug("calendar procedure failed, scraping page", err)
	}

	body, err := p.transport.Get(ctx, "/calendar")
	if err != nil {
		p.tel.ReportBroken(report_calendar, fmt.Errorf("fetch calendar page: %w", err))
		return nil, err
	}
	records, _ := p.engine.Records(string(body))
	events := normalize.Events(records, p.calendarCfg)

	filtered := events[:0]
	for _, event := range events {
		if event.End.Before(r.From) || event.Start.After(r.To) {
			continue
		}
		filtered = append(filtered, event)
	}
	return filtered, nil
}

// Courses fetches the flattened course list with computed progress fields.
func (p *Portal) Courses(ctx context.Context) ([]normalize.CourseRecord, error) {
	result, err := p.rpc.Call(ctx, "course.getList", nil)
	if err == nil {
		if records, ok := termYearRecords(result); ok {
			return normalize.Courses(records), nil
		}
	} else if errors.Is(err, transport.ErrSessionExpired) {
		return nil, err
	} else {
		p.tel.ReportDebug("course procedure failed, scraping page", err)
	}

	body, err := p.transport.Get(ctx, "/courses")
	if err != nil {
		p.tel.ReportBroken(report_courses, fmt.Errorf("fetch courses page: %w", err))
		return nil, err
	}
	records, _ := p.engine.Records(string(body))
	return normalize.Courses(records), nil
}

// termYearRecords accepts either a bare array of term-year objects or an
// object wrapping one.
func termYearRecords(raw json.RawMessage) ([]extract.Record, bool) {
	var arr []extract.Record
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return arr, true
	}
	return extract.FromJSON(raw)
}

// Dashboard fetches the generic dashboard listing as raw records. Its
// procedure name is as unstable as the news one, so the first call runs
// the listing discovery sweep and caches the winner.
func (p *Portal) Dashboard(ctx context.Context) ([]extract.Record, error) {
	if p.listingProcedure != "" {
		result, err := p.rpc.Call(ctx, p.listingProcedure, nil)
		if err == nil {
			if records, ok := extract.FromJSON(result); ok {
				return records, nil
			}
		} else if errors.Is(err, transport.ErrSessionExpired) {
			return nil, err
		}
		// the cached name stopped working, rediscover below
		p.listingProcedure = ""
	}

	name, result, err := p.rpc.Discover(ctx, "listing", rpc.ListingCandidates)
	if err != nil {
		p.tel.ReportBroken(report_dashboard, err)
		return nil, err
	}
	p.listingProcedure = name

	records, ok := extract.FromJSON(result)
	if !ok {
		return []extract.Record{}, nil
	}
	return records, nil
}

// Procedures exposes the procedure catalog for the tool surface.
func (p *Portal) Procedures() []string {
	return p.rpc.Catalog()
}

// DiscoverEndpoints runs the discovery sweep for every unstable procedure
// domain and caches the winners (operator tooling). A news miss is an
// error since nothing else can serve news over procedures; the generic
// listing domain is best-effort and simply absent from the result when
// its sweep comes up empty.
func (p *Portal) DiscoverEndpoints(ctx context.Context) (map[string]string, error) {
	newsName, _, err := p.rpc.Discover(ctx, "news", rpc.NewsCandidates)
	if err != nil {
		return nil, err
	}
	p.newsProcedure = newsName
	found := map[string]string{"news": newsName}

	listingName, _, err := p.rpc.Discover(ctx, "listing", rpc.ListingCandidates)
	if err != nil {
		if errors.Is(err, transport.ErrSessionExpired) {
			return nil, err
		}
		p.tel.ReportWarning(report_discover, fmt.Errorf("listing sweep: %w", err))
		return found, nil
	}
	p.listingProcedure = listingName
	found["listing"] = listingName
	return found, nil
}
