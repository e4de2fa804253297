package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/timezone"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, timezone.Location)
}

func TestNewDateRange(t *testing.T) {
	from := day(2024, 1, 15)

	_, err := NewDateRange(time.Time{}, day(2024, 1, 16))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = NewDateRange(from, from)
	require.ErrorAs(t, err, &validationErr)

	_, err = NewDateRange(from, from.Add(23*time.Hour))
	require.ErrorAs(t, err, &validationErr)

	r, err := NewDateRange(from, from.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.True(t, r.From.Equal(from))
}

func TestNewsDetailRejectsEmptyId(t *testing.T) {
	p, err := New(Options{BaseUrl: "http://127.0.0.1:1"}, telemetry.NopAPI{})
	require.NoError(t, err)

	_, _, err = p.NewsDetail(context.Background(), "")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func newTestPortal(t *testing.T, handler http.HandlerFunc) *Portal {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := New(Options{BaseUrl: server.URL}, telemetry.NopAPI{})
	require.NoError(t, err)
	return p
}

func TestNewsFallsBackToPageScrape(t *testing.T) {
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/trpc/") {
			http.NotFound(w, r)
			return
		}
		require.Equal(t, "/news", r.URL.Path)
		w.Write([]byte(`<script>self.__next_f.push([1,"5:{\"news\":[{\"id\":\"3\",\"title\":\"Scraped\"}]}"])</script>`))
	})

	items, diag, err := p.News(context.Background())
	require.NoError(t, err)
	require.Equal(t, "streamed-fragments", diag.StrategyUsed)
	require.Len(t, items, 1)
	require.Equal(t, "Scraped", items[0].Title)
	require.Equal(t, "3", items[0].Id)
}

func TestNewsUsesDiscoveredProcedure(t *testing.T) {
	var procedureCalls atomic.Int64
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/news.getList") {
			procedureCalls.Add(1)
			w.Write([]byte(`{"result":{"data":{"news":[{"id":"1","title":"Via procedure"}]}}}`))
			return
		}
		http.NotFound(w, r)
	})

	items, diag, err := p.News(context.Background())
	require.NoError(t, err)
	require.Equal(t, "procedure", diag.StrategyUsed)
	require.Equal(t, "Via procedure", items[0].Title)

	// the discovered name is cached: the second read must not re-sweep
	before := procedureCalls.Load()
	_, _, err = p.News(context.Background())
	require.NoError(t, err)
	require.Equal(t, before+1, procedureCalls.Load())
}

func TestNewsDetailMarkReadFailureIsSilent(t *testing.T) {
	var markReadSeen atomic.Bool
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "news.markAsRead") {
			markReadSeen.Store(true)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.Equal(t, "/news/7", r.URL.Path)
		w.Write([]byte(`<script>self.__next_f.push([1,"5:{\"id\":\"7\",\"title\":\"A\",\"description\":\"body\"}"])</script>`))
	})

	item, _, err := p.NewsDetail(context.Background(), "7")

	require.NoError(t, err)
	require.Equal(t, "7", item.Id)
	require.Equal(t, "A", item.Title)
	require.True(t, markReadSeen.Load())
}

func TestCalendarPageScrapeFiltersToRange(t *testing.T) {
	page := `<script>self.__next_f.push([1,"5:{\"items\":[` +
		`{\"id\":\"in\",\"title\":\"inside\",\"start\":\"2024-01-16\"},` +
		`{\"id\":\"out\",\"title\":\"outside\",\"start\":\"2024-03-01\"}]}"])</script>`
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/trpc/") {
			http.NotFound(w, r)
			return
		}
		require.Equal(t, "/calendar", r.URL.Path)
		w.Write([]byte(page))
	})

	r, err := NewDateRange(day(2024, 1, 15), day(2024, 1, 20))
	require.NoError(t, err)

	events, err := p.CalendarEvents(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "inside", events[0].Title)
}

func TestCoursesViaProcedure(t *testing.T) {
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "course.getList")
		w.Write([]byte(`{"result":{"data":[{"year":2024,"term":"first","courses":[{"subjectName":"Math","report":{"count":3,"allCount":4}}]}]}}`))
	})

	courses, err := p.Courses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "Math", courses[0].SubjectName)
	require.Equal(t, 75, courses[0].ProgressPercentage)
}

func TestLogoutClearsSessionAndCache(t *testing.T) {
	p, err := New(Options{BaseUrl: "http://127.0.0.1:1"}, telemetry.NopAPI{})
	require.NoError(t, err)

	p.SetSessionCookies("session-token=abc")
	p.newsProcedure = "news.getList"
	p.listingProcedure = "list.get"
	require.True(t, p.IsAuthenticated())

	p.Logout()

	require.False(t, p.IsAuthenticated())
	require.Equal(t, "", p.newsProcedure)
	require.Equal(t, "", p.listingProcedure)
	require.Equal(t, "", p.Session().Raw())
}

func TestDiscoverEndpointsSweepsBothDomains(t *testing.T) {
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/news.getList"):
			w.Write([]byte(`{"result":{"data":[{"id":"1","title":"n"}]}}`))
		case strings.HasSuffix(r.URL.Path, "/home.getList"):
			w.Write([]byte(`{"result":{"data":[{"id":"d1"}]}}`))
		default:
			http.NotFound(w, r)
		}
	})

	procedures, err := p.DiscoverEndpoints(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"news":    "news.getList",
		"listing": "home.getList",
	}, procedures)
	require.Equal(t, "news.getList", p.newsProcedure)
	require.Equal(t, "home.getList", p.listingProcedure)
}

func TestDiscoverEndpointsListingMissIsNotFatal(t *testing.T) {
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/news.getList") {
			w.Write([]byte(`{"result":{"data":[{"id":"1","title":"n"}]}}`))
			return
		}
		http.NotFound(w, r)
	})

	procedures, err := p.DiscoverEndpoints(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"news": "news.getList"}, procedures)
	require.Equal(t, "", p.listingProcedure)
}

func TestDashboardCachesDiscoveredProcedure(t *testing.T) {
	var sweepMisses atomic.Int64
	p := newTestPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/list.get") {
			w.Write([]byte(`{"result":{"data":[{"id":"d1","title":"entry"}]}}`))
			return
		}
		sweepMisses.Add(1)
		http.NotFound(w, r)
	})

	records, err := p.Dashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "list.get", p.listingProcedure)

	// the cached winner is called directly, no second sweep
	before := sweepMisses.Load()
	records, err = p.Dashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, before, sweepMisses.Load())
}

type fakeDriver struct {
	results []LoginResult
	errs    []error
	calls   int
}

func (d *fakeDriver) Login(context.Context) (LoginResult, error) {
	i := d.calls
	d.calls++
	if i >= len(d.results) {
		i = len(d.results) - 1
	}
	return d.results[i], d.errs[i]
}

func TestLoginRetriesThenSucceeds(t *testing.T) {
	p, err := New(Options{BaseUrl: "http://127.0.0.1:1"}, telemetry.NopAPI{})
	require.NoError(t, err)

	driver := &fakeDriver{
		results: []LoginResult{{}, {Cookies: "session-token=fresh"}},
		errs:    []error{context.DeadlineExceeded, nil},
	}

	err = p.Login(context.Background(), driver)
	require.NoError(t, err)
	require.Equal(t, 2, driver.calls)
	require.True(t, p.IsAuthenticated())
}

func TestLoginRejectsTokenlessCookies(t *testing.T) {
	p, err := New(Options{BaseUrl: "http://127.0.0.1:1"}, telemetry.NopAPI{})
	require.NoError(t, err)

	driver := &fakeDriver{
		results: []LoginResult{{Cookies: "theme=dark"}},
		errs:    []error{nil},
	}

	err = p.Login(context.Background(), driver)
	require.Error(t, err)
	require.Equal(t, loginAttempts, driver.calls)
	require.False(t, p.IsAuthenticated())
}
