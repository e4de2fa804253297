// Package transport executes HTTP calls against the portal with a fixed,
// realistic browser header profile and the current session cookie blob
// attached. It surfaces HTTP-layer failures as typed errors and does no
// other response interpretation.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"time"

	"portalbridge/internal/components/assert"
	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/session"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_execute = "transport.execute"
)

// DefaultTimeout bounds page fetches. Liveness probes pass a shorter
// deadline through their context.
const DefaultTimeout = 20 * time.Second

// userAgentFor rotates the advertised browser by host platform so the
// profile stays coherent with TLS/header fingerprints seen by the portal.
func userAgentFor(goos string) string {
	switch goos {
	case "windows":
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	case "darwin":
		return "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	default:
		return "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}
}

type Options struct {
	BaseUrl string
	// UserAgent overrides the platform-default rotation when non-empty.
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	http    *resty.Client
	session *session.Store
	tel     telemetry.API
}

func NewClient(store *session.Store, opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(store)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseUrl)

	tel = telemetry.NewScopedAPI("transport", tel)

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = userAgentFor(runtime.GOOS)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.SetTimeout(timeout)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetHeader("accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	httpClient.SetHeader("accept-language", "ja,en-US;q=0.9,en;q=0.8")
	// accept-encoding is left to net/http so gzip is transparently decoded

	// 2 requests max per second
	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(2, 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		err := rateLimiter.Wait(req.Context())
		if err != nil {
			return err
		}
		// the raw blob is authoritative, derived tokens are never
		// substituted for it here
		raw := store.Raw()
		if raw != "" {
			req.SetHeader("cookie", raw)
		}
		return nil
	})

	return &Client{
		http:    httpClient,
		session: store,
		tel:     tel,
	}, nil
}

// Request describes one outbound call. Body non-nil makes it a POST.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
}

// Execute runs one call and returns the response body. Failures are typed:
// *RequestError when no response arrived, ErrSessionExpired on a 401 while
// a session exists, *StatusError for any other non-2xx status.
func (c *Client) Execute(ctx context.Context, req Request) ([]byte, error) {
	r := c.http.R().SetContext(ctx)
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if req.Body != nil {
		r.SetHeader("content-type", "application/json")
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = "GET"
	}

	res, err := r.Execute(method, req.Path)
	if err != nil {
		c.tel.ReportWarning(
			report_execute,
			fmt.Errorf("no response: %w", err),
			req.Path,
		)
		return nil, &RequestError{Cause: err}
	}

	status := res.StatusCode()
	if status == 401 && c.session.IsAuthenticated() {
		c.tel.ReportWarning(report_execute, ErrSessionExpired, req.Path)
		return nil, ErrSessionExpired
	}
	if status < 200 || status > 299 {
		c.tel.ReportDebug(
			"non-2xx response",
			req.Path,
			fmt.Sprintf("status=%d", status),
		)
		return nil, &StatusError{Code: status, Body: string(res.Body())}
	}

	return res.Body(), nil
}

// Get fetches a page body relative to the base url.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Execute(ctx, Request{Method: "GET", Path: path})
}
