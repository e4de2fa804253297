package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/session"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := session.NewStore(telemetry.NopAPI{})
	client, err := NewClient(store, Options{
		BaseUrl: server.URL,
		Timeout: 5 * time.Second,
	}, telemetry.NopAPI{})
	require.NoError(t, err)
	return client, store
}

func TestCookieBlobForwardedVerbatim(t *testing.T) {
	var gotCookie string
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte("ok"))
	})
	store.SetCookies("session-token=abc; theme=dark")

	body, err := client.Get(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, "session-token=abc; theme=dark", gotCookie)
}

func TestUnauthorizedWithSessionIsSessionExpired(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	store.SetCookies("session-token=abc")

	_, err := client.Get(context.Background(), "/news")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestUnauthorizedWithoutSessionIsStatusError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Get(context.Background(), "/news")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 401, statusErr.Code)
}

func TestStatusErrorCarriesBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broke"))
	})

	_, err := client.Get(context.Background(), "/")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 502, statusErr.Code)
	require.Equal(t, "upstream broke", statusErr.Body)
}

func TestNoResponseIsRequestError(t *testing.T) {
	store := session.NewStore(telemetry.NopAPI{})
	client, err := NewClient(store, Options{
		BaseUrl: "http://127.0.0.1:1", // nothing listens here
		Timeout: time.Second,
	}, telemetry.NopAPI{})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/")

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.NotNil(t, errors.Unwrap(reqErr))
}

func TestPostBodyAndQuery(t *testing.T) {
	var gotMethod, gotQuery, gotContentType string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte("{}"))
	})

	_, err := client.Execute(context.Background(), Request{
		Method: "POST",
		Path:   "/api/x",
		Query:  url.Values{"input": []string{"{}"}},
		Body:   map[string]any{"id": 1},
	})
	require.NoError(t, err)
	require.Equal(t, "POST", gotMethod)
	require.Equal(t, "input=%7B%7D", gotQuery)
	require.Equal(t, "application/json", gotContentType)
}

func TestUserAgentOverride(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	store := session.NewStore(telemetry.NopAPI{})
	client, err := NewClient(store, Options{
		BaseUrl:   server.URL,
		UserAgent: "custom-agent/1.0",
		Timeout:   5 * time.Second,
	}, telemetry.NopAPI{})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, "custom-agent/1.0", gotUA)
}

func TestUserAgentRotation(t *testing.T) {
	require.Contains(t, userAgentFor("windows"), "Windows NT")
	require.Contains(t, userAgentFor("darwin"), "Macintosh")
	require.Contains(t, userAgentFor("linux"), "Linux")
	require.Contains(t, userAgentFor("freebsd"), "Linux")
}
