// Package rpc calls the portal's internal typed-procedure endpoints.
// A procedure is addressed by name with a JSON input; the portal accepts a
// query-parameter-encoded GET and a JSON-RPC-shaped POST for the same
// procedure, so every call tries the cheap GET first and falls back to POST.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"portalbridge/internal/components/assert"
	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/session"
	"portalbridge/internal/transport"
)

const (
	report_call     = "rpc.call"
	report_discover = "rpc.discover"
)

// ProcedureError is an in-band error object returned by a procedure.
type ProcedureError struct {
	Code    string
	Message string
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("procedure failed with code %s: %s", e.Code, e.Message)
}

// procedures known to exist across observed portal releases. News and
// generic listings are absent on purpose, their names drift and are found
// through the discovery sweep instead.
var catalog = []string{
	"user.getProfile",
	"home.getDashboard",
	"news.markAsRead",
	"calendar.getEvents",
	"course.getList",
}

type Client struct {
	transport  *transport.Client
	session    *session.Store
	tel        telemetry.API
	pathPrefix string
	requestId  atomic.Int64
}

func NewClient(t *transport.Client, s *session.Store, tel telemetry.API) *Client {
	assert.NotNil(t)
	assert.NotNil(s)
	assert.NotNil(tel)

	return &Client{
		transport:  t,
		session:    s,
		tel:        telemetry.NewScopedAPI("rpc", tel),
		pathPrefix: "/api/trpc",
	}
}

// Catalog returns the procedure names known to work.
func (c *Client) Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

type inbandError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *inbandError    `json:"error"`
}

// some releases wrap the payload once more as {"result":{"data":...}}
func unwrapResult(raw json.RawMessage) json.RawMessage {
	var inner struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &inner); err == nil && len(inner.Data) > 0 {
		return inner.Data
	}
	return raw
}

func (c *Client) parseEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal procedure response: %w", err)
	}
	if env.Error != nil {
		code := string(env.Error.Code)
		// the code arrives as either a bare number or a quoted string
		var s string
		if json.Unmarshal(env.Error.Code, &s) == nil {
			code = s
		}
		return nil, &ProcedureError{Code: code, Message: env.Error.Message}
	}
	return unwrapResult(env.Result), nil
}

func (c *Client) authHeaders() map[string]string {
	headers := map[string]string{}
	if token := c.session.SessionToken(); token != "" {
		headers["authorization"] = fmt.Sprintf("Bearer %s", token)
	}
	if csrf := c.session.CsrfToken(); csrf != "" {
		headers["x-csrf-token"] = csrf
	}
	return headers
}

// Call invokes a named remote procedure and returns its result payload.
// The GET attempt is cheap and cacheable; any failure of it other than an
// expired session transparently retries as a JSON-RPC POST. The caller
// never observes the intermediate failure.
func (c *Client) Call(ctx context.Context, name string, params any) (json.RawMessage, error) {
	result, getErr := c.callGet(ctx, name, params)
	if getErr == nil {
		return result, nil
	}
	if errors.Is(getErr, transport.ErrSessionExpired) {
		return nil, getErr
	}

	c.tel.ReportDebug(
		"get attempt failed, retrying as post",
		name,
		getErr,
	)

	result, postErr := c.callPost(ctx, name, params)
	if postErr == nil {
		return result, nil
	}
	if errors.Is(postErr, transport.ErrSessionExpired) {
		return nil, postErr
	}

	c.tel.ReportWarning(
		report_call,
		fmt.Errorf("both attempts failed: get: %v: post: %w", getErr, postErr),
		name,
	)
	return nil, postErr
}

func (c *Client) callGet(ctx context.Context, name string, params any) (json.RawMessage, error) {
	query := url.Values{}
	if params != nil {
		input, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		query.Set("input", string(input))
	}

	body, err := c.transport.Execute(ctx, transport.Request{
		Method:  "GET",
		Path:    fmt.Sprintf("%s/%s", c.pathPrefix, name),
		Query:   query,
		Headers: c.authHeaders(),
	})
	if err != nil {
		return nil, err
	}
	return c.parseEnvelope(body)
}

type jsonrpcBody struct {
	Id     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

func (c *Client) callPost(ctx context.Context, name string, params any) (json.RawMessage, error) {
	body, err := c.transport.Execute(ctx, transport.Request{
		Method: "POST",
		Path:   fmt.Sprintf("%s/%s", c.pathPrefix, name),
		Body: jsonrpcBody{
			Id:     c.requestId.Add(1),
			Method: name,
			Params: params,
		},
		Headers: c.authHeaders(),
	})
	if err != nil {
		return nil, err
	}
	return c.parseEnvelope(body)
}
