package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"portalbridge/internal/transport"

	"github.com/antzucaro/matchr"
)

// Candidate is one (name, params) combination worth probing when the real
// procedure name is not reliably known. Candidates with a lower Priority
// value are tried first; within the same priority they are ranked by name
// similarity to the domain word the sweep is looking for.
type Candidate struct {
	Name     string
	Priority int
	Params   func() any
}

func noParams() any { return nil }

func pagedParams() any {
	return map[string]any{"page": 1, "limit": 50}
}

// NewsCandidates is the policy table for finding the news-listing
// procedure. The portal has renamed it across releases, this list is every
// name observed or plausible so far, in rough order of likelihood.
var NewsCandidates = []Candidate{
	{Name: "news.getList", Priority: 0, Params: noParams},
	{Name: "news.list", Priority: 0, Params: noParams},
	{Name: "news.getNews", Priority: 1, Params: noParams},
	{Name: "announcement.getList", Priority: 1, Params: noParams},
	{Name: "notification.getList", Priority: 2, Params: pagedParams},
	{Name: "home.getNews", Priority: 2, Params: noParams},
	{Name: "news.getAll", Priority: 3, Params: pagedParams},
	{Name: "information.getList", Priority: 3, Params: noParams},
}

// ListingCandidates covers the generic listing procedure used by the
// dashboard, same situation as NewsCandidates.
var ListingCandidates = []Candidate{
	{Name: "list.get", Priority: 0, Params: noParams},
	{Name: "home.getList", Priority: 0, Params: noParams},
	{Name: "dashboard.getItems", Priority: 1, Params: noParams},
	{Name: "items.getList", Priority: 1, Params: pagedParams},
	{Name: "content.getList", Priority: 2, Params: pagedParams},
}

const (
	discoverAttempts = 2
	discoverBackoff  = 500 * time.Millisecond
)

// plausibleListing reports whether a discovery result looks like real
// data: a non-empty array, or an object carrying a non-empty array
// property.
func plausibleListing(raw json.RawMessage) bool {
	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return len(asArray) > 0
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return false
	}
	for _, v := range asObject {
		var nested []json.RawMessage
		if err := json.Unmarshal(v, &nested); err == nil && len(nested) > 0 {
			return true
		}
	}
	return false
}

// fatalSweepError reports whether an error must stop the whole sweep.
// An expired or rejected session means every remaining candidate would
// fail the same way.
func fatalSweepError(err error) bool {
	if errors.Is(err, transport.ErrSessionExpired) {
		return true
	}
	var status *transport.StatusError
	if errors.As(err, &status) {
		return status.Code == 401
	}
	return false
}

// Discover tries candidates in order and returns the first procedure whose
// result is a plausible listing. 404/403/5xx and in-band procedure errors
// move on to the next candidate; 401 stops immediately. Transient network
// failures get a fixed, bounded retry per candidate.
func (c *Client) Discover(ctx context.Context, domain string, candidates []Candidate) (string, json.RawMessage, error) {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return matchr.JaroWinkler(ordered[i].Name, domain, false) >
			matchr.JaroWinkler(ordered[j].Name, domain, false)
	})

	var lastErr error
	for _, candidate := range ordered {
		result, err := c.tryCandidate(ctx, candidate)
		if err != nil {
			if fatalSweepError(err) {
				c.tel.ReportWarning(
					report_discover,
					fmt.Errorf("sweep stopped on auth failure: %w", err),
					domain,
					candidate.Name,
				)
				return "", nil, err
			}
			lastErr = err
			continue
		}

		if !plausibleListing(result) {
			c.tel.ReportDebug(
				"candidate responded but result is not a listing",
				candidate.Name,
			)
			continue
		}

		c.tel.ReportDebug("discovered procedure", domain, candidate.Name)
		return candidate.Name, result, nil
	}

	err := fmt.Errorf(
		"no procedure found for %q after %d candidates (try running diagnostics, the portal format may have drifted)",
		domain, len(ordered),
	)
	if lastErr != nil {
		err = fmt.Errorf("%w: last error: %w", err, lastErr)
	}
	c.tel.ReportWarning(report_discover, err)
	return "", nil, err
}

func (c *Client) tryCandidate(ctx context.Context, candidate Candidate) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < discoverAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(discoverBackoff):
			}
		}

		result, err := c.Call(ctx, candidate.Name, candidate.Params())
		if err == nil {
			return result, nil
		}
		lastErr = err

		// only no-response failures are worth a retry, everything else
		// will fail identically
		var reqErr *transport.RequestError
		if !errors.As(err, &reqErr) {
			break
		}
	}
	return nil, lastErr
}
