package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"portalbridge/internal/portal"
	"portalbridge/internal/timezone"
	"portalbridge/internal/transport"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("get_news",
		mcp.WithDescription("Fetch the latest news and announcements from the school portal."),
	), s.handleGetNews)

	s.mcp.AddTool(mcp.NewTool("get_news_detail",
		mcp.WithDescription("Fetch one news item with its full body and mark it as read."),
		mcp.WithString("id", mcp.Required(), mcp.Description("News item id")),
	), s.handleGetNewsDetail)

	s.mcp.AddTool(mcp.NewTool("get_calendar_events",
		mcp.WithDescription("Fetch calendar events in a date range. The to date must be at least one day after the from date."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
	), s.handleGetCalendarEvents)

	s.mcp.AddTool(mcp.NewTool("get_courses",
		mcp.WithDescription("Fetch the course list with report progress, scores and attendance."),
	), s.handleGetCourses)

	s.mcp.AddTool(mcp.NewTool("set_session_cookies",
		mcp.WithDescription("Set the portal session from a Cookie-header formatted blob captured after login."),
		mcp.WithString("cookies", mcp.Required(), mcp.Description("Full Cookie header string")),
	), s.handleSetSessionCookies)

	s.mcp.AddTool(mcp.NewTool("check_auth_status",
		mcp.WithDescription("Report whether a portal session is currently active."),
	), s.handleCheckAuthStatus)

	s.mcp.AddTool(mcp.NewTool("run_diagnostics",
		mcp.WithDescription("Run health probes against the portal and report what works and what does not."),
	), s.handleRunDiagnostics)

	s.mcp.AddTool(mcp.NewTool("discover_endpoints",
		mcp.WithDescription("Sweep candidate procedure names to find the portal's current news and listing endpoints."),
	), s.handleDiscoverEndpoints)

	s.mcp.AddTool(mcp.NewTool("validate_login_email",
		mcp.WithDescription("Check a login email against the portal's account rules and get guidance."),
		mcp.WithString("email", mcp.Required()),
	), s.handleValidateLoginEmail)
}

// jsonResult renders a tool result as an indented JSON text block.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(text)), nil
}

// failure keeps caller-facing errors inside the tool result with a
// remediation hint instead of a bare protocol error.
func failure(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(remediate(err))
}

// remediate embeds a short actionable hint with every caller-facing error.
func remediate(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, transport.ErrSessionExpired):
		return fmt.Sprintf("%s. Use set_session_cookies with a fresh login to continue.", msg)
	}
	var validation *portal.ValidationError
	if errors.As(err, &validation) {
		return fmt.Sprintf("%s. Fix the arguments and retry; no request was sent.", msg)
	}
	var reqErr *transport.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("%s. Check network connectivity, then run run_diagnostics.", msg)
	}
	var status *transport.StatusError
	if errors.As(err, &status) {
		return fmt.Sprintf("%s. Run run_diagnostics to narrow it down.", msg)
	}
	return fmt.Sprintf("%s. If this persists, run run_diagnostics.", msg)
}

func (s *Server) handleGetNews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, diag, err := s.portal.News(ctx)
	if err != nil {
		return failure(err), nil
	}
	if len(items) == 0 {
		return jsonResult(map[string]any{
			"news":        items,
			"diagnostics": diag,
			"note":        "no news recovered; diagnostics show which payload markers were present",
		})
	}
	return jsonResult(map[string]any{"news": items})
}

func (s *Server) handleGetNewsDetail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, _, err := s.portal.NewsDetail(ctx, id)
	if err != nil {
		return failure(err), nil
	}
	return jsonResult(item)
}

func (s *Server) handleGetCalendarEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := parseDateRange(from, to)
	if err != nil {
		return failure(err), nil
	}
	events, err := s.portal.CalendarEvents(ctx, r)
	if err != nil {
		return failure(err), nil
	}
	return jsonResult(map[string]any{"events": events})
}

func (s *Server) handleGetCourses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courses, err := s.portal.Courses(ctx)
	if err != nil {
		return failure(err), nil
	}
	return jsonResult(map[string]any{"courses": courses})
}

func (s *Server) handleSetSessionCookies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cookies, err := req.RequireString("cookies")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.portal.SetSessionCookies(cookies)
	return jsonResult(map[string]any{
		"authenticated": s.portal.IsAuthenticated(),
	})
}

func (s *Server) handleCheckAuthStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"authenticated": s.portal.IsAuthenticated(),
	})
}

func (s *Server) handleRunDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.portal.RunDiagnostics(ctx))
}

func (s *Server) handleDiscoverEndpoints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	procedures, err := s.portal.DiscoverEndpoints(ctx)
	if err != nil {
		return failure(err), nil
	}
	return jsonResult(map[string]any{
		"procedures": procedures,
		"catalog":    s.portal.Procedures(),
	})
}

func (s *Server) handleValidateLoginEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(emailAdvice(email))
}

func parseDateRange(from, to string) (portal.DateRange, error) {
	fromTime, err := time.ParseInLocation("2006-01-02", from, timezone.Location)
	if err != nil {
		return portal.DateRange{}, &portal.ValidationError{
			Reason: fmt.Sprintf("from date %q is not YYYY-MM-DD", from),
		}
	}
	toTime, err := time.ParseInLocation("2006-01-02", to, timezone.Location)
	if err != nil {
		return portal.DateRange{}, &portal.ValidationError{
			Reason: fmt.Sprintf("to date %q is not YYYY-MM-DD", to),
		}
	}
	return portal.NewDateRange(fromTime, toTime)
}
