package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource("portal://news", "News",
		mcp.WithResourceDescription("Latest portal news"),
		mcp.WithMIMEType("application/json"),
	), s.readNewsResource)

	s.mcp.AddResource(mcp.NewResource("portal://courses", "Courses",
		mcp.WithResourceDescription("Course list with progress"),
		mcp.WithMIMEType("application/json"),
	), s.readCoursesResource)

	s.mcp.AddResource(mcp.NewResource("portal://dashboard", "Dashboard",
		mcp.WithResourceDescription("Raw dashboard listing records"),
		mcp.WithMIMEType("application/json"),
	), s.readDashboardResource)
}

func (s *Server) readNewsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	items, _, err := s.portal.News(ctx)
	if err != nil {
		return nil, errors.New(remediate(err))
	}
	return resourceContents(req.Params.URI, items)
}

func (s *Server) readCoursesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	courses, err := s.portal.Courses(ctx)
	if err != nil {
		return nil, errors.New(remediate(err))
	}
	return resourceContents(req.Params.URI, courses)
}

func (s *Server) readDashboardResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	records, err := s.portal.Dashboard(ctx)
	if err != nil {
		return nil, errors.New(remediate(err))
	}
	return resourceContents(req.Params.URI, records)
}

func resourceContents(uri string, v any) ([]mcp.ResourceContents, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      uri,
		MIMEType: "application/json",
		Text:     string(text),
	}}, nil
}
