package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	SyncStatusURI = "lmssearch://sync/status"
	HealthURI     = "lmssearch://health"
)

// registerResources registers the JSON status resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "sync_status",
			URI:         SyncStatusURI,
			Description: "Sync bookkeeping: last cycle, per-collection counts and errors",
			MIMEType:    "application/json",
		},
		s.makeResourceHandler(SyncStatusURI),
	)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "health",
			URI:         HealthURI,
			Description: "Search backend availability",
			MIMEType:    "application/json",
		},
		s.makeResourceHandler(HealthURI),
	)
}

func (s *Server) makeResourceHandler(uri string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.ReadResource(ctx, uri)
	}
}

// ReadResource returns the JSON document behind a resource URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	var payload any
	switch uri {
	case SyncStatusURI:
		payload = s.handleSyncStatus()
	case HealthURI:
		payload = s.handleHealth(ctx)
	default:
		return nil, &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("Resource '%s' not found.", uri),
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
