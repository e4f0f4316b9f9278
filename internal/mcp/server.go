package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ordokr/lmssearch/internal/async"
	"github.com/ordokr/lmssearch/internal/backend"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/search"
	"github.com/ordokr/lmssearch/internal/store"
	"github.com/ordokr/lmssearch/pkg/version"
)

// MaxSearchLimit caps the page size a tool call may request.
const MaxSearchLimit = 100

// Engine is the search engine surface the server exposes.
type Engine interface {
	SearchTopics(ctx context.Context, query string, opts search.SearchOptions) (*backend.SearchResult, error)
	SearchCategories(ctx context.Context, query string, opts search.SearchOptions) (*backend.SearchResult, error)
	Sync(ctx context.Context, force bool) (async.SyncStats, error)
	Stats() async.SyncStats
	DeleteTopic(ctx context.Context, id int64) error
	HealthCheck(ctx context.Context) bool
	BackgroundInterval() time.Duration
}

var _ Engine = (*search.Service)(nil)

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        "search_topics",
		Description: "Full-text search over forum topics (title, content, category name, slug). Tolerates typos. Supports filters on category_id, user_id and created_at, and sorting by created_at.",
	},
	{
		Name:        "search_categories",
		Description: "Full-text search over forum categories (name, description, slug). Supports filtering and sorting by created_at.",
	},
	{
		Name:        "sync",
		Description: "Push rows changed since the last successful sync from the datastore into the search indexes. Skipped when a cycle is running or the last one finished recently, unless force is set.",
	},
	{
		Name:        "sync_status",
		Description: "Report when the indexes were last synced, how many documents each collection received and any per-collection errors.",
	},
	{
		Name:        "delete_topic",
		Description: "Remove a topic from the search index and drop cached results.",
	},
	{
		Name:        "health",
		Description: "Check whether the search backend is reachable.",
	},
}

// Server serves the engine's operations as MCP tools.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger
}

// NewServer creates a new MCP server. A nil logger uses slog.Default.
func NewServer(engine Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: engine,
		logger: logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "lmssearch",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

// CallTool dispatches a tool call by name with JSON-style arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_topics", "search_categories":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		collection, res, err := s.handleSearch(ctx, name, in)
		if err != nil {
			return nil, err
		}
		return ToSearchOutput(collection, res), nil
	case "sync":
		var in SyncInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleSync(ctx, in)
	case "sync_status":
		return s.handleSyncStatus(), nil
	case "delete_topic":
		var in DeleteTopicInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleDeleteTopic(ctx, in)
	case "health":
		return s.handleHealth(ctx), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, tool string, in SearchInput) (string, *backend.SearchResult, error) {
	if strings.TrimSpace(in.Query) == "" {
		return "", nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if in.Limit < 0 || in.Offset < 0 {
		return "", nil, NewInvalidParamsError("limit and offset must not be negative")
	}

	start := time.Now()
	requestID := generateRequestID()
	opts := search.SearchOptions{
		Limit:  clampLimit(in.Limit, MaxSearchLimit),
		Offset: in.Offset,
		Filter: in.Filter,
		Sort:   in.Sort,
	}

	var (
		collection string
		res        *backend.SearchResult
		err        error
	)
	if tool == "search_categories" {
		collection = string(store.KindCategories)
		res, err = s.engine.SearchCategories(ctx, in.Query, opts)
	} else {
		collection = string(store.KindTopics)
		res, err = s.engine.SearchTopics(ctx, in.Query, opts)
	}
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("tool_failed", append([]any{
			slog.String("tool", tool),
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
		}, serrors.LogAttrs(err)...)...)
		return collection, nil, MapError(err)
	}

	s.logger.Info("tool_completed",
		slog.String("tool", tool),
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(res.Hits)))
	return collection, res, nil
}

func (s *Server) handleSync(ctx context.Context, in SyncInput) (SyncStatusOutput, error) {
	stats, err := s.engine.Sync(ctx, in.Force)
	if err != nil {
		s.logger.Error("tool_failed", append([]any{slog.String("tool", "sync")}, serrors.LogAttrs(err)...)...)
		return SyncStatusOutput{}, MapError(err)
	}
	out := ToSyncStatusOutput(stats)
	out.BackgroundIntervalSeconds = int64(s.engine.BackgroundInterval() / time.Second)
	return out, nil
}

func (s *Server) handleSyncStatus() SyncStatusOutput {
	out := ToSyncStatusOutput(s.engine.Stats())
	out.BackgroundIntervalSeconds = int64(s.engine.BackgroundInterval() / time.Second)
	return out
}

func (s *Server) handleDeleteTopic(ctx context.Context, in DeleteTopicInput) (DeleteTopicOutput, error) {
	if in.ID <= 0 {
		return DeleteTopicOutput{}, NewInvalidParamsError("id must be a positive topic id")
	}
	if err := s.engine.DeleteTopic(ctx, in.ID); err != nil {
		s.logger.Error("tool_failed", append([]any{
			slog.String("tool", "delete_topic"),
			slog.Int64("id", in.ID),
		}, serrors.LogAttrs(err)...)...)
		return DeleteTopicOutput{}, MapError(err)
	}
	return DeleteTopicOutput{ID: in.ID, Deleted: true}, nil
}

func (s *Server) handleHealth(ctx context.Context) HealthOutput {
	if s.engine.HealthCheck(ctx) {
		return HealthOutput{Healthy: true, Status: backend.StatusAvailable}
	}
	return HealthOutput{Healthy: false, Status: "unavailable"}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	tools := make(map[string]*mcp.Tool, len(toolInfos))
	for _, info := range toolInfos {
		tools[info.Name] = &mcp.Tool{Name: info.Name, Description: info.Description}
	}

	mcp.AddTool(s.mcp, tools["search_topics"], s.searchHandler("search_topics"))
	mcp.AddTool(s.mcp, tools["search_categories"], s.searchHandler("search_categories"))
	mcp.AddTool(s.mcp, tools["sync"], s.mcpSyncHandler)
	mcp.AddTool(s.mcp, tools["sync_status"], s.mcpSyncStatusHandler)
	mcp.AddTool(s.mcp, tools["delete_topic"], s.mcpDeleteTopicHandler)
	mcp.AddTool(s.mcp, tools["health"], s.mcpHealthHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) searchHandler(tool string) mcp.ToolHandlerFor[SearchInput, SearchOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		collection, res, err := s.handleSearch(ctx, tool, in)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		return textResult(FormatSearchResults(collection, in.Query, res)), ToSearchOutput(collection, res), nil
	}
}

func (s *Server) mcpSyncHandler(ctx context.Context, _ *mcp.CallToolRequest, in SyncInput) (
	*mcp.CallToolResult,
	SyncStatusOutput,
	error,
) {
	out, err := s.handleSync(ctx, in)
	if err != nil {
		return nil, SyncStatusOutput{}, err
	}
	return textResult(FormatSyncStatus(out)), out, nil
}

func (s *Server) mcpSyncStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ SyncStatusInput) (
	*mcp.CallToolResult,
	SyncStatusOutput,
	error,
) {
	out := s.handleSyncStatus()
	return textResult(FormatSyncStatus(out)), out, nil
}

func (s *Server) mcpDeleteTopicHandler(ctx context.Context, _ *mcp.CallToolRequest, in DeleteTopicInput) (
	*mcp.CallToolResult,
	DeleteTopicOutput,
	error,
) {
	out, err := s.handleDeleteTopic(ctx, in)
	return nil, out, err
}

func (s *Server) mcpHealthHandler(ctx context.Context, _ *mcp.CallToolRequest, _ HealthInput) (
	*mcp.CallToolResult,
	HealthOutput,
	error,
) {
	return nil, s.handleHealth(ctx), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Serve runs the server with the specified transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
