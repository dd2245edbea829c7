// Package mcp exposes the orchestration engine over the Model Context
// Protocol so agentic clients can execute and inspect patterns as tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/quantfold/tessera/pkg/domain"
)

// runArgs is the decoded argument set of the run_pattern tool.
type runArgs struct {
	PatternID      string `mapstructure:"pattern_id"`
	Inputs         string `mapstructure:"inputs"`
	RequestID      string `mapstructure:"request_id"`
	DataSnapshotID string `mapstructure:"data_snapshot_id"`
}

// RunResponse aligns with the HTTP adapter's run schema and provides a
// unified structure across adapters.
type RunResponse struct {
	Outputs map[string]any         `json:"outputs,omitempty" jsonschema_description:"Bindings exported by the pattern"`
	Trace   *domain.ExecutionTrace `json:"trace" jsonschema_description:"Per-step execution trace, partial on failure"`
	Error   string                 `json:"error,omitempty" jsonschema_description:"Failure description when the run did not complete"`
}

// Engine defines the interface required by the MCP server to interact
// with the orchestration core.
type Engine interface {
	Run(ctx context.Context, patternID string, inputs map[string]any, req domain.RequestContext) (*domain.RunResult, error)
	Patterns() []*domain.PatternSpec
	Pattern(id string) (*domain.PatternSpec, error)
	Ownership(ctx context.Context) (map[string]domain.OwnershipOverride, error)
	SetOwnership(ctx context.Context, capability string, override *domain.OwnershipOverride) error
	ResetBreaker(agent string)
	Version() string
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("tessera-mcp", engine.Version()),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: run_pattern
	runTool := mcp.NewTool("run_pattern",
		mcp.WithDescription("Execute a pattern with the given inputs and return its outputs with the full execution trace."),
		mcp.WithString("pattern_id", mcp.Required(), mcp.Description("The ID of the pattern to execute")),
		mcp.WithString("inputs", mcp.Description("JSON object with the pattern's inputs")),
		mcp.WithString("data_snapshot_id", mcp.Description("Market-data snapshot to pin capability calls to (optional)")),
		mcp.WithString("request_id", mcp.Description("Caller-supplied request ID; generated when omitted")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunPattern))

	// TOOL: list_patterns
	s.mcpServer.AddTool(mcp.NewTool("list_patterns",
		mcp.WithDescription("List the loaded pattern definitions with their versions and descriptions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type summary struct {
			ID          string `json:"id"`
			Version     int    `json:"version"`
			Description string `json:"description,omitempty"`
		}
		specs := s.engine.Patterns()
		summaries := make([]summary, 0, len(specs))
		for _, spec := range specs {
			summaries = append(summaries, summary{ID: spec.ID, Version: spec.Version, Description: spec.Description})
		}
		jsonBytes, _ := json.Marshal(summaries)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: get_pattern
	s.mcpServer.AddTool(mcp.NewTool("get_pattern",
		mcp.WithDescription("Get the full definition of one pattern for introspection."),
		mcp.WithString("pattern_id", mcp.Required(), mcp.Description("The ID of the pattern")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("pattern_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		spec, err := s.engine.Pattern(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("pattern lookup failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(spec)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: get_ownership
	s.mcpServer.AddTool(mcp.NewTool("get_ownership",
		mcp.WithDescription("List the active capability ownership overrides."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		overrides, err := s.engine.Ownership(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ownership lookup failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(overrides)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: set_ownership
	s.mcpServer.AddTool(mcp.NewTool("set_ownership",
		mcp.WithDescription("Set or remove a capability ownership override to shift traffic toward a new agent."),
		mcp.WithString("capability", mcp.Required(), mcp.Description("Capability name")),
		mcp.WithString("target_agent", mcp.Description("Agent to shift traffic to; omit to remove the override")),
		mcp.WithNumber("rollout_percentage", mcp.Description("Share of requests routed to the target agent (0-100)")),
		mcp.WithBoolean("enabled", mcp.Description("Whether the override is active")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		capability, err := request.RequireString("capability")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		target := request.GetString("target_agent", "")
		if target == "" {
			if err := s.engine.SetOwnership(ctx, capability, nil); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("removing override failed: %v", err)), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("override removed for %s", capability)), nil
		}

		pct := request.GetInt("rollout_percentage", 100)
		if pct < 0 || pct > 100 {
			return mcp.NewToolResultError("rollout_percentage must be between 0 and 100"), nil
		}
		override := &domain.OwnershipOverride{
			TargetAgent:       target,
			RolloutPercentage: pct,
			Enabled:           request.GetBool("enabled", true),
		}
		if err := s.engine.SetOwnership(ctx, capability, override); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("setting override failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("override set: %s -> %s (%d%%)", capability, target, pct)), nil
	})

	// TOOL: reset_breaker
	s.mcpServer.AddTool(mcp.NewTool("reset_breaker",
		mcp.WithDescription("Force an agent's circuit breaker closed after resolving an outage."),
		mcp.WithString("agent", mcp.Required(), mcp.Description("Agent name")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agent, err := request.RequireString("agent")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.engine.ResetBreaker(agent)
		return mcp.NewToolResultText(fmt.Sprintf("breaker reset for %s", agent)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleRunPattern(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	var decoded runArgs
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return RunResponse{}, fmt.Errorf("failed to decode run arguments: %w", err)
	}
	if decoded.PatternID == "" {
		return RunResponse{}, fmt.Errorf("pattern_id is required")
	}

	inputs := map[string]any{}
	if decoded.Inputs != "" {
		if err := json.Unmarshal([]byte(decoded.Inputs), &inputs); err != nil {
			return RunResponse{}, fmt.Errorf("invalid inputs JSON: %w", err)
		}
	}

	req := domain.RequestContext{
		RequestID:      decoded.RequestID,
		DataSnapshotID: decoded.DataSnapshotID,
	}

	result, err := s.engine.Run(ctx, decoded.PatternID, inputs, req)
	if err != nil {
		resp := RunResponse{Error: err.Error()}
		if result != nil {
			resp.Trace = result.Trace
		}
		slog.Error("MCP run_pattern failed", "pattern", decoded.PatternID, "error", err)
		return resp, nil
	}

	return RunResponse{Outputs: result.Outputs, Trace: result.Trace}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: tessera://patterns
	s.mcpServer.AddResource(mcp.NewResource("tessera://patterns", "Loaded Pattern Definitions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Patterns())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal patterns: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "tessera://patterns",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
