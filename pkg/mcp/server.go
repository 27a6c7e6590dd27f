package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/integra/internal/service"
)

// IntegraServerDeps holds the dependencies for creating an IntegraServer.
type IntegraServerDeps struct {
	Service *service.Service
	Version string
	Logger  *slog.Logger
}

// IntegraServer wraps an MCP server with integration tool handlers.
type IntegraServer struct {
	svc       *service.Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewIntegraServer creates a new IntegraServer with all tools registered.
func NewIntegraServer(deps IntegraServerDeps) *IntegraServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &IntegraServer{
		svc:    deps.Service,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"integra",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Integra evaluates definite integrals of math expressions in x, y and z over 1D, 2D and 3D boxes. Use integra.solve to integrate, integra.samples to get plot points, integra.presets to list ready-made problems, integra.functions to list the function library, and integra.history to read past runs."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *IntegraServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *IntegraServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *IntegraServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: solveTool(), Handler: s.handleSolve},
		{Tool: samplesTool(), Handler: s.handleSamples},
		{Tool: presetsTool(), Handler: s.handlePresets},
		{Tool: functionsTool(), Handler: s.handleFunctions},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

// requestOptions are the arguments shared by solve and samples. They mirror
// the JSON request document accepted over HTTP.
func requestOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("expression", mcp.Description("Expression in x, y and z, e.g. \"sin(x)*y^2\"")),
		mcp.WithNumber("dimension", mcp.Description("Number of active axes: 1, 2 or 3")),
		mcp.WithObject("box", mcp.Description("Bounds per axis as [min, max] pairs, e.g. {\"x\": [0, 1], \"y\": [-1, 1]}")),
		mcp.WithNumber("resolution", mcp.Description("Sample intervals per axis (default 10)")),
		mcp.WithString("backend", mcp.Enum("native", "expr"), mcp.Description("Expression backend (default native)")),
		mcp.WithString("query", mcp.Description("jq filter applied to the sample array")),
	}
}

func solveTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Integrate an expression over a box and estimate the error"),
		mcp.WithString("preset", mcp.Description("Solve a named preset instead of an inline request")),
		mcp.WithNumber("steps", mcp.Description("Quadrature steps per axis (default resolution*5)")),
	}
	return mcp.NewTool("integra.solve", append(opts, requestOptions()...)...)
}

func samplesTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Evaluate an expression on a grid for plotting"),
	}
	return mcp.NewTool("integra.samples", append(opts, requestOptions()...)...)
}

func presetsTool() mcp.Tool {
	return mcp.NewTool("integra.presets",
		mcp.WithDescription("List ready-made integration problems"),
		mcp.WithString("name", mcp.Description("Return a single preset by name")),
	)
}

func functionsTool() mcp.Tool {
	return mcp.NewTool("integra.functions",
		mcp.WithDescription("List the functions and constants expressions may use"),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("integra.history",
		mcp.WithDescription("Read recorded runs"),
		mcp.WithString("run_id", mcp.Description("Return a single run by ID")),
		mcp.WithObject("filter", mcp.Description("Filter criteria (dimension, source, backend, expression, since, limit, offset)")),
	)
}
