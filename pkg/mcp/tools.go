package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/integra/internal/expressions"
	"github.com/rendis/integra/internal/logging"
	"github.com/rendis/integra/internal/presets"
	"github.com/rendis/integra/internal/store"
)

// handleSolve integrates an inline request or a named preset.
func (s *IntegraServer) handleSolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithSource(ctx, logging.SourceMCP)
	args := req.GetArguments()

	if name := req.GetString("preset", ""); name != "" {
		sol, err := s.svc.SolvePreset(ctx, name,
			extractInt(args, "steps", 0), extractInt(args, "resolution", 0), logging.SourceMCP)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("solve failed: %v", err)), nil
		}
		return marshalResult(sol)
	}

	if _, err := req.RequireString("expression"); err != nil {
		return mcp.NewToolResultError("expression is required unless preset is set"), nil
	}
	doc, err := requestDocument(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sol, err := s.svc.SolveJSON(ctx, doc, logging.SourceMCP)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("solve failed: %v", err)), nil
	}
	return marshalResult(sol)
}

// handleSamples evaluates an expression on a grid.
func (s *IntegraServer) handleSamples(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithSource(ctx, logging.SourceMCP)
	if _, err := req.RequireString("expression"); err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}
	doc, err := requestDocument(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	set, err := s.svc.SamplesJSON(ctx, doc, logging.SourceMCP)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sampling failed: %v", err)), nil
	}
	return marshalResult(set)
}

// handlePresets lists the preset catalogue or returns one preset.
func (s *IntegraServer) handlePresets(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if name := req.GetString("name", ""); name != "" {
		p, err := presets.Get(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(p)
	}
	return marshalResult(map[string]any{"presets": presets.All()})
}

func (s *IntegraServer) handleFunctions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{
		"variables": expressions.VariableNames(),
		"constants": expressions.ConstantNames(),
		"functions": expressions.FunctionNames(),
		"backends":  []string{expressions.BackendNative, expressions.BackendExpr},
	})
}

// handleHistory returns one recorded run or a filtered list.
func (s *IntegraServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("run_id", ""); id != "" {
		run, err := s.svc.Run(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", err)), nil
		}
		return marshalResult(run)
	}

	filter := mcp.ParseStringMap(req, "filter", nil)
	rf := store.RunFilter{
		Dimension:  extractInt(filter, "dimension", 0),
		Source:     extractString(filter, "source"),
		Backend:    extractString(filter, "backend"),
		Expression: extractString(filter, "expression"),
		Limit:      extractInt(filter, "limit", 20),
		Offset:     extractInt(filter, "offset", 0),
	}
	if since := extractString(filter, "since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since: %v", err)), nil
		}
		rf.Since = &t
	}

	runs, err := s.svc.Runs(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	return marshalResult(map[string]any{"runs": runs, "total": len(runs)})
}

// --- Helpers ---

// requestFields are the tool arguments forwarded into a request document.
var requestFields = []string{"expression", "dimension", "box", "steps", "resolution", "backend", "query"}

// requestDocument builds a JSON request document from tool arguments so it
// goes through the same schema validation as an HTTP body.
func requestDocument(args map[string]any) ([]byte, error) {
	doc := make(map[string]any, len(requestFields))
	for _, key := range requestFields {
		if v, ok := args[key]; ok && v != nil {
			doc[key] = v
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

// extractInt safely extracts an integer from an argument map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func extractString(filter map[string]any, key string) string {
	if s, ok := filter[key].(string); ok {
		return s
	}
	return ""
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
