package convert

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/idgen"
	"github.com/stickerverse/figmacionvert-v3-sub010/kit"
)

// RegisterMCP registers conversion tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerConvertTool(srv)
	s.registerInspectTool(srv)
}

// toolMiddleware gives every tool call a trace ID (MCP calls skip the HTTP
// middleware that normally mints one) and a log line with the outcome.
func (s *Service) toolMiddleware(op string) kit.Middleware {
	return kit.Chain(
		kit.TraceIDs(idgen.Prefixed("mcp_", idgen.NanoID(8))),
		kit.Logging(s.logger, op),
	)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- convert ---

type convertReq struct {
	Payload json.RawMessage `json:"payload"`
}

func (s *Service) registerConvertTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "figma_convert",
		Description: "Prepare a captured web page payload for design-tool import: compact, normalize, detect repeated patterns, and merge design tokens.",
		InputSchema: inputSchema(map[string]any{
			"payload": map[string]any{"type": "object", "description": "Capture payload JSON (tree, assets, designTokens, ...)"},
		}, []string{"payload"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*convertReq)
		var p archive.Payload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, err
		}
		return s.Convert(ctx, &p)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r convertReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolMiddleware(tool.Name)(endpoint), decode)
}

// --- inspect ---

type inspectReq struct {
	Payload json.RawMessage `json:"payload"`
}

func (s *Service) registerInspectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "figma_inspect",
		Description: "Summarize a capture payload without converting it: node count, depth, asset counts, estimated size.",
		InputSchema: inputSchema(map[string]any{
			"payload": map[string]any{"type": "object", "description": "Capture payload JSON to summarize"},
		}, []string{"payload"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*inspectReq)
		var p archive.Payload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, err
		}
		return s.Inspect(&p), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r inspectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolMiddleware(tool.Name)(endpoint), decode)
}
