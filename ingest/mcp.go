package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the ingestion tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerExtractTool(srv)
	p.registerDetectTool(srv)
	p.registerFormatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// endpoint is the tool business logic; decode extracts the typed request
// from MCP arguments.
type endpoint func(ctx context.Context, req any) (any, error)

func registerTool(srv *mcp.Server, tool *mcp.Tool, ep endpoint, decode func(*mcp.CallToolRequest) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := ep(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- extract ---

type extractReq struct {
	Input string `json:"input"`
}

func sourceFromInput(input string) *Source {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return FromURL(input)
	}
	return FromPath(input)
}

func (p *Pipeline) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_extract",
		Description: "Extract a file or URL to markdown; returns the markdown, images, and metadata.",
		InputSchema: inputSchema(map[string]any{
			"input": map[string]any{"type": "string", "description": "File path or URL to ingest"},
		}, []string{"input"}),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		return p.Extract(ctx, sourceFromInput(r.Input))
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, ep, decode)
}

// --- detect ---

type detectReq struct {
	Input string `json:"input"`
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_detect",
		Description: "Detect the media type of a file or URL from its content.",
		InputSchema: inputSchema(map[string]any{
			"input": map[string]any{"type": "string", "description": "File path or URL to classify"},
		}, []string{"input"}),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*detectReq)
		mt := p.Detect(ctx, sourceFromInput(r.Input))
		return map[string]any{"media_type": string(mt)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r detectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, ep, decode)
}

// --- formats ---

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_formats",
		Description: "List media types with a registered extractor.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	ep := func(_ context.Context, _ any) (any, error) {
		types := p.registry.Types()
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.String()
		}
		return map[string]any{"media_types": names}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (any, error) { return nil, nil }

	registerTool(srv, tool, ep, decode)
}
