// Package tools exposes the fetch and search MCP tools.
package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/agentuity/fetch-mcp/logger"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const ServerName = "fetch-mcp"

type FetchArgs struct {
	URL string `json:"url" jsonschema:"The URL of the webpage to fetch."`
}

type SearchArgs struct {
	Query string `json:"query" jsonschema:"The search query."`
}

// Recorder counts tool calls by outcome
type Recorder interface {
	ToolCall(tool string, status string)
}

type noopRecorder struct{}

func (noopRecorder) ToolCall(string, string) {}

// Handlers answers tool calls with the memoized producers
type Handlers struct {
	producers *Producers
	logger    logger.Logger
	recorder  Recorder
}

func NewHandlers(p *Producers, log logger.Logger, rec Recorder) *Handlers {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Handlers{producers: p, logger: log.WithPrefix("[tools]"), recorder: rec}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}

// call runs fn for one tool invocation. Every error becomes an error result;
// validation errors are logged as warnings, anything else as an error.
func (h *Handlers) call(ctx context.Context, tool string, argName string, arg string, fn func(context.Context, string) (string, bool, error)) *mcp.CallToolResult {
	log := h.logger.With(map[string]interface{}{
		"request_id": uuid.NewString(),
		"tool":       tool,
		argName:      arg,
	})
	arg = strings.TrimSpace(arg)
	var text string
	err := invalid("%s is required", argName)
	if arg != "" {
		text, _, err = fn(ctx, arg)
	}
	if err != nil {
		h.recorder.ToolCall(tool, "error")
		var verr *ValidationError
		if errors.As(err, &verr) {
			log.Warn("%s validation error: %s", tool, err)
		} else {
			log.Error("%s failed: %s", tool, err)
		}
		return errResult(err)
	}
	h.recorder.ToolCall(tool, "ok")
	log.Debug("%s returned %d bytes", tool, len(text))
	return textResult(text)
}

func (h *Handlers) Fetch(ctx context.Context, _ *mcp.CallToolRequest, args FetchArgs) (*mcp.CallToolResult, any, error) {
	return h.call(ctx, "fetch", "url", args.URL, h.producers.FetchContent), nil, nil
}

func (h *Handlers) Search(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	return h.call(ctx, "search", "query", args.Query, h.producers.SearchWeb), nil, nil
}

// Register adds the fetch and search tools to s
func Register(s *mcp.Server, h *Handlers) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "fetch",
		Description: "Fetches the content of a web page.",
	}, h.Fetch)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "search",
		Description: "Searches the web for a given query.",
	}, h.Search)
}

// NewServer returns an MCP server with the tools registered
func NewServer(version string, h *Handlers) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: "fetch-mcp reads web pages and searches the web. " +
			"Use fetch to get the text of a page by URL and search to find pages for a query. " +
			"Results are cached for a short time.",
	})
	Register(server, h)
	return server
}
