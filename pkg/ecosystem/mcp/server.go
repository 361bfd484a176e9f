package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with fable tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"fable",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("fable/validate",
			mcp.WithDescription("Validate a fable story bundle JSON file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the story bundle JSON file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("fable/schema",
			mcp.WithDescription("Export the fable story bundle JSON Schema"),
		),
		HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("fable/graph",
			mcp.WithDescription("Render the story graph as a Mermaid flowchart or ASCII outline"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the story bundle JSON file")),
			mcp.WithString("format", mcp.Description("Diagram format: 'mermaid' (default) or 'ascii'")),
		),
		HandleGraph,
	)

	s.AddTool(
		mcp.NewTool("fable/simulate",
			mcp.WithDescription("Play a story non-interactively: apply a sequence of choices and inputs and return the resulting transcript"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the story bundle JSON file")),
			mcp.WithArray("steps", mcp.Description("Intents in order: {\"choose\": <title-or-id>}, {\"input\": <value>}, {\"loopback\": true}, or {\"restart\": true}")),
			mcp.WithNumber("seed", mcp.Description("Random seed for multi-route tie-breaking (default 1)")),
		),
		HandleSimulate,
	)

	return s
}
