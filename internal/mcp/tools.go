package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/asksql/asksql/internal/schema"
	"github.com/asksql/asksql/internal/tools"
)

// registerTools registers the asksql MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	resultAnnotation := mutatingAnnotation()
	if s.readOnly {
		resultAnnotation = readOnlyAnnotation()
	}

	srv.AddTool(
		mcp.NewTool(tools.NameQuery,
			mcp.WithDescription(tools.DescriptionQuery+
				" The SQL targets the company database described by the asksql://schema resource."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString(tools.ArgQuery,
				mcp.Required(),
				mcp.Description("The user's question in natural language"),
			),
		),
		s.dispatch(tools.NameQuery),
	)

	srv.AddTool(
		mcp.NewTool(tools.NameResult,
			mcp.WithDescription(tools.DescriptionResult+
				` Failures are returned as {"error": "..."}.`),
			mcp.WithToolAnnotation(resultAnnotation),
			mcp.WithString(tools.ArgQuery,
				mcp.Required(),
				mcp.Description("A single SQLite statement"),
			),
		),
		s.dispatch(tools.NameResult),
	)

	srv.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(
				"Get the columns of one company table with primary and foreign keys. "+
					"Use this to check exact column names before writing queries.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description("Name of the table to describe"),
				mcp.Enum(tableNames()...),
			),
		),
		s.handleDescribeTable,
	)
}

// dispatch returns a handler forwarding the call to the toolset.
func (s *MCPServer) dispatch(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := requireString(request, tools.ArgQuery); err != nil {
			return toolError("%v", err)
		}

		out, err := s.tools.Call(ctx, name, request.GetArguments())
		if err != nil {
			s.logger.Warn("MCP tool failed", "tool", name, "error", err)
			return toolError("%v", err)
		}
		return mcp.NewToolResultText(out), nil
	}
}

func (s *MCPServer) handleDescribeTable(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	name, err := requireString(request, "table")
	if err != nil {
		return toolError("%v", err)
	}
	table, ok := schema.Lookup(name)
	if !ok {
		return toolError("Table %q not found. Available tables: %s", name, strings.Join(tableNames(), ", "))
	}
	return successJSON(table)
}

func tableNames() []string {
	names := make([]string, len(schema.Tables))
	for i, t := range schema.Tables {
		names[i] = t.Name
	}
	return names
}
