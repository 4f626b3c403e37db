package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/asksql/asksql/internal/schema"
)

const (
	schemaURI      = "asksql://schema"
	tableURIPrefix = "asksql://schema/"
	examplesURI    = "asksql://examples"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// asksql://schema: description of all company tables
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			schemaURI,
			"Company Database Schema",
			mcp.WithResourceDescription(
				"The eight e-commerce tables with primary and foreign keys, "+
					"as given to the model that writes SQL.",
			),
			mcp.WithMIMEType("text/plain"),
		),
		s.handleSchemaResource,
	)

	// -------------------------------------------------------------------
	// asksql://schema/{table}: one table as JSON (template)
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			tableURIPrefix+"{table}",
			"Table Schema",
			mcp.WithTemplateDescription("Columns of one company table."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleTableResource,
	)

	// -------------------------------------------------------------------
	// asksql://examples: example questions
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			examplesURI,
			"Example Questions",
			mcp.WithResourceDescription("Questions the assistant is expected to answer."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleExamplesResource,
	)
}

func (s *MCPServer) handleSchemaResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaURI,
			MIMEType: "text/plain",
			Text:     schema.Describe(""),
		},
	}, nil
}

// handleTableResource returns one table's columns.
func (s *MCPServer) handleTableResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	name := strings.TrimPrefix(uri, tableURIPrefix)
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid schema URI %q: expected %s{table}", uri, tableURIPrefix)
	}

	table, ok := schema.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("table %q not found (available: %s)", name, strings.Join(tableNames(), ", "))
	}

	b, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal table: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func (s *MCPServer) handleExamplesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(schema.Examples, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal examples: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      examplesURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
