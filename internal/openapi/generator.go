// Package openapi builds the OpenAPI document of the asksql HTTP API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/asksql/asksql/internal/schema"
)

const errorRef = "#/components/schemas/ErrorResponse"

// Generate returns the OpenAPI 3.1 document for the asksql API served at
// baseURL. Every described company table gets a component schema for the
// records that get_sql_result returns.
func Generate(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "asksql API",
			Description: "Ask questions about the company database in plain language.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	addSchemas(doc)
	for _, t := range schema.Tables {
		doc.Components.Schemas[t.Name] = tableSchema(t)
	}

	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: operation("system", "healthz", "Liveness probe", nil, "200", "Process is running", ref("StatusResponse")),
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: operation("system", "readyz", "Readiness probe",
			nil, "200", "Database present and schema verified", ref("StatusResponse")),
	})
	doc.Paths.Set("/api/v1/examples", &openapi3.PathItem{
		Get: operation("chat", "list_examples", "Example questions", nil, "200", "Example prompts", ref("ExamplesResponse")),
	})
	schemaText := "Schema description"
	schemaResponses := openapi3.NewResponses()
	schemaResponses.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: &schemaText,
		Content:     openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/plain"}),
	}})
	doc.Paths.Set("/api/v1/schema", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"chat"},
			Summary:     "Schema description given to the model",
			OperationID: "get_schema",
			Responses:   schemaResponses,
		},
	})
	doc.Paths.Set("/api/v1/chat", &openapi3.PathItem{
		Post: operation("chat", "chat", "Send a chat message",
			body("ChatRequest"), "200", "Assistant reply", ref("ChatResponse")),
	})
	doc.Paths.Set("/api/v1/sessions", &openapi3.PathItem{
		Post: operation("chat", "create_session", "Start a conversation", nil, "201", "New session", ref("SessionResponse")),
	})

	getSession := operation("chat", "get_session", "Conversation transcript", nil, "200", "Session", ref("SessionResponse"))
	deleteSession := operation("chat", "delete_session", "End a conversation", nil, "204", "Deleted", nil)
	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").
			WithDescription("Session ID.").
			WithSchema(openapi3.NewStringSchema()),
	}
	doc.Paths.Set("/api/v1/sessions/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get:        getSession,
		Delete:     deleteSession,
	})

	doc.Paths.Set("/api/v1/sql/generate", &openapi3.PathItem{
		Post: operation("sql", "generate_sql", "Generate SQL for a question",
			body("GenerateRequest"), "200", "Generated SQL", ref("GenerateResponse")),
	})
	doc.Paths.Set("/api/v1/sql/execute", &openapi3.PathItem{
		Post: operation("sql", "execute_sql", "Execute SQL against the company database",
			body("ExecuteRequest"), "200", "Records, or {\"error\": ...} on failure", executeResult()),
	})

	return doc
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func body(name string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithContent(openapi3.NewContentWithJSONSchemaRef(ref(name))),
	}
}

func operation(tag, id, summary string, reqBody *openapi3.RequestBodyRef, status, description string, result *openapi3.SchemaRef) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     summary,
		OperationID: id,
		RequestBody: reqBody,
		Responses:   newResponses(status, description, result),
	}
}

// newResponses builds the success response plus the standard error responses.
func newResponses(statusCode, description string, result *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()
	success := &openapi3.Response{Description: &description}
	if result != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(result)
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: success})

	for code, desc := range map[string]string{
		"400": "Bad request",
		"404": "Not found",
		"429": "Too many requests",
		"500": "Internal server error",
		"502": "Language model unavailable",
	} {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(errorRef, nil)),
			},
		})
	}
	return responses
}

func object(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

func str() *openapi3.SchemaRef { return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()} }

func strArray() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: str()}}
}

func dateTime() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
}

func addSchemas(doc *openapi3.T) {
	s := doc.Components.Schemas
	s["ErrorResponse"] = object(openapi3.Schemas{
		"error": object(openapi3.Schemas{
			"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			"message": str(),
			"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		}),
	}, "error")
	s["StatusResponse"] = object(openapi3.Schemas{
		"status": str(),
		"checks": &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:                 &openapi3.Types{"object"},
			AdditionalProperties: openapi3.AdditionalProperties{Schema: str()},
		}},
	}, "status")
	s["ExamplesResponse"] = object(openapi3.Schemas{"examples": strArray()}, "examples")
	s["ChatRequest"] = object(openapi3.Schemas{"session_id": str(), "message": str()}, "message")
	s["ChatResponse"] = object(openapi3.Schemas{"session_id": str(), "reply": str(), "tools_used": strArray()}, "session_id", "reply")
	s["Turn"] = object(openapi3.Schemas{"role": str(), "text": str(), "time": dateTime()}, "role", "text")
	s["SessionResponse"] = object(openapi3.Schemas{
		"session_id": str(),
		"created_at": dateTime(),
		"turns":      &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref("Turn")}},
	}, "session_id")
	s["GenerateRequest"] = object(openapi3.Schemas{"question": str()}, "question")
	s["GenerateResponse"] = object(openapi3.Schemas{"sql": str()}, "sql")
	s["ExecuteRequest"] = object(openapi3.Schemas{"sql": str()}, "sql")
	s["ToolError"] = object(openapi3.Schemas{"error": str()}, "error")
}

// executeResult is either an array of records or a tool error object.
func executeResult() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		OneOf: openapi3.SchemaRefs{
			{Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
			}},
			ref("ToolError"),
		},
	}}
}

// tableSchema describes a record of a company table.
func tableSchema(t schema.Table) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	for _, c := range t.Columns {
		m := MapSQLiteType(c.Type)
		sc := &openapi3.Schema{
			Type:     &openapi3.Types{m.Type},
			Format:   m.Format,
			Nullable: !c.PrimaryKey,
		}
		switch {
		case c.PrimaryKey:
			sc.Description = "Primary key."
		case c.References != "":
			sc.Description = "References " + c.References + "."
		}
		props[c.Name] = &openapi3.SchemaRef{Value: sc}
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:        &openapi3.Types{"object"},
		Description: t.String(),
		Properties:  props,
	}}
}
