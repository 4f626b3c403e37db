// Package model holds the request and response bodies of the asksql HTTP API.
package model

import "time"

// ChatRequest sends one message to a conversation. An empty SessionID
// starts a new conversation.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse carries the assistant's reply for one turn.
type ChatResponse struct {
	SessionID string   `json:"session_id"`
	Reply     string   `json:"reply"`
	ToolsUsed []string `json:"tools_used"`
}

// SessionResponse describes a conversation.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// Turn is one visible message of a conversation.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// GenerateRequest asks for the SQL of a natural-language question.
type GenerateRequest struct {
	Question string `json:"question"`
}

// GenerateResponse carries generated SQL.
type GenerateResponse struct {
	SQL string `json:"sql"`
}

// ExecuteRequest runs a SQL statement.
type ExecuteRequest struct {
	SQL string `json:"sql"`
}

// ExamplesResponse lists example prompts.
type ExamplesResponse struct {
	Examples []string `json:"examples"`
}
