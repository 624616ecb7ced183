// Package relay is the boundary to the hosted language model.
//
// The Relay façade never returns errors: conversational calls degrade to a
// fixed in-character reply and structured extraction degrades to nil.
package relay

import (
	"context"
	"errors"

	"github.com/ashureev/sparkweek/internal/domain"
)

// ErrNotConfigured is returned by backends that have no API credential.
var ErrNotConfigured = errors.New("language backend not configured")

// Fixed replies used when the backend cannot answer.
const (
	NotConfiguredReply = "Error: API Key not configured."
	EmptyReply         = "I'm sorry, I didn't catch that."
	ApologyReply       = "I'm having a little trouble connecting to my thought process right now. Please try again."
)

// Request is a single generation call.
type Request struct {
	System  string
	History []domain.Message
	Prompt  string
	// Schema requests a JSON object matching it instead of free text.
	Schema *Schema
}

// Backend generates text for a request.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// SchemaType is a JSON value type in a response schema.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a small JSON-schema subset understood by every backend.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// StepContext carries what step guidance needs to stay in character.
type StepContext struct {
	Step      *domain.Step
	Persona   string
	Tone      string
	HintLevel int
}
