package models

import (
	"context"
	"encoding/json"
)

// EntityHandler is a loaded NER model paired with the shared entity
// disambiguation model. It performs entity linking when spans is empty and
// disambiguation of the given spans otherwise.
type EntityHandler interface {
	GenerateResponse(ctx context.Context, text string, spans []Span) (json.RawMessage, error)
}

// ConversationHandler is a loaded conversational entity linker.
type ConversationHandler interface {
	Annotate(ctx context.Context, turns []Turn) (json.RawMessage, error)
}

// Turn is the plain record form of a conversation turn sent to a
// ConversationHandler.
type Turn struct {
	Speaker   string `json:"speaker"`
	Utterance string `json:"utterance"`
}

// Dispatcher routes a validated request to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (json.RawMessage, error)
}
