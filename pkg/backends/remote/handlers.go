package remote

import (
	"context"
	"encoding/json"

	"github.com/getzep/entitylink/pkg/models"
)

var (
	_ models.EntityHandler       = &EntityHandler{}
	_ models.ConversationHandler = &ConversationHandler{}
)

// EntityHandler runs a loaded NER model together with the shared ED model.
type EntityHandler struct {
	client *Client
	model  string
}

type nerRequest struct {
	Text  string        `json:"text"`
	Spans []models.Span `json:"spans"`
}

func (h *EntityHandler) GenerateResponse(
	ctx context.Context,
	text string,
	spans []models.Span,
) (json.RawMessage, error) {
	if spans == nil {
		spans = []models.Span{}
	}
	return h.client.post(ctx, modelPath(KindNER, h.model), nerRequest{Text: text, Spans: spans})
}

func (h *EntityHandler) Model() string {
	return h.model
}

// ConversationHandler runs a loaded conversational entity linker.
type ConversationHandler struct {
	client *Client
	model  string
}

type convRequest struct {
	Turns []models.Turn `json:"turns"`
}

func (h *ConversationHandler) Annotate(ctx context.Context, turns []models.Turn) (json.RawMessage, error) {
	if turns == nil {
		turns = []models.Turn{}
	}
	return h.client.post(ctx, modelPath(KindConversation, h.model), convRequest{Turns: turns})
}

func (h *ConversationHandler) Model() string {
	return h.model
}
