// Package dispatch routes validated requests to the handlers loaded at
// startup. It does no recognition or linking itself: handler results are
// returned as they are.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/getzep/entitylink/internal"
	"github.com/getzep/entitylink/pkg/conversation"
	"github.com/getzep/entitylink/pkg/models"
	"github.com/getzep/entitylink/pkg/registry"
)

var log = internal.GetLogger()

var (
	_ models.Dispatcher = &Dispatcher{}
	_ models.Responder  = &Dispatcher{}
)

type Dispatcher struct {
	entities      *registry.Registry[models.EntityHandler]
	conversations *registry.Registry[models.ConversationHandler]
}

// NewDispatcher returns a Dispatcher reading from the given registries. The
// registries are only ever read.
func NewDispatcher(
	entities *registry.Registry[models.EntityHandler],
	conversations *registry.Registry[models.ConversationHandler],
) *Dispatcher {
	return &Dispatcher{
		entities:      entities,
		conversations: conversations,
	}
}

// Dispatch computes the response for req.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.Request) (json.RawMessage, error) {
	return req.Response(ctx, d)
}

// NamedEntity runs entity linking, or disambiguation when spans are given,
// on the handler for req.Model.
func (d *Dispatcher) NamedEntity(ctx context.Context, req *models.NamedEntityRequest) (json.RawMessage, error) {
	handler, err := d.entities.Get(req.Model)
	if err != nil {
		return nil, err
	}

	log.Debugf(
		"dispatching ne request to %s (disambiguation: %t, spans: %d)",
		req.Model,
		req.IsDisambiguation(),
		len(req.Spans),
	)

	result, err := handler.GenerateResponse(ctx, req.Text, req.Spans)
	if err != nil {
		return nil, models.NewBackendError(req.Model, err)
	}
	return result, nil
}

func (d *Dispatcher) NamedEntityConcept(context.Context, *models.NamedEntityConceptRequest) (json.RawMessage, error) {
	return append(json.RawMessage(nil), models.NotImplementedResponse...), nil
}

// Conversation annotates the dialogue in req with the handler for req.Model.
func (d *Dispatcher) Conversation(ctx context.Context, req *models.ConversationRequest) (json.RawMessage, error) {
	handler, err := d.conversations.Get(req.Model)
	if err != nil {
		return nil, err
	}

	log.Debugf("dispatching conv request to %s (turns: %d)", req.Model, len(req.Text))

	result, err := handler.Annotate(ctx, conversation.Flatten(req.Text))
	if err != nil {
		return nil, models.NewBackendError(req.Model, err)
	}
	return result, nil
}
