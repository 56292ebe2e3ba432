package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Mode is the discriminator carried by every annotation request.
type Mode string

const (
	ModeNamedEntity        Mode = "ne"
	ModeNamedEntityConcept Mode = "ne_concept"
	ModeConversation       Mode = "conv"
)

// Modes lists the accepted discriminator values.
var Modes = []Mode{ModeNamedEntity, ModeNamedEntityConcept, ModeConversation}

const (
	DefaultNERModel          = "ner-fast"
	DefaultConversationModel = "default"
)

// NotImplementedResponse is returned for ne_concept requests.
var NotImplementedResponse = json.RawMessage(`"Not implemented"`)

// Request is a validated annotation request. The set of implementations is
// closed: NamedEntityRequest, NamedEntityConceptRequest, ConversationRequest
// and DefaultRequest.
type Request interface {
	Mode() Mode
	// Response computes the response for the request by calling back into the
	// Responder method for its own variant.
	Response(ctx context.Context, r Responder) (json.RawMessage, error)

	isRequest()
}

// Responder handles each request variant. Adding a variant means adding a
// method here, so every Responder has to handle it before the code compiles.
type Responder interface {
	NamedEntity(ctx context.Context, req *NamedEntityRequest) (json.RawMessage, error)
	NamedEntityConcept(ctx context.Context, req *NamedEntityConceptRequest) (json.RawMessage, error)
	Conversation(ctx context.Context, req *ConversationRequest) (json.RawMessage, error)
}

// Span marks a mention as a character offset and length within the request
// text. It is encoded as a two element JSON array: [offset, length].
type Span struct {
	Offset int `json:"offset" validate:"min=0"`
	Length int `json:"length" validate:"min=0"`
}

func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Offset, s.Length})
}

func (s *Span) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.New("span must be an [offset, length] pair of integers")
	}
	if len(pair) != 2 {
		return fmt.Errorf("span must have exactly 2 elements, got %d", len(pair))
	}
	s.Offset, s.Length = pair[0], pair[1]
	return nil
}

// NamedEntityRequest asks for entity linking (no spans) or entity
// disambiguation of the given spans.
type NamedEntityRequest struct {
	Text  string `json:"text"`
	Spans []Span `json:"spans" validate:"dive"`
	Model string `json:"model" validate:"required"`
}

func (*NamedEntityRequest) Mode() Mode { return ModeNamedEntity }

func (r *NamedEntityRequest) Response(ctx context.Context, resp Responder) (json.RawMessage, error) {
	return resp.NamedEntity(ctx, r)
}

func (*NamedEntityRequest) isRequest() {}

// IsDisambiguation reports whether the request carries pre-identified spans.
func (r *NamedEntityRequest) IsDisambiguation() bool {
	return len(r.Spans) > 0
}

// NamedEntityConceptRequest is reserved and always answered with
// NotImplementedResponse.
type NamedEntityConceptRequest struct{}

func (*NamedEntityConceptRequest) Mode() Mode { return ModeNamedEntityConcept }

func (r *NamedEntityConceptRequest) Response(ctx context.Context, resp Responder) (json.RawMessage, error) {
	return resp.NamedEntityConcept(ctx, r)
}

func (*NamedEntityConceptRequest) isRequest() {}

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerUser   Speaker = "USER"
	SpeakerSystem Speaker = "SYSTEM"
)

// ConversationTurn is a single utterance in a dialogue.
type ConversationTurn struct {
	Speaker   Speaker `json:"speaker" validate:"oneof=USER SYSTEM"`
	Utterance string  `json:"utterance"`
}

// ConversationRequest asks for conversational entity linking over an ordered
// list of turns.
type ConversationRequest struct {
	Text  []ConversationTurn `json:"text" validate:"dive"`
	Model string             `json:"model" validate:"required"`
}

func (*ConversationRequest) Mode() Mode { return ModeConversation }

func (r *ConversationRequest) Response(ctx context.Context, resp Responder) (json.RawMessage, error) {
	return resp.Conversation(ctx, r)
}

func (*ConversationRequest) isRequest() {}

// DefaultRequest is selected when a payload carries no mode at all. It is
// handled exactly like a NamedEntityRequest.
type DefaultRequest struct {
	NamedEntityRequest
}

func (*DefaultRequest) Mode() Mode { return ModeNamedEntity }

func (r *DefaultRequest) Response(ctx context.Context, resp Responder) (json.RawMessage, error) {
	return resp.NamedEntity(ctx, &r.NamedEntityRequest)
}

func (*DefaultRequest) isRequest() {}

var (
	_ Request = &NamedEntityRequest{}
	_ Request = &NamedEntityConceptRequest{}
	_ Request = &ConversationRequest{}
	_ Request = &DefaultRequest{}
)
