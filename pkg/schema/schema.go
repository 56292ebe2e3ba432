// Package schema turns raw request payloads into validated models.Request
// values. The variant is chosen by the "mode" key; a payload without a mode
// key is a DefaultRequest.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/getzep/entitylink/pkg/models"
)

const modeKey = "mode"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeRequest reads the request body and decodes it with Decode. Errors
// reading the body, such as *http.MaxBytesError, are returned unchanged.
func DecodeRequest(r *http.Request) (models.Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// Decode selects the request variant for data and validates it. Every
// violation found is reported in a single *models.ValidationError.
func Decode(data []byte) (models.Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, invalid("", "request body must be a JSON object")
	}

	rawMode, ok := fields[modeKey]
	if !ok {
		return decodeDefault(fields)
	}

	var mode string
	if isNull(rawMode) || json.Unmarshal(rawMode, &mode) != nil {
		return nil, invalid(modeKey, "must be a string")
	}

	switch models.Mode(mode) {
	case models.ModeNamedEntity:
		return decodeNamedEntity(fields)
	case models.ModeNamedEntityConcept:
		// other keys carry no meaning for this variant
		return &models.NamedEntityConceptRequest{}, nil
	case models.ModeConversation:
		return decodeConversation(fields)
	default:
		return nil, invalid(modeKey, fmt.Sprintf("must be one of %s, got %q", modeList(), mode))
	}
}

func decodeDefault(fields map[string]json.RawMessage) (models.Request, error) {
	req, err := decodeNamedEntity(fields)
	if err != nil {
		return nil, err
	}
	return &models.DefaultRequest{NamedEntityRequest: *req}, nil
}

func decodeNamedEntity(fields map[string]json.RawMessage) (*models.NamedEntityRequest, error) {
	verr := &models.ValidationError{}
	req := &models.NamedEntityRequest{Model: models.DefaultNERModel}

	decodeField(verr, fields, "text", true, &req.Text, "must be a string")
	req.Spans = decodeSpans(verr, fields)
	decodeField(verr, fields, "model", false, &req.Model, "must be a string")

	mergeValidation(verr, validate.Struct(req))
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeSpans(verr *models.ValidationError, fields map[string]json.RawMessage) []models.Span {
	var elems []json.RawMessage
	if !decodeField(verr, fields, "spans", true, &elems, "must be a list of [offset, length] pairs") {
		return nil
	}

	spans := make([]models.Span, len(elems))
	for i, raw := range elems {
		if err := json.Unmarshal(raw, &spans[i]); err != nil {
			verr.Add(fmt.Sprintf("spans[%d]", i), err.Error())
		}
	}
	return spans
}

func decodeConversation(fields map[string]json.RawMessage) (*models.ConversationRequest, error) {
	verr := &models.ValidationError{}
	req := &models.ConversationRequest{Model: models.DefaultConversationModel}

	var elems []json.RawMessage
	if decodeField(verr, fields, "text", true, &elems, "must be a list of conversation turns") {
		req.Text = make([]models.ConversationTurn, len(elems))
		for i, raw := range elems {
			decodeTurn(verr, fmt.Sprintf("text[%d]", i), raw, &req.Text[i])
		}
	}
	decodeField(verr, fields, "model", false, &req.Model, "must be a string")

	mergeValidation(verr, validate.Struct(req))
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeTurn(verr *models.ValidationError, path string, raw json.RawMessage, turn *models.ConversationTurn) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		verr.Add(path, "must be an object with speaker and utterance")
		return
	}

	var speaker string
	decodeField(verr, fields, "speaker", true, &speaker, "must be a string", path)
	turn.Speaker = models.Speaker(speaker)
	decodeField(verr, fields, "utterance", true, &turn.Utterance, "must be a string", path)
}

// decodeField unmarshals fields[key] into dst and records any violation under
// the key's path. It reports whether dst was populated.
func decodeField(
	verr *models.ValidationError,
	fields map[string]json.RawMessage,
	key string,
	required bool,
	dst any,
	typeMessage string,
	parent ...string,
) bool {
	path := key
	if len(parent) > 0 {
		path = parent[0] + "." + key
	}

	raw, ok := fields[key]
	switch {
	case !ok && required:
		verr.Add(path, "field required")
		return false
	case !ok:
		return false
	case isNull(raw):
		verr.Add(path, "must not be null")
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		verr.Add(path, typeMessage)
		return false
	}
	return true
}

// mergeValidation adds validator failures to verr, skipping fields that
// already have a structural error.
func mergeValidation(verr *models.ValidationError, err error) {
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("", err.Error())
		return
	}

	for _, fe := range fieldErrs {
		path := fe.Namespace()
		// drop the root struct name
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		if hasField(verr, path) {
			continue
		}
		verr.Add(path, constraintMessage(fe))
	}
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "min":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// hasField reports whether path or one of its ancestors already has an error.
func hasField(verr *models.ValidationError, path string) bool {
	for _, f := range verr.Fields {
		if f.Field == path ||
			strings.HasPrefix(path, f.Field+".") ||
			strings.HasPrefix(path, f.Field+"[") {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func invalid(field, message string) error {
	verr := &models.ValidationError{}
	verr.Add(field, message)
	return verr
}

func modeList() string {
	names := make([]string, len(models.Modes))
	for i, m := range models.Modes {
		names[i] = string(m)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
