package handlertools

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getzep/entitylink/internal"
	"github.com/getzep/entitylink/pkg/models"
)

var log = internal.GetLogger()

// ErrorResponse is the body of every error response. Detail is only set for
// validation errors.
type ErrorResponse struct {
	Message string              `json:"message"`
	Detail  []models.FieldError `json:"detail,omitempty"`
}

// EncodeJSON encodes data into JSON and writes it to the response writer.
func EncodeJSON(w http.ResponseWriter, data any) error {
	return json.NewEncoder(w).Encode(data)
}

// JSONRaw writes an already encoded JSON body.
func JSONRaw(w http.ResponseWriter, body json.RawMessage, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

// JSON encodes data and writes it with the given status.
func JSON(w http.ResponseWriter, data any, code int) {
	body, err := json.Marshal(data)
	if err != nil {
		LogAndRenderError(w, err, http.StatusInternalServerError)
		return
	}
	JSONRaw(w, body, code)
}

func JSONError(w http.ResponseWriter, resp ErrorResponse, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := EncodeJSON(w, resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// StatusForError maps an error from decoding or dispatch to an HTTP status.
func StatusForError(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrModelNotFound), errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HandleError renders err with the status from StatusForError.
func HandleError(w http.ResponseWriter, err error) {
	LogAndRenderError(w, err, StatusForError(err))
}

// LogAndRenderError logs server side failures and renders an error response.
func LogAndRenderError(w http.ResponseWriter, err error, status int) {
	// log errors from 500 onwards (inclusive)
	if status >= http.StatusInternalServerError {
		log.Error(err)
	} else {
		log.Debug(err)
	}

	resp := ErrorResponse{Message: err.Error()}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		resp.Detail = validationErr.Fields
	}

	if status == http.StatusRequestEntityTooLarge {
		resp.Message = "request body too large"
	}

	JSONError(w, resp, status)
}
