package handlertools

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getzep/entitylink/pkg/models"
)

func TestStatusForError(t *testing.T) {
	verr := &models.ValidationError{}
	verr.Add("text", "field required")

	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", verr, http.StatusUnprocessableEntity},
		{"lookup", models.NewLookupError("ner", "x", []string{"ner-fast"}), http.StatusBadRequest},
		{"wrapped lookup", fmt.Errorf("dispatch: %w", models.NewLookupError("conv", "x", nil)), http.StatusBadRequest},
		{"bad request", models.NewBadRequestError("nope"), http.StatusBadRequest},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"backend", models.NewBackendError("ner-fast", errors.New("boom")), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusForError(tc.err))
		})
	}
}

func TestHandleErrorValidationDetail(t *testing.T) {
	verr := &models.ValidationError{}
	verr.Add("text", "field required")
	verr.Add("spans", "field required")

	rr := httptest.NewRecorder()
	HandleError(rr, verr)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, verr.Error(), resp.Message)
	assert.Equal(t, verr.Fields, resp.Detail)
}

func TestHandleErrorTooLarge(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleError(rr, &http.MaxBytesError{Limit: 10})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.JSONEq(t, `{"message":"request body too large"}`, rr.Body.String())
}

func TestJSONRaw(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONRaw(rr, json.RawMessage(`"Not implemented"`), http.StatusOK)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `"Not implemented"`, rr.Body.String())
}
