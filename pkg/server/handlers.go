package server

import (
	"net/http"

	"github.com/getzep/entitylink/pkg/models"
	"github.com/getzep/entitylink/pkg/schema"
	"github.com/getzep/entitylink/pkg/server/handlertools"
)

// StatusResponse is the fixed body returned by GET /. Its shape follows the
// shields.io endpoint badge format.
type StatusResponse struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	Color         string `json:"color"`
}

var Status = StatusResponse{
	SchemaVersion: 1,
	Label:         "status",
	Message:       "up",
	Color:         "green",
}

// GetStatusHandler godoc
//
//	@Summary	Returns server status
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	StatusResponse
//	@Router		/ [get]
func GetStatusHandler(w http.ResponseWriter, _ *http.Request) {
	handlertools.JSON(w, Status, http.StatusOK)
}

// AnnotateHandler godoc
//
//	@Summary		Submit text or a conversation for entity linking or disambiguation
//	@Description	The request mode selects the variant: "ne" (or no mode) links entities in text,
//	@Description	or disambiguates the given spans; "conv" links entities in a conversation;
//	@Description	"ne_concept" is not implemented.
//	@Tags			annotate
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	any								"Backend annotation result"
//	@Failure		400	{object}	handlertools.ErrorResponse	"Unknown model"
//	@Failure		401	{object}	handlertools.ErrorResponse	"Unauthorized"
//	@Failure		413	{object}	handlertools.ErrorResponse	"Request Entity Too Large"
//	@Failure		422	{object}	handlertools.ErrorResponse	"Validation Error"
//	@Failure		500	{object}	handlertools.ErrorResponse	"Internal Server Error"
//	@Router			/ [post]
func AnnotateHandler(appState *models.AppState) http.HandlerFunc {
	dispatcher := appState.Dispatcher
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := schema.DecodeRequest(r)
		if err != nil {
			handlertools.HandleError(w, err)
			return
		}

		log.Debugf("annotate request mode: %s (%T)", req.Mode(), req)

		result, err := dispatcher.Dispatch(r.Context(), req)
		if err != nil {
			handlertools.HandleError(w, err)
			return
		}

		handlertools.JSONRaw(w, result, http.StatusOK)
	}
}
