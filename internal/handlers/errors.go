package handlers

import (
	"errors"
	"net/http"

	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/services"
)

// writeServiceError maps the workflow error taxonomy onto an HTTP response.
// HTML requests get a flash + redirect back; API requests get structured JSON.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, backTo string) {
	var ve *services.ValidationError
	var pe *services.PersistenceError
	var ee *services.ExternalServiceError
	var we *services.WorkflowError

	status := http.StatusInternalServerError
	code := "internal_error"
	var details any

	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		code = "validation_failed"
		if len(ve.Violations) > 0 {
			details = ve.Violations
		} else {
			details = map[string]string{ve.Field: ve.Reason}
		}
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.As(err, &ee):
		status = http.StatusBadGateway
		code = "external_service_failed"
	case errors.As(err, &we):
		status = http.StatusInternalServerError
		code = "workflow_failed"
		details = map[string]any{"step": we.Step, "deck_id": we.DeckID}
	case errors.As(err, &pe):
		status = http.StatusInternalServerError
		code = "storage_failed"
	}

	if httpx.WantsHTML(r) {
		httpx.Flash(w, code)
		http.Redirect(w, r, backTo, http.StatusSeeOther)
		return
	}
	httpx.JSONError(w, status, code, details)
}
