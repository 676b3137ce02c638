package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/virtual-tryon/internal/chat"
	"github.com/fpang/virtual-tryon/internal/studio"
	"github.com/fpang/virtual-tryon/internal/validation"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// errGenerating rejects edits to a session while its generation is in flight.
var errGenerating = errors.New("generation in progress")

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. The clientMsg is returned to the caller.
// Optional internalDetails are logged server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// writeError maps domain errors to a status and a client-safe message.
func writeError(w http.ResponseWriter, err error) {
	var valErr *validation.Error
	var genErr *chat.GenerationError
	switch {
	case errors.As(err, &valErr):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": valErr.Message, "field": valErr.Field})
	case errors.As(err, &genErr):
		if genErr.Err != nil {
			log.Warn().Err(genErr.Err).Str("type", genErr.Type.String()).Msg("Generation failed")
		}
		respondJSON(w, genErr.Status, map[string]string{"error": genErr.Message, "errorType": genErr.Type.String()})
	case errors.Is(err, workflow.ErrSessionNotFound):
		httpError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, workflow.ErrNotReady),
		errors.Is(err, workflow.ErrAlreadyGenerating),
		errors.Is(err, errGenerating),
		errors.Is(err, studio.ErrResultDiscarded):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrUnknownStep), errors.Is(err, workflow.ErrNotNavigable):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		httpError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// asBadRequest maps a plain input error to a 400 by wrapping it as a
// validation error.
func asBadRequest(err error) error {
	var valErr *validation.Error
	if errors.As(err, &valErr) {
		return err
	}
	return &validation.Error{Field: "request", Message: err.Error()}
}
