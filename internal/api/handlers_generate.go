package api

import (
	"net/http"

	"github.com/fpang/virtual-tryon/internal/workflow"
)

func (s *Server) handlePromptCheck(w http.ResponseWriter, r *http.Request) {
	pc, err := s.studio.CheckPrompt(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pc)
}

// handleGenerate runs one generation synchronously and responds with the
// session state. A failed call responds with the classified error; the
// session keeps the message as lastError.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.studio.Generate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	var view sessionView
	if err := s.sessions.View(id, func(sess *workflow.Session) { view = newSessionView(sess) }); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.ledger.Stats())
}

func (s *Server) handleUsageReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Reset(r.Context()); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to reset usage data", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Usage data has been reset.",
	})
}
