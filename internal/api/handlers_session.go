package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/virtual-tryon/internal/garment"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// mutate applies fn to the session named in the path and responds with the
// resulting state. Edits are refused while a generation is in flight.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*workflow.Session) error) {
	var view sessionView
	err := s.sessions.Update(r.PathValue("id"), func(sess *workflow.Session) error {
		if sess.Generating {
			return errGenerating
		}
		if err := fn(sess); err != nil {
			return err
		}
		view = newSessionView(sess)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	var view sessionView
	if err := s.sessions.View(id, func(sess *workflow.Session) { view = newSessionView(sess) }); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"sessionId": id,
		"state":     view,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	var view sessionView
	err := s.sessions.View(r.PathValue("id"), func(sess *workflow.Session) {
		view = newSessionView(sess)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.sessions.Delete(id) {
		writeError(w, workflow.ErrSessionNotFound)
		return
	}
	log.Debug().Str("sessionId", id).Msg("Session deleted")
	w.WriteHeader(http.StatusNoContent)
}

type stepRequest struct {
	Step  string `json:"step"`
	Force bool   `json:"force"`
}

// handleStep navigates the session. Without force every earlier step must
// be able to proceed; with force the jump is unconditional. generating and
// result are never reachable here.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	step, err := workflow.ParseStep(req.Step)
	if err != nil {
		writeError(w, err)
		return
	}
	if !step.Navigable() {
		writeError(w, workflow.ErrNotNavigable)
		return
	}
	s.mutate(w, r, func(sess *workflow.Session) error {
		if req.Force {
			return sess.GoToStep(step)
		}
		return sess.Advance(step)
	})
}

func (s *Server) handleClearModel(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *workflow.Session) error {
		sess.ClearModelImage()
		return nil
	})
}

func (s *Server) handleToggleGarment(w http.ResponseWriter, r *http.Request) {
	kind, err := garment.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, r, func(sess *workflow.Session) error {
		sess.ToggleGarment(kind)
		return nil
	})
}

func (s *Server) handleClearFabric(w http.ResponseWriter, r *http.Request) {
	kind, err := garment.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, r, func(sess *workflow.Session) error {
		sess.ClearFabric(kind)
		return nil
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	var patch workflow.OptionsPatch
	if err := decodeJSON(r, &patch); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, asBadRequest(err))
		return
	}
	s.mutate(w, r, func(sess *workflow.Session) error {
		sess.SetAdvancedOptions(patch)
		return nil
	})
}

type resetRequest struct {
	Step string `json:"step"`
}

// handleReset discards the result and moves to the given step, or resets
// the whole workflow when no step is given. It is the one edit allowed
// during a generation; the in-flight result is then dropped.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var step workflow.Step
	if req.Step != "" {
		var err error
		if step, err = workflow.ParseStep(req.Step); err != nil {
			writeError(w, err)
			return
		}
		if !step.Navigable() {
			writeError(w, workflow.ErrNotNavigable)
			return
		}
	}

	var view sessionView
	err := s.sessions.Update(r.PathValue("id"), func(sess *workflow.Session) error {
		if step == "" {
			sess.Reset()
		} else if err := sess.ResetToStep(step); err != nil {
			return err
		}
		view = newSessionView(sess)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
