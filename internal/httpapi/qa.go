package httpapi

import (
	"net/http"
	"strings"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/sqlqa"
)

type askRequest struct {
	Question string `json:"question"`
	User     string `json:"user"`
}

type voiceResponse struct {
	Transcript string       `json:"transcript"`
	State      *sqlqa.State `json:"state"`
}

func (s *Server) user(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultUser
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.svc.Assistant == nil {
		s.writeError(w, r, notConfigured("qa"))
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, r, badRequest("question is required"))
		return
	}
	user := s.user(req.User)
	if user == "" {
		s.writeError(w, r, badRequest("user is required"))
		return
	}

	state, err := s.svc.Assistant.Ask(r.Context(), user, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, state)
}

func (s *Server) handleAskVoice(w http.ResponseWriter, r *http.Request) {
	if s.svc.Assistant == nil {
		s.writeError(w, r, notConfigured("qa"))
		return
	}
	path, cleanup, err := formFile(r, "audio")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanup()

	user := s.user(r.FormValue("user"))
	if user == "" {
		s.writeError(w, r, badRequest("user is required"))
		return
	}
	transcript, state, err := s.svc.Assistant.AskAudio(r.Context(), user, path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, voiceResponse{Transcript: transcript, State: state})
}
