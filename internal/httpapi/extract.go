package httpapi

import (
	"net/http"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/extraction"
)

func (s *Server) handleExtractModels(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"models": extraction.Models})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.svc.Extractor == nil {
		s.writeError(w, r, notConfigured("extract"))
		return
	}
	path, cleanup, err := formFile(r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanup()

	modelID, ok := extraction.ResolveModel(r.FormValue("model"))
	if !ok {
		s.writeError(w, r, badRequest("unknown model %q", r.FormValue("model")))
		return
	}
	report, err := s.svc.Extractor.Analyze(r.Context(), path, modelID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}
