package httpapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/procurement"
)

type plantsRequest struct {
	Plants []string `json:"plants"`
	Limit  int      `json:"limit"`
}

type similarityRequest struct {
	Plants      []string `json:"plants"`
	Threshold   float64  `json:"threshold"`
	FlaggedOnly bool     `json:"flagged_only"`
}

type insightsRequest struct {
	Plants []string `json:"plants"`
	Plant  string   `json:"plant"`
}

type chatRequest struct {
	Question string `json:"question"`
}

// loadPlants decodes the request body into req and loads the plants it
// names. It writes the error response itself and reports false on failure.
func (s *Server) loadPlants(w http.ResponseWriter, r *http.Request, req any, plants func() []string) ([]procurement.Record, bool) {
	if s.svc.Plants == nil {
		s.writeError(w, r, notConfigured("procurement"))
		return nil, false
	}
	if err := decodeJSON(r, req); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	records, err := s.svc.Plants.Load(plants()...)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return records, true
}

func wantsXLSX(r *http.Request) bool {
	return r.URL.Query().Get("format") == "xlsx"
}

func writeWorkbook(w http.ResponseWriter, name string, body *bytes.Buffer) {
	w.Header().Set("Content-Type", procurement.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	body.WriteTo(w)
}

func (s *Server) handlePlants(w http.ResponseWriter, r *http.Request) {
	if s.svc.Plants == nil {
		s.writeError(w, r, notConfigured("procurement"))
		return
	}
	plants, err := s.svc.Plants.Plants()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"plants": plants})
}

func (s *Server) handleCheapest(w http.ResponseWriter, r *http.Request) {
	var req plantsRequest
	records, ok := s.loadPlants(w, r, &req, func() []string { return req.Plants })
	if !ok {
		return
	}
	report := procurement.FindCheapest(records)
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"plants": report.ByPlant(req.Limit),
	})
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	records, ok := s.loadPlants(w, r, &req, func() []string { return req.Plants })
	if !ok {
		return
	}
	rows, err := procurement.CheckSimilarity(records, procurement.SimilarityOptions{Threshold: req.Threshold})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.FlaggedOnly {
		rows = procurement.FlaggedOnly(rows)
	}

	if wantsXLSX(r) {
		var buf bytes.Buffer
		if err := procurement.WriteSimilarityXLSX(&buf, rows); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeWorkbook(w, procurement.SimilarityFileName, &buf)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"rows":    rows,
		"flagged": len(procurement.FlaggedOnly(rows)),
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	var req plantsRequest
	records, ok := s.loadPlants(w, r, &req, func() []string { return req.Plants })
	if !ok {
		return
	}
	report := procurement.DetectAnomalies(records)

	if wantsXLSX(r) {
		var buf bytes.Buffer
		if err := procurement.WriteAnomaliesXLSX(&buf, report.Rows); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeWorkbook(w, procurement.AnomalyFileName, &buf)
		return
	}

	type group struct {
		procurement.AnomalyGroup
		Rows []procurement.PriceRow `json:"rows"`
	}
	groups := report.Limit(req.Limit)
	out := make([]group, 0, len(groups))
	for _, g := range groups {
		out = append(out, group{AnomalyGroup: g, Rows: report.GroupRows(g.Material, g.Supplier)})
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"total":  len(report.Groups),
		"groups": out,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.svc.Analyst == nil {
		s.writeError(w, r, notConfigured("insights"))
		return
	}
	var req insightsRequest
	records, ok := s.loadPlants(w, r, &req, func() []string { return req.Plants })
	if !ok {
		return
	}
	insights, err := procurement.GenerateInsights(r.Context(), s.svc.Analyst, procurement.FindCheapest(records), req.Plant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"plant": req.Plant, "insights": insights})
}

func (s *Server) handleProcurementChat(w http.ResponseWriter, r *http.Request) {
	if s.svc.Procurement == nil {
		s.writeError(w, r, notConfigured("procurement chat"))
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	answer, err := s.svc.Procurement.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"question": req.Question, "answer": answer})
}

func (s *Server) handleProcurementVoice(w http.ResponseWriter, r *http.Request) {
	if s.svc.Procurement == nil {
		s.writeError(w, r, notConfigured("procurement chat"))
		return
	}
	path, cleanup, err := formFile(r, "audio")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanup()

	question, answer, err := s.svc.Procurement.AskAudio(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"question": question, "answer": answer})
}
