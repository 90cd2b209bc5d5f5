package httpapi

import (
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/ingestion"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/summarize"
)

// flushWriter pushes every write to the client.
type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}

func formBool(r *http.Request, key string, def bool) bool {
	v := r.FormValue(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.svc.Summarizer == nil {
		s.writeError(w, r, notConfigured("summaries"))
		return
	}
	file, header, err := openFormFile(r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.writeError(w, r, err)
		return
	}
	path, existed, err := ingestion.SaveUpload(s.uploadDir, header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if existed {
		s.logger.Info("upload already on disk", zap.String("path", path))
	}

	result, err := s.svc.Summarizer.SummarizeFile(r.Context(), path, formBool(r, "use_cache", false))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if formBool(r, "stream", false) {
		s.streamSummary(w, r, result)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (s *Server) streamSummary(w http.ResponseWriter, r *http.Request, result *summarize.Result) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Summary-Cached", strconv.FormatBool(result.Cached))
	w.WriteHeader(http.StatusOK)

	f, _ := w.(http.Flusher)
	if err := summarize.StreamText(r.Context(), flushWriter{w: w, f: f}, result.Summary, s.streamDelay); err != nil {
		s.logger.Warn("summary stream interrupted", zap.String("file", result.FileName), zap.Error(err))
	}
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	if s.svc.Summarizer == nil {
		s.writeError(w, r, notConfigured("summaries"))
		return
	}
	name := mux.Vars(r)["name"]
	result, err := s.svc.Summarizer.Cached(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

type driveRequest struct {
	FileID string `json:"file_id"`
}

func (s *Server) handleSummarizeDrive(w http.ResponseWriter, r *http.Request) {
	if s.svc.Summarizer == nil || s.svc.Drive == nil {
		s.writeError(w, r, notConfigured("drive summaries"))
		return
	}
	token := getAccessToken(r)
	if token == "" {
		s.writeError(w, r, errUnauthorized)
		return
	}
	var req driveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.FileID == "" {
		s.writeError(w, r, badRequest("file_id is required"))
		return
	}

	dir, err := os.MkdirTemp("", "suite-drive-*")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer os.RemoveAll(dir)

	doc, err := s.svc.Drive.LoadFromDrive(r.Context(), token, req.FileID, dir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.Summarizer.SummarizeDocument(r.Context(), doc.Title, doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}
