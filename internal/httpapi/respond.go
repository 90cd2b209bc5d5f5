package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/access"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/extraction"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/ingestion"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/procurement"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/summarize"
)

const maxUploadSize = 32 << 20

var (
	errBadRequest        = errors.New("bad request")
	errNotConfigured     = errors.New("not configured")
	errUnauthorized      = errors.New("missing access token")
	errInvalidOAuthState = errors.New("invalid oauth state")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errBadRequest)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, errInvalidOAuthState),
		errors.Is(err, procurement.ErrNoSelection),
		errors.Is(err, procurement.ErrInvalidThreshold),
		errors.Is(err, procurement.ErrEmptyQuestion),
		errors.Is(err, extraction.ErrUnsupportedFile),
		errors.Is(err, ingestion.ErrUnsupportedFile),
		errors.Is(err, summarize.ErrNoContent):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, procurement.ErrNoPlants),
		errors.Is(err, procurement.ErrNoData),
		errors.Is(err, procurement.ErrUnknownPlant),
		errors.Is(err, access.ErrUserNotFound),
		errors.Is(err, summarize.ErrCacheMiss):
		return http.StatusNotFound
	case errors.Is(err, errNotConfigured),
		errors.Is(err, procurement.ErrNoTranscriber):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrUpstream),
		errors.Is(err, llm.ErrEmptyResponse),
		errors.Is(err, llm.ErrAgentSteps),
		errors.Is(err, extraction.ErrAnalyzeFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSONResponse(w, status, errorResponse{Error: err.Error(), RequestID: RequestID(r.Context())})
}

func notConfigured(name string) error {
	return fmt.Errorf("%s: %w", name, errNotConfigured)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

// getAccessToken reads a bearer token from the Authorization header or
// the access_token query parameter.
func getAccessToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token
	}
	return r.URL.Query().Get("access_token")
}

// formFile reads the multipart field into a temporary directory. The
// returned cleanup removes it.
func formFile(r *http.Request, field string) (path string, cleanup func(), err error) {
	file, header, err := openFormFile(r, field)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	dir, err := os.MkdirTemp("", "suite-upload-*")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { os.RemoveAll(dir) }
	path, _, err = ingestion.SaveUpload(dir, header.Filename, file)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func openFormFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, nil, badRequest("invalid multipart form")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, badRequest("%s is required", field)
	}
	return file, header, nil
}
