// Package httpapi exposes the suite's tools over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/extraction"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/ingestion"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/procurement"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/sqlqa"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/summarize"
)

// Assistant answers natural language questions against the ERP database.
type Assistant interface {
	Ask(ctx context.Context, user, question string) (*sqlqa.State, error)
	AskAudio(ctx context.Context, user, path string) (string, *sqlqa.State, error)
}

type Extractor interface {
	Analyze(ctx context.Context, path, modelID string) (*extraction.Report, error)
}

type Summarizer interface {
	SummarizeFile(ctx context.Context, path string, useCache bool) (*summarize.Result, error)
	SummarizeDocument(ctx context.Context, name string, doc *ingestion.Document) (*summarize.Result, error)
	Cached(ctx context.Context, name string) (*summarize.Result, error)
}

// DocumentSource pulls documents from a user's Google Drive.
type DocumentSource interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	LoadFromDrive(ctx context.Context, accessToken, fileID, dir string) (*ingestion.Document, error)
}

type ProcurementChat interface {
	Ask(ctx context.Context, question string) (string, error)
	AskAudio(ctx context.Context, path string) (question, answer string, err error)
}

// CacheStatus reports whether the summary cache is reachable.
type CacheStatus interface {
	Connected(ctx context.Context) bool
}

// Services are the tools the server routes to. Any of them may be nil, in
// which case its endpoints answer 503.
type Services struct {
	Assistant   Assistant
	Extractor   Extractor
	Summarizer  Summarizer
	Drive       DocumentSource
	Cache       CacheStatus
	Plants      *procurement.Store
	Analyst     *llm.Model
	Procurement ProcurementChat
}

type Server struct {
	svc         Services
	uploadDir   string
	defaultUser string
	streamDelay time.Duration
	logger      *zap.Logger
	router      *mux.Router
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithUploadDir sets where uploaded documents for summarizing are kept.
func WithUploadDir(dir string) Option { return func(s *Server) { s.uploadDir = dir } }

// WithDefaultUser sets the ERP login used when a question names no user.
func WithDefaultUser(u string) Option { return func(s *Server) { s.defaultUser = u } }

// WithStreamDelay sets the pause between words of a streamed summary.
func WithStreamDelay(d time.Duration) Option { return func(s *Server) { s.streamDelay = d } }

func New(svc Services, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		uploadDir:   "datasets",
		streamDelay: 20 * time.Millisecond,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestID, s.instrument)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/apps", s.handleApps).Methods("GET")

	router.HandleFunc("/qa/ask", s.handleAsk).Methods("POST")
	router.HandleFunc("/qa/voice", s.handleAskVoice).Methods("POST")

	router.HandleFunc("/extract", s.handleExtract).Methods("POST")
	router.HandleFunc("/extract/models", s.handleExtractModels).Methods("GET")

	router.HandleFunc("/summaries", s.handleSummarize).Methods("POST")
	router.HandleFunc("/summaries/drive", s.handleSummarizeDrive).Methods("POST")
	router.HandleFunc("/summaries/{name}", s.handleGetSummary).Methods("GET")

	router.HandleFunc("/oauth/drive", s.handleAuth).Methods("GET")
	router.HandleFunc("/oauth/callback", s.handleCallback).Methods("GET")

	p := router.PathPrefix("/procurement").Subrouter()
	p.HandleFunc("/plants", s.handlePlants).Methods("GET")
	p.HandleFunc("/cheapest", s.handleCheapest).Methods("POST")
	p.HandleFunc("/similarity", s.handleSimilarity).Methods("POST")
	p.HandleFunc("/anomalies", s.handleAnomalies).Methods("POST")
	p.HandleFunc("/insights", s.handleInsights).Methods("POST")
	p.HandleFunc("/chat", s.handleProcurementChat).Methods("POST")
	p.HandleFunc("/chat/voice", s.handleProcurementVoice).Methods("POST")

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server exited")
	return nil
}

type app struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var apps = []app{
	{"Document Summarizer", "/summaries", "Map-reduce summary of an uploaded PDF"},
	{"Document Extractor", "/extract", "Structured fields from IDs, invoices, receipts and certificates"},
	{"Smart Q&A Assistant", "/qa/ask", "Plain English questions over the ERP database"},
	{"Procurement AI Dashboard", "/procurement/plants", "Vendor pricing, naming typos and price anomalies per plant"},
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"apps": apps})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "healthy",
		"services": map[string]bool{
			"qa":          s.svc.Assistant != nil,
			"extract":     s.svc.Extractor != nil,
			"summaries":   s.svc.Summarizer != nil,
			"drive":       s.svc.Drive != nil,
			"procurement": s.svc.Plants != nil,
		},
	}

	if s.svc.Cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		health["redis"] = "disconnected"
		if s.svc.Cache.Connected(ctx) {
			health["redis"] = "connected"
		}
	}
	writeJSONResponse(w, http.StatusOK, health)
}
