// Package summarize produces a map-reduce summary of long documents.
//
// Every chunk is summarized on its own, then the partial summaries are
// merged in token-bounded groups until they fit the budget, and a final
// consolidated summary is written.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/graph"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/ingestion"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/processing"
)

const (
	NodeGenerateSummary      = "generate_summary"
	NodeCollectSummaries     = "collect_summaries"
	NodeCollapseSummaries    = "collapse_summaries"
	NodeGenerateFinalSummary = "generate_final_summary"

	DefaultTokenMax    = 1500
	DefaultConcurrency = 8
)

var ErrNoContent = errors.New("document has no text to summarize")

// State is carried through one summarization run.
type State struct {
	Contents     []string
	Summaries    []string
	Collapsed    []string
	FinalSummary string
	Collapses    int
}

// Result is returned to callers of SummarizeFile.
type Result struct {
	FileName string   `json:"file_name"`
	Summary  string   `json:"summary"`
	Chunks   int      `json:"chunks"`
	Cached   bool     `json:"cached"`
	Path     []string `json:"path,omitempty"`
}

type Summarizer struct {
	model       *llm.Model
	counter     processing.TokenCounter
	splitter    *processing.Splitter
	cache       Cache
	tokenMax    int
	concurrency int
	logger      *zap.Logger
	graph       *graph.Runnable[State]
}

type Option func(*Summarizer)

func WithCache(c Cache) Option { return func(s *Summarizer) { s.cache = c } }

func WithTokenMax(n int) Option { return func(s *Summarizer) { s.tokenMax = n } }

func WithConcurrency(n int) Option { return func(s *Summarizer) { s.concurrency = n } }

func WithSplitter(sp *processing.Splitter) Option { return func(s *Summarizer) { s.splitter = sp } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Summarizer) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(model *llm.Model, counter processing.TokenCounter, opts ...Option) (*Summarizer, error) {
	s := &Summarizer{
		model:       model,
		counter:     counter,
		tokenMax:    DefaultTokenMax,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.counter == nil {
		s.counter = processing.Approx{}
	}
	if s.splitter == nil {
		sp, err := processing.NewSplitter(1500, 200)
		if err != nil {
			return nil, err
		}
		s.splitter = sp
	}

	g, err := graph.New[State]().
		AddNode(NodeGenerateSummary, s.generateSummaries).
		AddNode(NodeCollectSummaries, s.collectSummaries).
		AddNode(NodeCollapseSummaries, s.collapseSummaries).
		AddNode(NodeGenerateFinalSummary, s.generateFinalSummary).
		SetEntryPoint(NodeGenerateSummary).
		AddEdge(NodeGenerateSummary, NodeCollectSummaries).
		AddConditionalEdges(NodeCollectSummaries, s.shouldCollapse, nil).
		AddConditionalEdges(NodeCollapseSummaries, s.shouldCollapse, nil).
		AddEdge(NodeGenerateFinalSummary, graph.END).
		Compile()
	if err != nil {
		return nil, err
	}
	s.graph = g.WithLogger(s.logger)
	return s, nil
}

// Summarize runs the map-reduce graph over already split chunks.
func (s *Summarizer) Summarize(ctx context.Context, chunks []string) (*State, []string, error) {
	if len(chunks) == 0 {
		return nil, nil, ErrNoContent
	}
	st := &State{Contents: chunks}
	path, err := s.graph.Run(ctx, st)
	exit := "error"
	if err == nil {
		exit = path[len(path)-1]
	}
	metrics.PipelineRunsTotal.WithLabelValues("summarize", exit).Inc()
	if err != nil {
		return st, path, fmt.Errorf("summarize: %w", err)
	}
	return st, path, nil
}

// SummarizeFile summarizes the file at path. With useCache set, a cached
// summary for the same file name is returned without calling the model.
func (s *Summarizer) SummarizeFile(ctx context.Context, path string, useCache bool) (*Result, error) {
	name := filepath.Base(path)
	if useCache {
		if r, ok := s.cached(ctx, name); ok {
			return r, nil
		}
	}
	doc, err := ingestion.Load(ctx, path, "upload")
	if err != nil {
		return nil, fmt.Errorf("preprocess %s: %w", name, err)
	}
	return s.SummarizeDocument(ctx, name, doc)
}

// SummarizeDocument splits doc, summarizes it and caches the result under name.
func (s *Summarizer) SummarizeDocument(ctx context.Context, name string, doc *ingestion.Document) (*Result, error) {
	chunks := s.splitter.SplitPages(doc.Pages)
	s.logger.Info("document loaded and split",
		zap.String("file", name),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("chunks", len(chunks)))

	st, path, err := s.Summarize(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, Entry{FileName: name, Response: st.FinalSummary}); err != nil {
			s.logger.Warn("failed to save cache", zap.String("file", name), zap.Error(err))
		}
	}
	return &Result{FileName: name, Summary: st.FinalSummary, Chunks: len(chunks), Path: path}, nil
}

// Cached returns the stored summary for a file name.
func (s *Summarizer) Cached(ctx context.Context, name string) (*Result, error) {
	if s.cache == nil {
		return nil, ErrCacheMiss
	}
	e, err := s.cache.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Result{FileName: e.FileName, Summary: e.Response, Cached: true}, nil
}

func (s *Summarizer) cached(ctx context.Context, name string) (*Result, bool) {
	r, err := s.Cached(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("failed to load cache", zap.String("file", name), zap.Error(err))
		}
		return nil, false
	}
	s.logger.Info("using cached response", zap.String("file", name))
	return r, true
}

func (s *Summarizer) generateSummaries(ctx context.Context, st *State) error {
	st.Summaries = make([]string, len(st.Contents))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, content := range st.Contents {
		g.Go(func() error {
			out, err := s.model.Invoke(ctx, llm.System(mapPrompt(content)))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			st.Summaries[i] = out
			return nil
		})
	}
	return g.Wait()
}

func (s *Summarizer) collectSummaries(_ context.Context, st *State) error {
	st.Collapsed = append([]string(nil), st.Summaries...)
	s.logger.Debug("collected summaries", zap.Int("summaries", len(st.Collapsed)))
	return nil
}

func (s *Summarizer) shouldCollapse(st *State) string {
	tokens := processing.CountAll(s.counter, st.Collapsed)
	s.logger.Debug("should collapse", zap.Int("tokens", tokens), zap.Int("token_max", s.tokenMax))
	if tokens > s.tokenMax {
		return NodeCollapseSummaries
	}
	return NodeGenerateFinalSummary
}

func (s *Summarizer) collapseSummaries(ctx context.Context, st *State) error {
	groups := SplitByTokens(st.Collapsed, s.counter, s.tokenMax)
	results := make([]string, len(groups))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, group := range groups {
		g.Go(func() error {
			out, err := s.reduce(ctx, group)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	st.Collapsed = results
	st.Collapses++
	s.logger.Info("collapsed summaries", zap.Int("groups", len(groups)), zap.Int("round", st.Collapses))
	return nil
}

func (s *Summarizer) generateFinalSummary(ctx context.Context, st *State) error {
	out, err := s.reduce(ctx, st.Collapsed)
	if err != nil {
		return err
	}
	st.FinalSummary = out
	return nil
}

func (s *Summarizer) reduce(ctx context.Context, docs []string) (string, error) {
	return s.model.Invoke(ctx, llm.User(reducePrompt(docs)))
}

// SplitByTokens groups consecutive docs so each group stays within
// tokenMax. A doc that alone exceeds the budget forms its own group.
func SplitByTokens(docs []string, counter processing.TokenCounter, tokenMax int) [][]string {
	var (
		groups  [][]string
		current []string
	)
	for _, d := range docs {
		current = append(current, d)
		if processing.CountAll(counter, current) <= tokenMax {
			continue
		}
		if len(current) > 1 {
			groups = append(groups, current[:len(current)-1])
			current = []string{d}
		}
		if processing.CountAll(counter, current) > tokenMax {
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func mapPrompt(content string) string {
	return "Write a concise summary of the following:\n" + content
}

func reducePrompt(docs []string) string {
	return "The following is a set of summaries:\n" +
		strings.Join(docs, "\n\n") + "\n" +
		"Take these and distil into a final, consolidated summary " +
		"of the main themes."
}
