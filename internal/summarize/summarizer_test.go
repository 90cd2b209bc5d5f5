package summarize

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm/llmtest"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/processing"
)

// words counts whitespace separated words, which keeps budgets readable.
type words struct{}

func (words) Count(s string) int { return len(strings.Fields(s)) }

// scripted answers map prompts with "summary of summaries" and final
// reduce replies that are short enough to stop collapsing.
func scripted(calls *atomic.Int32) *llmtest.Client {
	return &llmtest.Client{Respond: func(req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
		calls.Add(1)
		prompt := llmtest.Prompt(req)
		switch {
		case strings.HasPrefix(prompt, "Write a concise summary"):
			return llmtest.Text("partial summary of a chunk"), nil
		case strings.Contains(prompt, "consolidated summary"):
			return llmtest.Text("merged"), nil
		}
		return openai.ChatCompletionMessage{}, errors.New("unexpected prompt")
	}}
}

func TestSummarize_NoCollapse(t *testing.T) {
	var calls atomic.Int32
	s, err := New(llm.NewModel(scripted(&calls), "gpt-4o-mini"), words{}, WithTokenMax(100))
	require.NoError(t, err)

	st, path, err := s.Summarize(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{NodeGenerateSummary, NodeCollectSummaries, NodeGenerateFinalSummary}, path)
	assert.Len(t, st.Summaries, 3)
	assert.Equal(t, "merged", st.FinalSummary)
	assert.Equal(t, int32(4), calls.Load())
}

func TestSummarize_Collapses(t *testing.T) {
	var calls atomic.Int32
	// each partial summary is five words, so eight of them exceed a budget of 12
	s, err := New(llm.NewModel(scripted(&calls), "d"), words{}, WithTokenMax(12), WithConcurrency(2))
	require.NoError(t, err)

	chunks := make([]string, 8)
	for i := range chunks {
		chunks[i] = "chunk"
	}
	st, path, err := s.Summarize(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, []string{
		NodeGenerateSummary, NodeCollectSummaries, NodeCollapseSummaries, NodeGenerateFinalSummary,
	}, path)
	assert.Equal(t, 1, st.Collapses)
	assert.Len(t, st.Collapsed, 4)
	assert.Equal(t, "merged", st.FinalSummary)
}

func TestSummarize_Empty(t *testing.T) {
	s, err := New(llm.NewModel(llmtest.New(), "d"), nil)
	require.NoError(t, err)
	_, _, err = s.Summarize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestSummarize_MapError(t *testing.T) {
	client := &llmtest.Client{Respond: func(openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
		return openai.ChatCompletionMessage{}, errors.New("rate limited")
	}}
	s, err := New(llm.NewModel(client, "d"), words{})
	require.NoError(t, err)
	_, _, err = s.Summarize(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node generate_summary")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSplitByTokens(t *testing.T) {
	tests := []struct {
		name string
		docs []string
		max  int
		want [][]string
	}{
		{"fits in one", []string{"a b", "c"}, 5, [][]string{{"a b", "c"}}},
		{"splits when full", []string{"a b", "c d", "e f"}, 4, [][]string{{"a b", "c d"}, {"e f"}}},
		{"oversize doc alone", []string{"a", "b c d e f", "g"}, 3, [][]string{{"a"}, {"b c d e f"}, {"g"}}},
		{"empty", nil, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitByTokens(tt.docs, words{}, tt.max))
		})
	}
}

func newMiniredis(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return ConnectRedis(context.Background(), &redis.Options{Addr: mr.Addr()}, time.Hour, nil)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c := newMiniredis(t)
	defer c.Close()
	require.True(t, c.Connected(ctx))

	_, err := c.Get(ctx, "rfp.pdf")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, Entry{FileName: "rfp.pdf", Response: "short"}))
	e, err := c.Get(ctx, "rfp.pdf")
	require.NoError(t, err)
	assert.Equal(t, "short", e.Response)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("summary:rfp.pdf", "{not json"))
	c := ConnectRedis(ctx, &redis.Options{Addr: mr.Addr()}, time.Hour, nil)
	defer c.Close()

	misses := testutil.ToFloat64(metrics.CacheMissesTotal)
	_, err := c.Get(ctx, "rfp.pdf")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, misses+1, testutil.ToFloat64(metrics.CacheMissesTotal))
}

func TestRedisCache_Unavailable(t *testing.T) {
	ctx := context.Background()
	c := ConnectRedis(ctx, &redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}, time.Hour, nil)
	assert.False(t, c.Connected(ctx))
	assert.NoError(t, c.Set(ctx, Entry{FileName: "a", Response: "b"}))
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSummarizeFile_UsesCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "tender.txt")
	require.NoError(t, os.WriteFile(path, []byte("Scope.\n\nDeliver pumps.\n\nPay in 30 days."), 0o644))

	var calls atomic.Int32
	cache := newMiniredis(t)
	s, err := New(llm.NewModel(scripted(&calls), "d"), words{}, WithCache(cache))
	require.NoError(t, err)

	first, err := s.SummarizeFile(ctx, path, true)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "merged", first.Summary)
	made := calls.Load()
	assert.Positive(t, made)

	second, err := s.SummarizeFile(ctx, path, true)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "merged", second.Summary)
	assert.Equal(t, made, calls.Load())

	third, err := s.SummarizeFile(ctx, path, false)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Greater(t, calls.Load(), made)
}

func TestStreamText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StreamText(context.Background(), &buf, "  The   main themes\nare cost ", 0))
	assert.Equal(t, "The main themes are cost\n", buf.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := StreamText(ctx, &buf, "a b", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

var _ processing.TokenCounter = words{}
