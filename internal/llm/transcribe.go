package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
)

// AudioClient is the subset of *openai.Client used for speech to text.
type AudioClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Transcriber turns recorded questions into text.
type Transcriber struct {
	client     AudioClient
	deployment string
	logger     *zap.Logger
}

func NewTranscriber(client AudioClient, deployment string, logger *zap.Logger) *Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcriber{client: client, deployment: deployment, logger: logger}
}

// Transcribe returns the English transcript of the audio file at path.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       t.deployment,
		FilePath:    path,
		Language:    "en",
		Temperature: 0,
	})
	metrics.ObserveExternal(metrics.ProviderWhisper, err)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w: %w", path, ErrUpstream, err)
	}
	t.logger.Info("transcription", zap.Int("chars", len(resp.Text)))
	return resp.Text, nil
}
