// Package llm wraps the hosted chat and transcription deployments.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
)

var (
	ErrEmptyResponse = errors.New("model returned no choices")
	// ErrUpstream wraps failures reported by the hosted deployments.
	ErrUpstream = errors.New("upstream model error")
)

// ChatClient is the subset of *openai.Client the suite uses for chat.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewAzureClient builds a client for an Azure OpenAI resource. Deployment
// names are passed through unchanged.
func NewAzureClient(endpoint, apiKey, apiVersion string) *openai.Client {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	cfg.AzureModelMapperFunc = func(model string) string { return model }
	return openai.NewClientWithConfig(cfg)
}

// Model is a chat deployment with fixed sampling settings.
type Model struct {
	client      ChatClient
	deployment  string
	temperature *float32
	maxTokens   int
	logger      *zap.Logger
}

type Option func(*Model)

// WithTemperature fixes the sampling temperature. Without it the
// deployment default applies.
func WithTemperature(t float32) Option { return func(m *Model) { m.temperature = &t } }

func WithMaxTokens(n int) Option { return func(m *Model) { m.maxTokens = n } }

func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewModel(client ChatClient, deployment string, opts ...Option) *Model {
	m := &Model{client: client, deployment: deployment, logger: zap.NewNop()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// With returns a copy of m with extra options applied.
func (m *Model) With(opts ...Option) *Model {
	c := *m
	for _, o := range opts {
		o(&c)
	}
	return &c
}

func System(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: content}
}

func User(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content}
}

func (m *Model) request(msgs []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:     m.deployment,
		Messages:  msgs,
		MaxTokens: m.maxTokens,
	}
	if m.temperature != nil {
		req.Temperature = *m.temperature
		// a zero temperature is dropped by omitempty
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return req
}

func (m *Model) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	resp, err := m.client.CreateChatCompletion(ctx, req)
	metrics.ObserveExternal(metrics.ProviderLLM, err)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion: %w: %w", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, ErrEmptyResponse
	}
	m.logger.Debug("chat completion",
		zap.String("deployment", m.deployment),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message, nil
}

// Invoke sends msgs and returns the assistant's text.
func (m *Model) Invoke(ctx context.Context, msgs ...openai.ChatCompletionMessage) (string, error) {
	msg, err := m.complete(ctx, m.request(msgs))
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// Structured asks for a JSON object matching the schema of out and decodes
// the reply into out. out must be a pointer to a struct.
func (m *Model) Structured(ctx context.Context, name string, out any, msgs ...openai.ChatCompletionMessage) error {
	rt := reflect.TypeOf(out)
	if rt == nil || rt.Kind() != reflect.Pointer {
		return fmt.Errorf("structured %s: out must be a pointer, got %T", name, out)
	}
	schema, err := jsonschema.GenerateSchemaForType(reflect.New(rt.Elem()).Elem().Interface())
	if err != nil {
		return fmt.Errorf("schema for %s: %w", name, err)
	}

	req := m.request(msgs)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
		},
	}

	msg, err := m.complete(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripFences(msg.Content)), out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// stripFences tolerates replies wrapped in a markdown code block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
