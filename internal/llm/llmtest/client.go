// Package llmtest provides scripted stand-ins for the hosted model clients.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

var ErrNoReply = errors.New("llmtest: no scripted reply left")

// Client replays queued replies, or calls Respond when it is set.
type Client struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	replies  []openai.ChatCompletionMessage

	Respond func(req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error)
}

func New(replies ...openai.ChatCompletionMessage) *Client {
	return &Client{replies: replies}
}

func (c *Client) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	respond := c.Respond
	var reply openai.ChatCompletionMessage
	var err error
	if respond == nil {
		if len(c.replies) == 0 {
			err = ErrNoReply
		} else {
			reply, c.replies = c.replies[0], c.replies[1:]
		}
	}
	c.mu.Unlock()

	if respond != nil {
		reply, err = respond(req)
	}
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: reply}},
	}, nil
}

// Requests returns a copy of every request seen so far.
func (c *Client) Requests() []openai.ChatCompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]openai.ChatCompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Prompt joins every message content of a request.
func Prompt(req openai.ChatCompletionRequest) string {
	parts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

func Text(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
}

func ToolCall(id, name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

// Audio returns a fixed transcript and remembers the requested file.
type Audio struct {
	Text string
	Err  error

	mu    sync.Mutex
	Files []string
}

func (a *Audio) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	a.mu.Lock()
	a.Files = append(a.Files, req.FilePath)
	a.mu.Unlock()
	if a.Err != nil {
		return openai.AudioResponse{}, a.Err
	}
	return openai.AudioResponse{Text: a.Text}, nil
}
