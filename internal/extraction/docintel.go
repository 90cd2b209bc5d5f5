package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
)

var ErrAnalyzeFailed = errors.New("document analysis failed")

// AnalyzeResult is the subset of the Document Intelligence result the
// extractor reads.
type AnalyzeResult struct {
	ModelID   string             `json:"modelId"`
	Content   string             `json:"content"`
	Pages     []Page             `json:"pages"`
	Documents []AnalyzedDocument `json:"documents"`
}

type Page struct {
	PageNumber int    `json:"pageNumber"`
	Lines      []Line `json:"lines"`
}

type Line struct {
	Content string `json:"content"`
}

type AnalyzedDocument struct {
	DocType    string                   `json:"docType"`
	Fields     map[string]DocumentField `json:"fields"`
	Confidence float64                  `json:"confidence"`
}

type DocumentField struct {
	Type         string   `json:"type"`
	ValueString  string   `json:"valueString,omitempty"`
	ValueDate    string   `json:"valueDate,omitempty"`
	ValueInteger *int64   `json:"valueInteger,omitempty"`
	Content      string   `json:"content,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// Value picks the first non-empty of the string, date and integer values,
// falling back to the raw content.
func (f DocumentField) Value() string {
	switch {
	case f.ValueString != "":
		return f.ValueString
	case f.ValueDate != "":
		return f.ValueDate
	case f.ValueInteger != nil && *f.ValueInteger != 0:
		return strconv.FormatInt(*f.ValueInteger, 10)
	}
	return f.Content
}

// Lines returns every line of every page in reading order.
func (r *AnalyzeResult) Lines() []string {
	var out []string
	for _, p := range r.Pages {
		for _, l := range p.Lines {
			out = append(out, l.Content)
		}
	}
	return out
}

type operation struct {
	Status        string         `json:"status"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DocIntelClient calls the Azure Document Intelligence REST API.
type DocIntelClient struct {
	endpoint     string
	apiKey       string
	apiVersion   string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewDocIntelClient(endpoint, apiKey, apiVersion string, pollInterval time.Duration, logger *zap.Logger) *DocIntelClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &DocIntelClient{
		endpoint:     strings.TrimRight(endpoint, "/"),
		apiKey:       apiKey,
		apiVersion:   apiVersion,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}
}

// Analyze submits doc to modelID and waits for the result.
func (c *DocIntelClient) Analyze(ctx context.Context, modelID string, doc []byte) (*AnalyzeResult, error) {
	opURL, err := c.begin(ctx, modelID, doc)
	if err != nil {
		metrics.ObserveExternal(metrics.ProviderDocIntel, err)
		return nil, err
	}
	res, err := c.poll(ctx, opURL)
	metrics.ObserveExternal(metrics.ProviderDocIntel, err)
	return res, err
}

func (c *DocIntelClient) begin(ctx context.Context, modelID string, doc []byte) (string, error) {
	u := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.endpoint, url.PathEscape(modelID), url.QueryEscape(c.apiVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze %s: %w", modelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze %s: status %d: %s: %w", modelID, resp.StatusCode, strings.TrimSpace(string(body)), ErrAnalyzeFailed)
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("analyze %s: missing Operation-Location: %w", modelID, ErrAnalyzeFailed)
	}
	c.logger.Debug("analysis started", zap.String("model_id", modelID))
	return opURL, nil
}

func (c *DocIntelClient) poll(ctx context.Context, opURL string) (*AnalyzeResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		op, err := c.fetch(ctx, opURL)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(op.Status) {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, fmt.Errorf("empty analyze result: %w", ErrAnalyzeFailed)
			}
			return op.AnalyzeResult, nil
		case "failed", "canceled":
			msg := op.Status
			if op.Error != nil {
				msg = op.Error.Code + ": " + op.Error.Message
			}
			return nil, fmt.Errorf("%s: %w", msg, ErrAnalyzeFailed)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *DocIntelClient) fetch(ctx context.Context, opURL string) (*operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll analysis: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("poll analysis: status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), ErrAnalyzeFailed)
	}

	var op operation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &op, nil
}
