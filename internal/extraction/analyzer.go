// Package extraction pulls structured fields out of scanned documents.
//
// Known document types go to the matching prebuilt Document Intelligence
// model. Everything else is read with the layout model and handed to the
// chat model for schema-guided extraction.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/ingestion"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// UploadTypes are the extensions the extractor accepts.
var UploadTypes = []string{".pdf", ".jpg", ".jpeg", ".png"}

const (
	GenericDocType = "generic_document"

	extractSystemPrompt = "You are an intelligent document information extractor. " +
		"Analyze the text and extract all relevant structured fields."
)

// DocumentAnalyzer is the hosted OCR service.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, modelID string, doc []byte) (*AnalyzeResult, error)
}

// LocalReader extracts text without the hosted service.
type LocalReader func(ctx context.Context, path string) (string, error)

// FieldValue is a single prebuilt-model field.
type FieldValue struct {
	Value string `json:"value"`
}

// Result is the extraction for one document.
type Result struct {
	DocType   string                    `json:"docType"`
	Fields    map[string]FieldValue     `json:"fields,omitempty"`
	LLMOutput *MultiDocumentInformation `json:"llm_output,omitempty"`
}

// FieldNames returns the prebuilt field names sorted.
func (r Result) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for n := range r.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Report is the outcome of one Analyze call.
type Report struct {
	FileName     string   `json:"file_name"`
	ModelID      string   `json:"model_id"`
	DetectedType string   `json:"detected_type,omitempty"`
	Results      []Result `json:"results"`
}

type Analyzer struct {
	docintel DocumentAnalyzer
	model    *llm.Model
	local    LocalReader
	logger   *zap.Logger
}

type Option func(*Analyzer)

// WithDocumentIntelligence enables the hosted OCR service.
func WithDocumentIntelligence(d DocumentAnalyzer) Option {
	return func(a *Analyzer) { a.docintel = d }
}

func WithLocalReader(r LocalReader) Option { return func(a *Analyzer) { a.local = r } }

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer builds an analyzer. The model runs at temperature 0.2.
func NewAnalyzer(model *llm.Model, opts ...Option) *Analyzer {
	a := &Analyzer{
		model:  model.With(llm.WithTemperature(0.2)),
		local:  ingestion.ExtractText,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze extracts the document at path using modelID, which may be
// ModelAuto to pick a model from the document's own text.
func (a *Analyzer) Analyze(ctx context.Context, path, modelID string) (*Report, error) {
	if !ingestion.Supported(path, UploadTypes...) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}
	if modelID == "" {
		modelID = ModelAuto
	}
	report := &Report{FileName: filepath.Base(path)}

	if a.docintel == nil {
		return a.analyzeLocally(ctx, path, modelID, report)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if modelID == ModelAuto {
		layout, err := a.docintel.Analyze(ctx, ModelLayout, data)
		if err != nil {
			return nil, err
		}
		report.DetectedType = DetectDocumentType(strings.Join(layout.Lines(), " "))
		modelID = modelForType(report.DetectedType)
		a.logger.Info("auto-detected document type",
			zap.String("type", strings.ToUpper(report.DetectedType)),
			zap.String("model_id", modelID))
		if modelID == ModelLayout {
			report.ModelID = modelID
			return a.fromLayout(ctx, layout, report)
		}
	}
	report.ModelID = modelID

	res, err := a.docintel.Analyze(ctx, modelID, data)
	if err != nil {
		return nil, err
	}
	if isPrebuilt(modelID) {
		for _, d := range res.Documents {
			r := Result{DocType: d.DocType, Fields: make(map[string]FieldValue, len(d.Fields))}
			for name, f := range d.Fields {
				r.Fields[name] = FieldValue{Value: f.Value()}
			}
			report.Results = append(report.Results, r)
		}
		return report, nil
	}
	return a.fromLayout(ctx, res, report)
}

func (a *Analyzer) fromLayout(ctx context.Context, layout *AnalyzeResult, report *Report) (*Report, error) {
	out, err := a.ExtractStructured(ctx, strings.Join(layout.Lines(), "\n"))
	if err != nil {
		return nil, err
	}
	report.Results = []Result{{DocType: GenericDocType, LLMOutput: out}}
	return report, nil
}

func (a *Analyzer) analyzeLocally(ctx context.Context, path, modelID string, report *Report) (*Report, error) {
	text, err := a.local(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", report.FileName, err)
	}
	if modelID == ModelAuto {
		report.DetectedType = DetectDocumentType(text)
	}
	report.ModelID = "local"
	a.logger.Info("document intelligence not configured, using local text",
		zap.String("file", report.FileName), zap.Int("chars", len(text)))

	out, err := a.ExtractStructured(ctx, text)
	if err != nil {
		return nil, err
	}
	report.Results = []Result{{DocType: GenericDocType, LLMOutput: out}}
	return report, nil
}

// ExtractStructured asks the chat model to fill the document schema from text.
func (a *Analyzer) ExtractStructured(ctx context.Context, text string) (*MultiDocumentInformation, error) {
	var out MultiDocumentInformation
	err := a.model.Structured(ctx, "MultiDocumentInformation", &out,
		llm.System(extractSystemPrompt),
		llm.User("Extract all relevant information from the following document text:\n"+text))
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}
	return &out, nil
}
