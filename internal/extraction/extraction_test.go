package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm/llmtest"
)

const longInvoice = "Tax invoice number INV-2291 issued by Acme Pumps Private Limited to the buyer " +
	"for the supply of twelve centrifugal pumps with subtotal and GST amount listed below"

func TestDetectDocumentType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"too short", "Invoice 42", "generic"},
		{"invoice", longInvoice, "invoice"},
		{"id wins over later rules", "Government of India Aadhaar card holder name date of birth male address " +
			"village district state pin code issued by the unique identification authority", "id"},
		{"marksheet", "The university of Mumbai statement of marks for the semester examination " +
			"roll no 4411 subject wise grade list for the candidate", "marksheet"},
		{"nothing matches", strings.Repeat("lorem ipsum ", 10), "generic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDocumentType(tt.text))
		})
	}
}

func TestResolveModel(t *testing.T) {
	id, ok := ResolveModel("Invoice/Bill")
	assert.True(t, ok)
	assert.Equal(t, ModelInvoice, id)

	id, ok = ResolveModel("prebuilt-receipt")
	assert.True(t, ok)
	assert.Equal(t, ModelReceipt, id)

	id, ok = ResolveModel("")
	assert.True(t, ok)
	assert.Equal(t, ModelAuto, id)

	_, ok = ResolveModel("prebuilt-healthInsuranceCard")
	assert.False(t, ok)
}

func TestDocumentField_Value(t *testing.T) {
	n := int64(42)
	zero := int64(0)
	assert.Equal(t, "Asha", DocumentField{ValueString: "Asha", Content: "ASHA"}.Value())
	assert.Equal(t, "1990-01-02", DocumentField{ValueDate: "1990-01-02", Content: "02/01/1990"}.Value())
	assert.Equal(t, "42", DocumentField{ValueInteger: &n, Content: "forty two"}.Value())
	assert.Equal(t, "0", DocumentField{ValueInteger: &zero, Content: "0"}.Value())
	assert.Equal(t, "$120.00", DocumentField{Type: "currency", Content: "$120.00"}.Value())
}

func TestPairsAndHumanize(t *testing.T) {
	d := DocumentInformation{Name: "Asha Rao", DateOfBirth: "1990-01-02", Address: "null", PageNumber: 2}
	assert.Equal(t, []Pair{
		{"Name", "Asha Rao"},
		{"Date of birth", "1990-01-02"},
		{"Page number", "2"},
	}, d.Pairs())
	assert.Equal(t, "Marks or grades", Humanize("marks_or_grades"))
}

func docIntelServer(t *testing.T, pendingPolls int32, result map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		switch {
		case r.Method == http.MethodPost:
			assert.Equal(t, "/documentintelligence/documentModels/prebuilt-invoice:analyze", r.URL.Path)
			assert.Equal(t, "2024-11-30", r.URL.Query().Get("api-version"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "%PDF-fake", string(body))
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		case r.URL.Path == "/operations/1":
			w.Header().Set("Content-Type", "application/json")
			if polls.Add(1) <= pendingPolls {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "running"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "succeeded", "analyzeResult": result})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestDocIntelClient_Analyze(t *testing.T) {
	srv, polls := docIntelServer(t, 2, map[string]any{
		"modelId": "prebuilt-invoice",
		"documents": []map[string]any{{
			"docType": "invoice",
			"fields": map[string]any{
				"InvoiceId":    map[string]any{"type": "string", "valueString": "INV-2291", "content": "INV-2291"},
				"InvoiceTotal": map[string]any{"type": "currency", "content": "₹ 1,200.00"},
			},
		}},
	})

	c := NewDocIntelClient(srv.URL+"/", "secret", "2024-11-30", time.Millisecond, nil)
	res, err := c.Analyze(context.Background(), ModelInvoice, []byte("%PDF-fake"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), polls.Load())
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "INV-2291", res.Documents[0].Fields["InvoiceId"].Value())
	assert.Equal(t, "₹ 1,200.00", res.Documents[0].Fields["InvoiceTotal"].Value())
}

func TestDocIntelClient_Failures(t *testing.T) {
	t.Run("rejected upload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"code":"InvalidRequest"}}`, http.StatusBadRequest)
		}))
		defer srv.Close()
		_, err := NewDocIntelClient(srv.URL, "k", "v", time.Millisecond, nil).Analyze(context.Background(), ModelLayout, nil)
		assert.ErrorIs(t, err, ErrAnalyzeFailed)
		assert.Contains(t, err.Error(), "InvalidRequest")
	})

	t.Run("failed operation", func(t *testing.T) {
		var srv *httptest.Server
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				w.Header().Set("Operation-Location", srv.URL+"/op")
				w.WriteHeader(http.StatusAccepted)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "failed",
				"error":  map[string]string{"code": "InvalidContent", "message": "corrupt file"},
			})
		}))
		defer srv.Close()
		_, err := NewDocIntelClient(srv.URL, "k", "v", time.Millisecond, nil).Analyze(context.Background(), ModelLayout, nil)
		assert.ErrorIs(t, err, ErrAnalyzeFailed)
		assert.Contains(t, err.Error(), "corrupt file")
	})
}

type fakeDocIntel struct {
	results map[string]*AnalyzeResult
	models  []string
}

func (f *fakeDocIntel) Analyze(_ context.Context, modelID string, _ []byte) (*AnalyzeResult, error) {
	f.models = append(f.models, modelID)
	r, ok := f.results[modelID]
	if !ok {
		return nil, errors.New("no such model")
	}
	return r, nil
}

func layoutOf(lines ...string) *AnalyzeResult {
	ls := make([]Line, len(lines))
	for i, l := range lines {
		ls[i] = Line{Content: l}
	}
	return &AnalyzeResult{Pages: []Page{{PageNumber: 1, Lines: ls}}}
}

func writeUpload(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-fake"), 0o644))
	return p
}

func TestAnalyzer_AutoPrebuilt(t *testing.T) {
	total := int64(1200)
	di := &fakeDocIntel{results: map[string]*AnalyzeResult{
		ModelLayout: layoutOf(longInvoice),
		ModelInvoice: {Documents: []AnalyzedDocument{{
			DocType: "invoice",
			Fields: map[string]DocumentField{
				"InvoiceId":    {ValueString: "INV-2291"},
				"AmountDue":    {ValueInteger: &total},
				"CustomerName": {Content: "Globex"},
			},
		}}},
	}}
	a := NewAnalyzer(llm.NewModel(llmtest.New(), "d"), WithDocumentIntelligence(di))

	report, err := a.Analyze(context.Background(), writeUpload(t, "bill.pdf"), ModelAuto)
	require.NoError(t, err)
	assert.Equal(t, []string{ModelLayout, ModelInvoice}, di.models)
	assert.Equal(t, "invoice", report.DetectedType)
	assert.Equal(t, ModelInvoice, report.ModelID)
	require.Len(t, report.Results, 1)
	r := report.Results[0]
	assert.Equal(t, "invoice", r.DocType)
	assert.Equal(t, []string{"AmountDue", "CustomerName", "InvoiceId"}, r.FieldNames())
	assert.Equal(t, "1200", r.Fields["AmountDue"].Value)
	assert.Equal(t, "Globex", r.Fields["CustomerName"].Value)
}

func TestAnalyzer_LayoutUsesLLM(t *testing.T) {
	di := &fakeDocIntel{results: map[string]*AnalyzeResult{
		ModelLayout: layoutOf("Certificate of completion", "Awarded to Asha Rao"),
	}}
	client := llmtest.New(llmtest.Text(`{"documents":[{"name":"Asha Rao","document_type":"Certificate","page_number":1}]}`))
	a := NewAnalyzer(llm.NewModel(client, "d"), WithDocumentIntelligence(di))

	report, err := a.Analyze(context.Background(), writeUpload(t, "cert.png"), ModelLayout)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, GenericDocType, report.Results[0].DocType)
	require.NotNil(t, report.Results[0].LLMOutput)
	assert.Equal(t, "Asha Rao", report.Results[0].LLMOutput.Documents[0].Name)

	req := client.Requests()[0]
	assert.InDelta(t, 0.2, req.Temperature, 1e-6)
	assert.Contains(t, req.Messages[1].Content, "Certificate of completion\nAwarded to Asha Rao")
	assert.Equal(t, "MultiDocumentInformation", req.ResponseFormat.JSONSchema.Name)
}

func TestAnalyzer_AutoGenericReusesLayout(t *testing.T) {
	di := &fakeDocIntel{results: map[string]*AnalyzeResult{ModelLayout: layoutOf("hello")}}
	client := llmtest.New(llmtest.Text(`{"documents":[]}`))
	a := NewAnalyzer(llm.NewModel(client, "d"), WithDocumentIntelligence(di))

	report, err := a.Analyze(context.Background(), writeUpload(t, "note.jpg"), "")
	require.NoError(t, err)
	assert.Equal(t, "generic", report.DetectedType)
	assert.Equal(t, []string{ModelLayout}, di.models)
}

func TestAnalyzer_LocalFallback(t *testing.T) {
	client := llmtest.New(llmtest.Text(`{"documents":[{"invoice_number":"INV-2291"}]}`))
	a := NewAnalyzer(llm.NewModel(client, "d"), WithLocalReader(func(context.Context, string) (string, error) {
		return longInvoice, nil
	}))

	report, err := a.Analyze(context.Background(), writeUpload(t, "bill.pdf"), ModelAuto)
	require.NoError(t, err)
	assert.Equal(t, "local", report.ModelID)
	assert.Equal(t, "invoice", report.DetectedType)
	assert.Equal(t, "INV-2291", report.Results[0].LLMOutput.Documents[0].InvoiceNumber)
}

func TestAnalyzer_Unsupported(t *testing.T) {
	a := NewAnalyzer(llm.NewModel(llmtest.New(), "d"))
	_, err := a.Analyze(context.Background(), "notes.docx", ModelAuto)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}
