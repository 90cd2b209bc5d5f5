package extraction

import "strings"

// Model identifiers accepted by Analyze.
const (
	ModelAuto       = "auto"
	ModelIDDocument = "prebuilt-idDocument"
	ModelInvoice    = "prebuilt-invoice"
	ModelReceipt    = "prebuilt-receipt"
	ModelContract   = "prebuilt-contract"
	ModelLayout     = "prebuilt-layout"
)

// ModelChoice pairs a display name with a model identifier.
type ModelChoice struct {
	Name    string `json:"name"`
	ModelID string `json:"model_id"`
}

// Models lists the selectable document types in display order.
var Models = []ModelChoice{
	{"Auto Detect", ModelAuto},
	{"ID Card (Aadhaar/PAN/Passport)", ModelIDDocument},
	{"Invoice/Bill", ModelInvoice},
	{"Receipt", ModelReceipt},
	{"Contract / Legal Document", ModelContract},
	{"Marksheet / Certificate / Other", ModelLayout},
}

// ResolveModel accepts a model identifier or a display name.
func ResolveModel(choice string) (string, bool) {
	if choice == "" {
		return ModelAuto, true
	}
	for _, m := range Models {
		if choice == m.ModelID || strings.EqualFold(choice, m.Name) {
			return m.ModelID, true
		}
	}
	return "", false
}

var typeKeywords = []struct {
	docType  string
	keywords []string
}{
	{"id", []string{"aadhaar", "pan", "passport", "identity", "dob", "govt"}},
	{"invoice", []string{"invoice", "bill", "gst", "amount", "subtotal", "total due"}},
	{"receipt", []string{"receipt", "paid", "total due", "cash", "pos"}},
	{"contract", []string{"contract", "agreement", "party", "signature"}},
	{"marksheet", []string{"university", "marks", "grade", "subject", "roll no"}},
}

// DetectDocumentType guesses the document type from its text. Keywords are
// plain substrings, so "pan" also matches "company".
func DetectDocumentType(text string) string {
	lower := strings.ToLower(text)
	if len(strings.Fields(lower)) < 15 {
		return "generic"
	}
	for _, t := range typeKeywords {
		for _, k := range t.keywords {
			if strings.Contains(lower, k) {
				return t.docType
			}
		}
	}
	return "generic"
}

// modelForType maps a detected type to the prebuilt model that handles it.
func modelForType(docType string) string {
	switch docType {
	case "id":
		return ModelIDDocument
	case "invoice":
		return ModelInvoice
	case "receipt":
		return ModelReceipt
	case "contract":
		return ModelContract
	}
	return ModelLayout
}

func isPrebuilt(modelID string) bool {
	switch modelID {
	case ModelIDDocument, ModelInvoice, ModelReceipt, ModelContract:
		return true
	}
	return false
}
