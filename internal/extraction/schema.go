package extraction

import (
	"strconv"
	"strings"
)

// DocumentInformation is structured information extracted from any document.
type DocumentInformation struct {
	Name          string `json:"name,omitempty" description:"Full name of the individual or entity"`
	DateOfBirth   string `json:"date_of_birth,omitempty" description:"Date of birth if applicable"`
	IDNumber      string `json:"id_number,omitempty" description:"ID card number such as Aadhaar, PAN, or Passport"`
	InvoiceNumber string `json:"invoice_number,omitempty" description:"Invoice or bill number, if applicable"`
	TotalAmount   string `json:"total_amount,omitempty" description:"Total amount from invoice or bill"`
	Address       string `json:"address,omitempty" description:"Full address extracted from the document"`
	Organization  string `json:"organization,omitempty" description:"Organization or university name"`
	MarksOrGrades string `json:"marks_or_grades,omitempty" description:"Marks or grades if the document is a marksheet"`
	Date          string `json:"date,omitempty" description:"Relevant date such as issue date or transaction date"`
	DocumentType  string `json:"document_type,omitempty" description:"Type of document detected (ID, Invoice, Marksheet, etc.)"`
	PageNumber    int    `json:"page_number,omitempty" description:"Page number within the uploaded file."`
}

// MultiDocumentInformation holds one entry per document or page found.
type MultiDocumentInformation struct {
	Documents []DocumentInformation `json:"documents" description:"List of extracted document information."`
}

// Pair is one rendered field.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pairs lists the populated fields with humanized keys, in schema order.
func (d DocumentInformation) Pairs() []Pair {
	raw := []struct{ key, value string }{
		{"name", d.Name},
		{"date_of_birth", d.DateOfBirth},
		{"id_number", d.IDNumber},
		{"invoice_number", d.InvoiceNumber},
		{"total_amount", d.TotalAmount},
		{"address", d.Address},
		{"organization", d.Organization},
		{"marks_or_grades", d.MarksOrGrades},
		{"date", d.Date},
		{"document_type", d.DocumentType},
	}
	if d.PageNumber != 0 {
		raw = append(raw, struct{ key, value string }{"page_number", strconv.Itoa(d.PageNumber)})
	}

	var out []Pair
	for _, r := range raw {
		v := strings.TrimSpace(r.value)
		if v == "" || v == "null" {
			continue
		}
		out = append(out, Pair{Key: Humanize(r.key), Value: v})
	}
	return out
}

// Humanize turns snake_case into a sentence-case label.
func Humanize(key string) string {
	s := strings.ToLower(strings.ReplaceAll(key, "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
