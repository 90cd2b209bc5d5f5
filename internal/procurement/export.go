package procurement

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SimilarityFileName = "MultiPlant_Similarity_Check.xlsx"
	AnomalyFileName    = "Material_Vendor_Anomalies.xlsx"

	SimilaritySheet = "Similarity_Check"
	AnomalySheet    = "Price_Anomalies"
)

var similarityHeader = []any{
	ColPlant, ColShortText, "Material (Short Text)", "Vendor_Price_Map (Short Text)",
	"Similar_To", "Material (Similar To)", "Vendor_Price_Map (Similar_To)",
	"Similarity_Score", "Flag",
}

var anomalyHeader = []any{ColPlant, ColMaterial, ColSupplier, ColShortText, ColNetPrice, ColCurrency}

// WriteSimilarityXLSX writes the similarity report as a workbook.
func WriteSimilarityXLSX(w io.Writer, rows []SimilarityRow) error {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{
			r.Plant, r.ShortText, r.Material, r.VendorPrices.String(),
			optional(r.SimilarTo), optional(r.SimilarMaterial), r.SimilarVendorPrices.String(),
			r.Score, r.Flag,
		})
	}
	return writeSheet(w, SimilaritySheet, similarityHeader, out)
}

// WriteAnomaliesXLSX writes the anomaly rows as a workbook.
func WriteAnomaliesXLSX(w io.Writer, rows []PriceRow) error {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Plant, r.Material, r.Supplier, r.ShortText, nullNumber(r.NetPrice), r.Currency})
	}
	return writeSheet(w, AnomalySheet, anomalyHeader, out)
}

func writeSheet(w io.Writer, sheet string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// String renders the map as {'vendor': price, ...} with vendors sorted
// and missing prices shown as nan.
func (v VendorPrices) String() string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': %s", n, floatRepr(v[n]))
	}
	b.WriteByte('}')
	return b.String()
}

func floatRepr(d decimal.NullDecimal) string {
	if !d.Valid {
		return "nan"
	}
	s := strconv.FormatFloat(d.Decimal.InexactFloat64(), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
