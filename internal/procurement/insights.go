package procurement

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
)

// InsightRows is how many summary rows are sent to the model.
const InsightRows = 20

const insightSystemPrompt = "You are an expert procurement analyst."

const insightTemplate = `You are an expert procurement analyst.

Task:
Summarize pricing trends for Plant %s.

Focus on:
- Vendors offering consistently lowest prices.
- Materials showing high price variance.
- Potential savings or anomalies.
- Recommendations for negotiation or sourcing.

Respond in concise business English, 3-5 bullet points maximum.

Data Summary:
%s
`

// GenerateInsights asks the model for a short pricing summary of plant.
func GenerateInsights(ctx context.Context, model *llm.Model, report *CheapestReport, plant string) (string, error) {
	rows := report.SummaryFor(plant)
	if len(rows) == 0 {
		return "", fmt.Errorf("plant %s: %w", plant, ErrUnknownPlant)
	}
	if len(rows) > InsightRows {
		rows = rows[:InsightRows]
	}

	m := model.With(llm.WithTemperature(0), llm.WithMaxTokens(2048))
	out, err := m.Invoke(ctx,
		llm.System(insightSystemPrompt),
		llm.User(fmt.Sprintf(insightTemplate, plant, SummaryTable(rows))))
	if err != nil {
		return "", fmt.Errorf("generate insights: %w", err)
	}
	return out, nil
}

// SummaryTable renders summary rows as an aligned plain text table.
func SummaryTable(rows []PriceSummary) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Plant\tMaterial\tavg_price\tmin_price\tmax_price\tvendor_count\t")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Plant, r.Material, price(r.AvgPrice), price(r.MinPrice), price(r.MaxPrice), strconv.Itoa(r.VendorCount))
	}
	w.Flush()
	return buf.String()
}

func price(d decimal.NullDecimal) string {
	if !d.Valid {
		return "NaN"
	}
	return d.Decimal.StringFixed(2)
}
