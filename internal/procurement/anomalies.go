package procurement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceRow is a record reduced to the columns the anomaly report shows.
type PriceRow struct {
	Plant     string              `json:"plant"`
	Material  string              `json:"material"`
	Supplier  string              `json:"supplier"`
	ShortText string              `json:"short_text"`
	NetPrice  decimal.NullDecimal `json:"net_price"`
	Currency  string              `json:"currency"`
}

// AnomalyGroup is a material and vendor pair quoted at several prices.
type AnomalyGroup struct {
	Material string `json:"material"`
	Supplier string `json:"supplier"`
	Prices   int    `json:"prices"`
}

type AnomalyReport struct {
	Rows   []PriceRow     `json:"rows"`
	Groups []AnomalyGroup `json:"groups"`
}

type vendorKey struct {
	material, supplier string
}

func (r PriceRow) key() [6]string {
	p := "NaN"
	if r.NetPrice.Valid {
		p = r.NetPrice.Decimal.String()
	}
	return [6]string{r.Plant, r.Material, r.Supplier, r.ShortText, p, r.Currency}
}

// DetectAnomalies finds vendors quoting more than one price for the same
// material, across all loaded plants.
func DetectAnomalies(records []Record) *AnomalyReport {
	seen := make(map[[6]string]struct{})
	var rows []PriceRow
	for _, r := range records {
		pr := PriceRow{
			Plant:     r.Plant,
			Material:  r.Material,
			Supplier:  r.Supplier,
			ShortText: r.ShortText,
			NetPrice:  r.NetPrice,
			Currency:  r.Currency,
		}
		k := pr.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, pr)
	}

	prices := make(map[vendorKey]map[string]struct{})
	for _, r := range rows {
		if r.Material == "" || r.Supplier == "" || !r.NetPrice.Valid {
			continue
		}
		k := vendorKey{r.Material, r.Supplier}
		if prices[k] == nil {
			prices[k] = make(map[string]struct{})
		}
		prices[k][r.NetPrice.Decimal.String()] = struct{}{}
	}

	report := &AnomalyReport{}
	listed := make(map[vendorKey]bool)
	for _, r := range rows {
		k := vendorKey{r.Material, r.Supplier}
		n := len(prices[k])
		if n <= 1 {
			continue
		}
		report.Rows = append(report.Rows, r)
		if !listed[k] {
			listed[k] = true
			report.Groups = append(report.Groups, AnomalyGroup{Material: k.material, Supplier: k.supplier, Prices: n})
		}
	}
	return report
}

// GroupRows returns the rows of one anomaly group ordered by price, then plant.
func (a *AnomalyReport) GroupRows(material, supplier string) []PriceRow {
	var out []PriceRow
	for _, r := range a.Rows {
		if r.Material == material && r.Supplier == supplier {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].NetPrice, out[j].NetPrice
		if pi.Valid && pj.Valid && !pi.Decimal.Equal(pj.Decimal) {
			return pi.Decimal.LessThan(pj.Decimal)
		}
		if pi.Valid != pj.Valid {
			return pi.Valid
		}
		return out[i].Plant < out[j].Plant
	})
	return out
}

// Limit returns the first n groups; n <= 0 returns all of them.
func (a *AnomalyReport) Limit(n int) []AnomalyGroup {
	if n <= 0 || n >= len(a.Groups) {
		return a.Groups
	}
	return a.Groups[:n]
}
