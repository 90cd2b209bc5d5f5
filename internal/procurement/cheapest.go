package procurement

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// CheapestVendor is the lowest priced line for a material at a plant.
type CheapestVendor struct {
	Plant     string          `json:"plant"`
	Material  string          `json:"material"`
	Supplier  string          `json:"supplier"`
	ShortText string          `json:"short_text"`
	NetPrice  decimal.Decimal `json:"net_price"`
	Currency  string          `json:"currency"`
}

// PriceSummary aggregates every vendor's price for a material at a plant.
type PriceSummary struct {
	Plant       string              `json:"plant"`
	Material    string              `json:"material"`
	AvgPrice    decimal.NullDecimal `json:"avg_price"`
	MinPrice    decimal.NullDecimal `json:"min_price"`
	MaxPrice    decimal.NullDecimal `json:"max_price"`
	VendorCount int                 `json:"vendor_count"`
}

// VendorQuote is one row of a per-material vendor comparison.
type VendorQuote struct {
	Supplier  string              `json:"supplier"`
	ShortText string              `json:"short_text"`
	NetPrice  decimal.NullDecimal `json:"net_price"`
	Currency  string              `json:"currency"`
	Cheapest  bool                `json:"cheapest"`
}

// PlantReport is the cheapest vendor view of one plant.
type PlantReport struct {
	Plant       string                   `json:"plant"`
	Cheapest    []CheapestVendor         `json:"cheapest"`
	Summary     []PriceSummary           `json:"summary"`
	Comparisons map[string][]VendorQuote `json:"comparisons,omitempty"`
}

// CheapestReport is the result of FindCheapest.
type CheapestReport struct {
	Cheapest []CheapestVendor
	Summary  []PriceSummary

	valid []Record
}

type materialKey struct {
	plant, material string
}

// FindCheapest picks the cheapest vendor per plant and material. A zero
// price only counts when the material has a single vendor.
func FindCheapest(records []Record) *CheapestReport {
	vendors := make(map[materialKey]map[string]struct{})
	for _, r := range records {
		k := materialKey{r.Plant, r.Material}
		if vendors[k] == nil {
			vendors[k] = make(map[string]struct{})
		}
		if r.Supplier != "" {
			vendors[k][r.Supplier] = struct{}{}
		}
	}

	report := &CheapestReport{}
	groups := make(map[materialKey][]Record)
	var keys []materialKey
	for _, r := range records {
		k := materialKey{r.Plant, r.Material}
		if len(vendors[k]) != 1 && !(r.NetPrice.Valid && r.NetPrice.Decimal.IsPositive()) {
			continue
		}
		report.valid = append(report.valid, r)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].plant != keys[j].plant {
			return keys[i].plant < keys[j].plant
		}
		return naturalLess(keys[i].material, keys[j].material)
	})

	for _, k := range keys {
		rows := groups[k]
		var cheapest *Record
		var sum decimal.Decimal
		var lo, hi decimal.NullDecimal
		n := 0
		suppliers := make(map[string]struct{})
		for i, r := range rows {
			if r.Supplier != "" {
				suppliers[r.Supplier] = struct{}{}
			}
			if !r.NetPrice.Valid {
				continue
			}
			p := r.NetPrice.Decimal
			n++
			sum = sum.Add(p)
			if !lo.Valid || p.LessThan(lo.Decimal) {
				lo = decimal.NewNullDecimal(p)
				cheapest = &rows[i]
			}
			if !hi.Valid || p.GreaterThan(hi.Decimal) {
				hi = decimal.NewNullDecimal(p)
			}
		}

		s := PriceSummary{Plant: k.plant, Material: k.material, MinPrice: lo, MaxPrice: hi, VendorCount: len(suppliers)}
		if n > 0 {
			s.AvgPrice = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(n))))
		}
		report.Summary = append(report.Summary, s)

		if cheapest != nil {
			report.Cheapest = append(report.Cheapest, CheapestVendor{
				Plant:     cheapest.Plant,
				Material:  cheapest.Material,
				Supplier:  cheapest.Supplier,
				ShortText: cheapest.ShortText,
				NetPrice:  cheapest.NetPrice.Decimal,
				Currency:  cheapest.Currency,
			})
		}
	}
	return report
}

// Plants returns the plants present in the analysed rows, sorted.
func (r *CheapestReport) Plants() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range r.valid {
		if _, ok := seen[rec.Plant]; !ok {
			seen[rec.Plant] = struct{}{}
			out = append(out, rec.Plant)
		}
	}
	sort.Strings(out)
	return out
}

func (r *CheapestReport) CheapestFor(plant string) []CheapestVendor {
	var out []CheapestVendor
	for _, c := range r.Cheapest {
		if c.Plant == plant {
			out = append(out, c)
		}
	}
	return out
}

func (r *CheapestReport) SummaryFor(plant string) []PriceSummary {
	var out []PriceSummary
	for _, s := range r.Summary {
		if s.Plant == plant {
			out = append(out, s)
		}
	}
	return out
}

// MultiVendorMaterials lists the materials at plant bought from more than
// one vendor.
func (r *CheapestReport) MultiVendorMaterials(plant string) []string {
	var out []string
	for _, s := range r.SummaryFor(plant) {
		if s.VendorCount > 1 {
			out = append(out, s.Material)
		}
	}
	return out
}

// Compare lists every vendor line for a material, cheapest first, and
// flags the lowest non-zero price.
func (r *CheapestReport) Compare(plant, material string) []VendorQuote {
	var out []VendorQuote
	for _, rec := range r.valid {
		if rec.Plant == plant && rec.Material == material {
			out = append(out, VendorQuote{
				Supplier:  rec.Supplier,
				ShortText: rec.ShortText,
				NetPrice:  rec.NetPrice,
				Currency:  rec.Currency,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessNull(out[i].NetPrice, out[j].NetPrice)
	})

	var best decimal.NullDecimal
	for _, q := range out {
		p := q.NetPrice
		if !p.Valid || p.Decimal.IsZero() {
			continue
		}
		if !best.Valid || p.Decimal.LessThan(best.Decimal) {
			best = p
		}
	}
	if best.Valid {
		for i := range out {
			out[i].Cheapest = out[i].NetPrice.Valid && out[i].NetPrice.Decimal.Equal(best.Decimal)
		}
	}
	return out
}

// ByPlant groups the report per plant. At most limit multi-vendor
// materials get a vendor comparison; limit <= 0 means all of them.
func (r *CheapestReport) ByPlant(limit int) []PlantReport {
	var out []PlantReport
	for _, p := range r.Plants() {
		pr := PlantReport{Plant: p, Cheapest: r.CheapestFor(p), Summary: r.SummaryFor(p)}
		materials := r.MultiVendorMaterials(p)
		if limit > 0 && len(materials) > limit {
			materials = materials[:limit]
		}
		if len(materials) > 0 {
			pr.Comparisons = make(map[string][]VendorQuote, len(materials))
			for _, m := range materials {
				pr.Comparisons[m] = r.Compare(p, m)
			}
		}
		out = append(out, pr)
	}
	return out
}

// lessNull orders prices ascending with missing prices last.
func lessNull(a, b decimal.NullDecimal) bool {
	switch {
	case !a.Valid:
		return false
	case !b.Valid:
		return true
	}
	return a.Decimal.LessThan(b.Decimal)
}

// naturalLess compares numerically when both values are numbers, so
// material 900 sorts before 1001. Plant names are file name stems and
// sort as plain strings.
func naturalLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if fa != fb {
			return fa < fb
		}
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}
