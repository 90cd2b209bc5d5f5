package procurement

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/fuzzy"
)

const (
	FlagSimilar   = "Similar Found"
	FlagNoSimilar = "No Similar Found"

	DefaultThreshold = 90
	MinThreshold     = 70
	MaxThreshold     = 100

	blockWords   = 3
	matchesShown = 3
)

var ErrInvalidThreshold = fmt.Errorf("threshold must be between %d and %d", MinThreshold, MaxThreshold)

// VendorPrices maps supplier to net price for one material.
type VendorPrices map[string]decimal.NullDecimal

// SimilarityRow is one short text and its closest neighbour in the same
// plant and block.
type SimilarityRow struct {
	Plant               string       `json:"plant"`
	ShortText           string       `json:"short_text"`
	Material            string       `json:"material"`
	VendorPrices        VendorPrices `json:"vendor_prices"`
	SimilarTo           *string      `json:"similar_to"`
	SimilarMaterial     *string      `json:"similar_material"`
	SimilarVendorPrices VendorPrices `json:"similar_vendor_prices"`
	Score               float64      `json:"similarity_score"`
	Flag                string       `json:"flag"`
}

// Progress reports one finished block.
type Progress struct {
	Done, Total   int
	Plant, Prefix string
}

type SimilarityOptions struct {
	// Threshold is the minimum token sort ratio, 70 to 100. Zero means 90.
	Threshold float64
	Progress  func(Progress)
}

type block struct {
	plant, prefix string
	rows          []Record
}

// CheckSimilarity looks for short texts that are probably the same item
// spelt differently. Texts are compared only within a plant and only
// against texts sharing their first three words.
func CheckSimilarity(records []Record, opts SimilarityOptions) ([]SimilarityRow, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < MinThreshold || threshold > MaxThreshold {
		return nil, fmt.Errorf("%v: %w", threshold, ErrInvalidThreshold)
	}

	// one row per plant and short text
	seen := make(map[[2]string]struct{})
	var rows []Record
	for _, r := range records {
		r.ShortText = strings.TrimSpace(r.ShortText)
		k := [2]string{r.Plant, r.ShortText}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, r)
	}

	prices := make(map[materialKey]VendorPrices)
	for _, r := range rows {
		k := materialKey{r.Plant, r.Material}
		if prices[k] == nil {
			prices[k] = VendorPrices{}
		}
		prices[k][r.Supplier] = r.NetPrice
	}
	lookup := func(plant string, material *string) VendorPrices {
		if material == nil {
			return VendorPrices{}
		}
		if p, ok := prices[materialKey{plant, *material}]; ok {
			return p
		}
		return VendorPrices{}
	}

	blocks := blocksOf(rows)
	var out []SimilarityRow
	for i, b := range blocks {
		if len(b.rows) == 1 {
			r := b.rows[0]
			out = append(out, SimilarityRow{
				Plant:               b.plant,
				ShortText:           r.ShortText,
				Material:            r.Material,
				VendorPrices:        lookup(b.plant, &r.Material),
				SimilarVendorPrices: VendorPrices{},
				Flag:                FlagNoSimilar,
			})
		} else {
			out = append(out, matchBlock(b, threshold, lookup)...)
		}
		if opts.Progress != nil {
			opts.Progress(Progress{Done: i + 1, Total: len(blocks), Plant: b.plant, Prefix: b.prefix})
		}
	}
	return dropMirrored(out), nil
}

func blocksOf(rows []Record) []*block {
	byKey := make(map[[2]string]*block)
	var blocks []*block
	for _, r := range rows {
		words := strings.Fields(r.ShortText)
		if len(words) > blockWords {
			words = words[:blockWords]
		}
		k := [2]string{r.Plant, strings.Join(words, " ")}
		b, ok := byKey[k]
		if !ok {
			b = &block{plant: k[0], prefix: k[1]}
			byKey[k] = b
			blocks = append(blocks, b)
		}
		b.rows = append(b.rows, r)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].plant != blocks[j].plant {
			return blocks[i].plant < blocks[j].plant
		}
		return blocks[i].prefix < blocks[j].prefix
	})
	return blocks
}

func matchBlock(b *block, threshold float64, lookup func(string, *string) VendorPrices) []SimilarityRow {
	texts := make([]string, len(b.rows))
	for i, r := range b.rows {
		texts[i] = r.ShortText
	}

	var out []SimilarityRow
	for i, r := range b.rows {
		var best *fuzzy.Match
		for _, m := range fuzzy.Extract(r.ShortText, texts, fuzzy.TokenSortRatio, matchesShown) {
			if m.Choice != r.ShortText {
				best = &m
				break
			}
		}
		if best == nil || best.Score < threshold {
			continue
		}
		similar := best.Choice
		similarMaterial := b.rows[best.Index].Material
		out = append(out, SimilarityRow{
			Plant:               b.plant,
			ShortText:           texts[i],
			Material:            r.Material,
			VendorPrices:        lookup(b.plant, &r.Material),
			SimilarTo:           &similar,
			SimilarMaterial:     &similarMaterial,
			SimilarVendorPrices: lookup(b.plant, &similarMaterial),
			Score:               math.Round(best.Score*100) / 100,
			Flag:                FlagSimilar,
		})
	}
	return out
}

// dropMirrored keeps only the first of A~B and B~A within a plant.
func dropMirrored(rows []SimilarityRow) []SimilarityRow {
	seen := make(map[[2]string]struct{})
	out := rows[:0]
	for _, r := range rows {
		other := "None"
		if r.SimilarTo != nil {
			other = *r.SimilarTo
		}
		pair := []string{r.ShortText, other}
		sort.Strings(pair)
		k := [2]string{r.Plant, strings.Join(pair, "_")}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// FlaggedOnly keeps the rows marked FlagSimilar.
func FlaggedOnly(rows []SimilarityRow) []SimilarityRow {
	var out []SimilarityRow
	for _, r := range rows {
		if r.Flag == FlagSimilar {
			out = append(out, r)
		}
	}
	return out
}
