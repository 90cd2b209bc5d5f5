// Package procurement analyses purchase order exports kept as one
// spreadsheet per plant: cheapest vendors, naming typos, inconsistent
// vendor pricing, and a SQL chatbot over the combined data.
package procurement

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Spreadsheet column headers.
const (
	ColPlant     = "Plant"
	ColMaterial  = "Material"
	ColSupplier  = "Supplier/Supplying Plant"
	ColShortText = "Short Text"
	ColNetPrice  = "Net Price"
	ColCurrency  = "Currency"
	ColQuantity  = "Quantity in SKU"
)

const plantPrefix = "Plant_"

var (
	ErrNoPlants     = errors.New("no plant files found")
	ErrNoData       = errors.New("no data found in the selected plants")
	ErrNoSelection  = errors.New("select one or more plants")
	ErrUnknownPlant = errors.New("unknown plant")
)

// Record is one purchasing line. Prices that are blank or not numeric
// are left invalid.
type Record struct {
	Plant     string              `json:"plant"`
	Material  string              `json:"material"`
	Supplier  string              `json:"supplier"`
	ShortText string              `json:"short_text"`
	NetPrice  decimal.NullDecimal `json:"net_price"`
	Currency  string              `json:"currency"`
	Quantity  decimal.NullDecimal `json:"quantity_in_sku"`
}

// Store reads plant spreadsheets named Plant_<name>.xlsx from a folder.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) Dir() string { return s.dir }

// Plants lists the plant names found in the data folder, sorted.
func (s *Store) Plants() ([]string, error) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, fmt.Errorf("folder %q not found: %w", s.dir, ErrNoPlants)
	}
	files, err := filepath.Glob(filepath.Join(s.dir, plantPrefix+"*.xlsx"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	plants := make([]string, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		plants = append(plants, strings.Replace(name, plantPrefix, "", 1))
	}
	if len(plants) == 0 {
		return nil, fmt.Errorf("%s: %w", s.dir, ErrNoPlants)
	}
	return plants, nil
}

// Load reads the selected plants and tags every row with its plant.
// Plants without a file are skipped.
func (s *Store) Load(plants ...string) ([]Record, error) {
	if len(plants) == 0 {
		return nil, ErrNoSelection
	}
	var out []Record
	for _, p := range plants {
		path := filepath.Join(s.dir, plantPrefix+p+".xlsx")
		if _, err := os.Stat(path); err != nil {
			s.logger.Warn("plant file not found", zap.String("plant", p))
			continue
		}
		recs, err := readPlantFile(path, p)
		if err != nil {
			return nil, fmt.Errorf("read plant %s: %w", p, err)
		}
		s.logger.Debug("loaded plant", zap.String("plant", p), zap.Int("rows", len(recs)))
		out = append(out, recs...)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func readPlantFile(path, plant string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.TrimSpace(h)] = i
	}

	var out []Record
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cell := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		out = append(out, Record{
			Plant:     plant,
			Material:  cell(ColMaterial),
			Supplier:  cell(ColSupplier),
			ShortText: cell(ColShortText),
			NetPrice:  parseNumber(cell(ColNetPrice)),
			Currency:  cell(ColCurrency),
			Quantity:  parseNumber(cell(ColQuantity)),
		})
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseNumber(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
