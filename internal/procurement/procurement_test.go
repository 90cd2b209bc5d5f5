package procurement

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm/llmtest"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/storage"
)

var header = []any{ColPlant, ColMaterial, ColSupplier, ColShortText, ColNetPrice, ColCurrency, ColQuantity}

func writePlant(t *testing.T, dir, plant string, rows ...[]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, "Plant_"+plant+".xlsx")))
}

func rec(plant, material, supplier, text, netPrice string) Record {
	return Record{Plant: plant, Material: material, Supplier: supplier, ShortText: text, NetPrice: parseNumber(netPrice), Currency: "INR"}
}

func TestFindCheapest_PlantOrder(t *testing.T) {
	r := FindCheapest([]Record{
		rec("9", "1001", "V1", "SEAL", "10"),
		rec("10", "1001", "V1", "SEAL", "12"),
		rec("10", "900", "V2", "NUT", "3"),
	})
	assert.Equal(t, []string{"10", "9"}, r.Plants())
	require.Len(t, r.Cheapest, 3)
	assert.Equal(t, []string{"10", "10", "9"},
		[]string{r.Cheapest[0].Plant, r.Cheapest[1].Plant, r.Cheapest[2].Plant})
	assert.Equal(t, "900", r.Cheapest[0].Material)
}

func TestStore_PlantsAndLoad(t *testing.T) {
	dir := t.TempDir()
	writePlant(t, dir, "1300",
		[]any{"X", 1001, "V1", "PUMP SEAL KIT", 12.5, "INR", 4},
		[]any{"X", 1002, "V2", "GASKET", "n/a", "INR", ""},
	)
	writePlant(t, dir, "1100", []any{"", 1001, "V1", "PUMP SEAL KIT", 13, "INR", 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xlsx"), []byte("x"), 0o644))

	s := NewStore(dir, nil)
	plants, err := s.Plants()
	require.NoError(t, err)
	assert.Equal(t, []string{"1100", "1300"}, plants)

	recs, err := s.Load("1300", "9999")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1300", recs[0].Plant)
	assert.Equal(t, "1001", recs[0].Material)
	assert.True(t, recs[0].NetPrice.Decimal.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, recs[0].Quantity.Valid)
	assert.False(t, recs[1].NetPrice.Valid)
	assert.False(t, recs[1].Quantity.Valid)

	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoSelection)
	_, err = s.Load("9999")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestStore_NoPlants(t *testing.T) {
	_, err := NewStore(t.TempDir(), nil).Plants()
	assert.ErrorIs(t, err, ErrNoPlants)

	_, err = NewStore(filepath.Join(t.TempDir(), "missing"), nil).Plants()
	assert.ErrorIs(t, err, ErrNoPlants)
}

func TestFindCheapest(t *testing.T) {
	records := []Record{
		rec("1300", "1001", "V1", "SEAL", "10"),
		rec("1300", "1001", "V2", "SEAL", "8"),
		rec("1300", "1001", "V3", "SEAL", "0"),
		rec("1300", "1001", "V4", "SEAL", "8"),
		rec("1300", "1002", "V1", "BOLT", "0"),
		rec("1300", "900", "V5", "NUT", ""),
		rec("1300", "900", "V6", "NUT", "5"),
	}
	r := FindCheapest(records)

	require.Len(t, r.Cheapest, 3)
	assert.Equal(t, []string{"900", "1001", "1002"},
		[]string{r.Cheapest[0].Material, r.Cheapest[1].Material, r.Cheapest[2].Material})
	assert.Equal(t, "V6", r.Cheapest[0].Supplier)
	assert.Equal(t, "V2", r.Cheapest[1].Supplier, "first of the tied minimums")
	assert.True(t, r.Cheapest[2].NetPrice.IsZero(), "a single vendor keeps its zero price")

	s := r.SummaryFor("1300")[1]
	assert.Equal(t, "1001", s.Material)
	assert.InDelta(t, 26.0/3.0, s.AvgPrice.Decimal.InexactFloat64(), 1e-9)
	assert.Equal(t, "8", s.MinPrice.Decimal.String())
	assert.Equal(t, "10", s.MaxPrice.Decimal.String())
	assert.Equal(t, 3, s.VendorCount, "the zero priced vendor is dropped")

	assert.Equal(t, []string{"1001"}, r.MultiVendorMaterials("1300"))
	quotes := r.Compare("1300", "1001")
	require.Len(t, quotes, 3)
	assert.Equal(t, []bool{true, true, false}, []bool{quotes[0].Cheapest, quotes[1].Cheapest, quotes[2].Cheapest})
	assert.False(t, r.Compare("1300", "1002")[0].Cheapest)

	plants := r.ByPlant(10)
	require.Len(t, plants, 1)
	assert.Len(t, plants[0].Comparisons, 1)
}

func TestGenerateInsights(t *testing.T) {
	report := FindCheapest([]Record{
		rec("1300", "1001", "V1", "SEAL", "10"),
		rec("1300", "1001", "V2", "SEAL", "8"),
	})
	client := llmtest.New(llmtest.Text("- V2 is cheapest"))

	out, err := GenerateInsights(context.Background(), llm.NewModel(client, "d"), report, "1300")
	require.NoError(t, err)
	assert.Equal(t, "- V2 is cheapest", out)

	req := client.Requests()[0]
	assert.Equal(t, 2048, req.MaxTokens)
	assert.Less(t, req.Temperature, float32(1e-6))
	assert.Equal(t, insightSystemPrompt, req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "Summarize pricing trends for Plant 1300.")
	assert.Contains(t, req.Messages[1].Content, "avg_price")
	assert.Contains(t, req.Messages[1].Content, "9.00")

	_, err = GenerateInsights(context.Background(), llm.NewModel(client, "d"), report, "7777")
	assert.ErrorIs(t, err, ErrUnknownPlant)
}

func similarityRecords() []Record {
	return []Record{
		rec("1300", "M1", "V1", "PUMP SEAL KIT 40MM", "10"),
		rec("1300", "M2", "V2", "PUMP SEAL KIT 40MN", "11"),
		rec("1300", "M1", "V9", "PUMP SEAL KIT 40MM ", "99"),
		rec("1300", "M4", "V1", "PUMP SEAL KIT BRASS", "3"),
		rec("1300", "M3", "V3", "GASKET RUBBER", "2"),
		rec("1100", "M3", "V3", "GASKET RUBBER", "2"),
	}
}

func TestCheckSimilarity(t *testing.T) {
	var progress []Progress
	rows, err := CheckSimilarity(similarityRecords(), SimilarityOptions{
		Progress: func(p Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	require.Len(t, progress, 3)
	assert.Equal(t, Progress{Done: 3, Total: 3, Plant: "1300", Prefix: "PUMP SEAL KIT"}, progress[2])

	require.Len(t, rows, 3)
	assert.Equal(t, "1100", rows[0].Plant)
	assert.Equal(t, FlagNoSimilar, rows[0].Flag)
	assert.Nil(t, rows[0].SimilarTo)
	assert.Equal(t, FlagNoSimilar, rows[1].Flag)

	hit := rows[2]
	assert.Equal(t, FlagSimilar, hit.Flag)
	assert.Equal(t, "PUMP SEAL KIT 40MM", hit.ShortText)
	require.NotNil(t, hit.SimilarTo)
	assert.Equal(t, "PUMP SEAL KIT 40MN", *hit.SimilarTo)
	assert.Equal(t, "M2", *hit.SimilarMaterial)
	assert.InDelta(t, 94.44, hit.Score, 1e-9)
	assert.Equal(t, "{'V1': 10.0}", hit.VendorPrices.String(), "the trimmed duplicate is dropped")
	assert.Equal(t, "{'V2': 11.0}", hit.SimilarVendorPrices.String())

	assert.Len(t, FlaggedOnly(rows), 1)
}

func TestCheckSimilarity_Threshold(t *testing.T) {
	_, err := CheckSimilarity(similarityRecords(), SimilarityOptions{Threshold: 50})
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	rows, err := CheckSimilarity(similarityRecords(), SimilarityOptions{Threshold: 100})
	require.NoError(t, err)
	assert.Empty(t, FlaggedOnly(rows))
}

func TestDetectAnomalies(t *testing.T) {
	report := DetectAnomalies([]Record{
		rec("1300", "M1", "V1", "A", "10"),
		rec("1100", "M1", "V1", "A", "12.00"),
		rec("1300", "M1", "V1", "A", "10.0"),
		rec("1300", "M2", "V1", "B", "5"),
		rec("1100", "M2", "V1", "B", "5"),
		rec("1200", "M1", "V2", "A", "9"),
		rec("1200", "M1", "V1", "A", ""),
	})

	assert.Equal(t, []AnomalyGroup{{Material: "M1", Supplier: "V1", Prices: 2}}, report.Groups)
	require.Len(t, report.Rows, 3)

	group := report.GroupRows("M1", "V1")
	assert.Equal(t, []string{"1300", "1100", "1200"}, []string{group[0].Plant, group[1].Plant, group[2].Plant})
	assert.Len(t, report.Limit(5), 1)
}

func TestExportWorkbooks(t *testing.T) {
	rows, err := CheckSimilarity(similarityRecords(), SimilarityOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSimilarityXLSX(&buf, rows))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SimilaritySheet}, f.GetSheetList())
	v, err := f.GetCellValue(SimilaritySheet, "I1")
	require.NoError(t, err)
	assert.Equal(t, "Flag", v)
	v, err = f.GetCellValue(SimilaritySheet, "E4")
	require.NoError(t, err)
	assert.Equal(t, "PUMP SEAL KIT 40MN", v)

	buf.Reset()
	anomalies := DetectAnomalies([]Record{rec("1300", "M1", "V1", "A", "10"), rec("1100", "M1", "V1", "A", "12")})
	require.NoError(t, WriteAnomaliesXLSX(&buf, anomalies.Rows))
	g, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer g.Close()
	got, err := g.GetRows(AnomalySheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ColSupplier, got[0][2])
	assert.Equal(t, "12", got[2][4])
}

func newChatDB(t *testing.T) *Chatbot {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, LoadDatabase(context.Background(), db, []Record{
		rec("1300", "M1", "V1", "PUMP SEAL KIT", "10"),
		rec("1100", "M1", "V1", "PUMP SEAL KIT", "12"),
		rec("1300", "M2", "", "GASKET", ""),
		rec("1100", "M3", "V2", "BOLT", "1.5"),
	}))
	return NewChatbot(llm.NewModel(llmtest.New(), "d"), db)
}

func TestChatbot_Tools(t *testing.T) {
	ctx := context.Background()
	c := newChatDB(t)

	tables, err := c.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{TableName}, tables)

	schema, err := c.Schema(ctx, " procurement ")
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE procurement")
	assert.Contains(t, schema, "3 rows from procurement table:")
	assert.Contains(t, schema, "Plant\tMaterial\tSupplier/Supplying Plant")
	assert.Contains(t, schema, "1300\tM2\tNone\tGASKET\tNone")

	_, err = c.Schema(ctx, "procurement, orders")
	assert.ErrorContains(t, err, "orders")

	out, err := c.Query(ctx, `SELECT "Material" FROM procurement WHERE "Net Price" = 12`)
	require.NoError(t, err)
	assert.Equal(t, "[('M1',)]", out)

	_, err = c.Query(ctx, "DELETE FROM procurement")
	assert.ErrorIs(t, err, ErrWriteQuery)

	for _, q := range []string{"SELECT 1; DELETE FROM procurement", "SELECT 1;\nDROP TABLE procurement"} {
		_, err = c.Query(ctx, q)
		assert.ErrorIs(t, err, ErrWriteQuery, q)
	}
	_, err = c.exec.Run(ctx, "SELECT 1; DELETE FROM procurement")
	assert.Error(t, err)

	out, err = c.Query(ctx, "SELECT COUNT(*) FROM procurement;")
	require.NoError(t, err)
	assert.Equal(t, "[(4,)]", out)
	tables, err = c.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{TableName}, tables)
}

func TestChatbot_Ask(t *testing.T) {
	c := newChatDB(t)
	client := llmtest.New(
		llmtest.ToolCall("1", ToolListTables, `{"tool_input":""}`),
		llmtest.ToolCall("2", ToolQuery, `{"query":"SELECT COUNT(*) FROM procurement"}`),
		llmtest.Text("There are 4 purchasing lines."),
	)
	c = NewChatbot(llm.NewModel(client, "d"), c.db)

	answer, err := c.Ask(context.Background(), "How many lines are there?")
	require.NoError(t, err)
	assert.Equal(t, "There are 4 purchasing lines.", answer)

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[0].Messages[0].Content, "Database dialect: sqlite.")
	assert.Len(t, reqs[0].Tools, 4)
	assert.Equal(t, TableName, reqs[1].Messages[len(reqs[1].Messages)-1].Content)
	assert.Equal(t, "[(4,)]", reqs[2].Messages[len(reqs[2].Messages)-1].Content)

	_, err = c.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestChatbot_AskAudio(t *testing.T) {
	c := newChatDB(t)
	client := llmtest.New(llmtest.Text("Four lines."))
	audio := &llmtest.Audio{Text: "how many lines"}
	c = NewChatbot(llm.NewModel(client, "d"), c.db,
		WithTranscriber(llm.NewTranscriber(audio, "whisper-1", nil)))

	q, a, err := c.AskAudio(context.Background(), "recorded_audio.wav")
	require.NoError(t, err)
	assert.Equal(t, "how many lines", q)
	assert.Equal(t, "Four lines.", a)
	assert.Equal(t, []string{"recorded_audio.wav"}, audio.Files)

	_, _, err = NewChatbot(llm.NewModel(client, "d"), c.db).AskAudio(context.Background(), "x.wav")
	assert.ErrorIs(t, err, ErrNoTranscriber)
}
