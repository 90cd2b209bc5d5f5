package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/procurement"
)

var (
	plantList   []string
	rowLimit    int
	threshold   float64
	flaggedOnly bool
	outFile     string
	chatAudio   string
)

var procureCmd = &cobra.Command{
	Use:   "procure",
	Short: "Procurement analytics over the Plant_*.xlsx workbooks",
	Long: `Reads one workbook per plant from $PROCUREMENT_DATA_DIR and reports the
cheapest vendors, short texts that look like typos of each other and
vendors quoting several prices for the same material.`,
}

var procurePlantsCmd = &cobra.Command{
	Use:   "plants",
	Short: "List the plants with a workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		plants, err := newStore().Plants()
		if err != nil {
			return err
		}
		for _, p := range plants {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var procureCheapestCmd = &cobra.Command{
	Use:   "cheapest",
	Short: "Cheapest vendor per material and plant",
	RunE:  runCheapest,
}

var procureSimilarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Find short texts that are probably the same item",
	Long: `Compares short texts within each plant, against texts that share their
first three words, using a token sort ratio. Pairs scoring at or above
--threshold are flagged.`,
	RunE: runSimilarity,
}

var procureAnomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Vendors quoting more than one price for a material",
	RunE:  runAnomalies,
}

var procureInsightsCmd = &cobra.Command{
	Use:   "insights <plant>",
	Short: "Model-written pricing summary for one plant",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsights,
}

var procureChatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the procurement SQL agent",
	RunE:  runProcureChat,
}

var procureLoadDBCmd = &cobra.Command{
	Use:   "load-db",
	Short: "Rebuild the procurement SQLite database from every workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()
		db, err := openProcurementDB(ctx, cfg, newStore())
		if err != nil {
			return err
		}
		return db.Close()
	},
}

func init() {
	for _, c := range []*cobra.Command{procureCheapestCmd, procureSimilarityCmd, procureAnomaliesCmd, procureInsightsCmd} {
		c.Flags().StringSliceVarP(&plantList, "plants", "p", nil, "plants to load (default all)")
	}
	procureCheapestCmd.Flags().IntVarP(&rowLimit, "limit", "n", 20, "multi-vendor materials to compare per plant, 0 for all")
	procureAnomaliesCmd.Flags().IntVarP(&rowLimit, "limit", "n", 20, "anomaly groups to show, 0 for all")

	procureSimilarityCmd.Flags().Float64Var(&threshold, "threshold", procurement.DefaultThreshold, "minimum similarity score (70-100)")
	procureSimilarityCmd.Flags().BoolVar(&flaggedOnly, "flagged-only", false, "only print flagged rows")
	procureSimilarityCmd.Flags().StringVarP(&outFile, "output", "o", "", "write an xlsx report to this path")
	procureAnomaliesCmd.Flags().StringVarP(&outFile, "output", "o", "", "write an xlsx report to this path")

	procureChatCmd.Flags().StringVar(&chatAudio, "audio", "", "ask the question recorded in this audio file")

	procureCmd.AddCommand(procurePlantsCmd, procureCheapestCmd, procureSimilarityCmd,
		procureAnomaliesCmd, procureInsightsCmd, procureChatCmd, procureLoadDBCmd)
}

func newStore() *procurement.Store {
	return procurement.NewStore(cfg.Procurement.DataDir, logger)
}

// loadSelected loads the plants named by --plants, or all of them.
func loadSelected(store *procurement.Store) ([]procurement.Record, error) {
	plants := plantList
	if len(plants) == 0 {
		all, err := store.Plants()
		if err != nil {
			return nil, err
		}
		plants = all
	}
	return store.Load(plants...)
}

func price(d decimal.NullDecimal) string {
	if !d.Valid {
		return "NaN"
	}
	return d.Decimal.StringFixed(2)
}

func writeXLSX(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("report written", zap.String("path", path))
	return nil
}

func runCheapest(cmd *cobra.Command, args []string) error {
	records, err := loadSelected(newStore())
	if err != nil {
		return err
	}
	report := procurement.FindCheapest(records)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, pr := range report.ByPlant(rowLimit) {
		fmt.Fprintf(w, "Plant %s\n", pr.Plant)
		fmt.Fprintln(w, "Material\tSupplier\tShort Text\tNet Price\tCurrency")
		for _, c := range pr.Cheapest {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Material, c.Supplier, c.ShortText, c.NetPrice.StringFixed(2), c.Currency)
		}
		fmt.Fprintln(w)
		for _, m := range report.MultiVendorMaterials(pr.Plant) {
			quotes, ok := pr.Comparisons[m]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "Material %s vendors\n", m)
			for _, q := range quotes {
				mark := ""
				if q.Cheapest {
					mark = "*"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", mark+q.Supplier, q.ShortText, price(q.NetPrice), q.Currency)
			}
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	records, err := loadSelected(newStore())
	if err != nil {
		return err
	}
	rows, err := procurement.CheckSimilarity(records, procurement.SimilarityOptions{
		Threshold: threshold,
		Progress: func(p procurement.Progress) {
			logger.Debug("similarity block done",
				zap.Int("done", p.Done), zap.Int("total", p.Total),
				zap.String("plant", p.Plant), zap.String("prefix", p.Prefix))
		},
	})
	if err != nil {
		return err
	}
	if flaggedOnly {
		rows = procurement.FlaggedOnly(rows)
	}
	if outFile != "" {
		return writeXLSX(outFile, func(w io.Writer) error { return procurement.WriteSimilarityXLSX(w, rows) })
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Plant\tShort Text\tSimilar To\tScore\tFlag")
	for _, r := range rows {
		similar := "-"
		if r.SimilarTo != nil {
			similar = *r.SimilarTo
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", r.Plant, r.ShortText, similar, r.Score, r.Flag)
	}
	return w.Flush()
}

func runAnomalies(cmd *cobra.Command, args []string) error {
	records, err := loadSelected(newStore())
	if err != nil {
		return err
	}
	report := procurement.DetectAnomalies(records)
	if outFile != "" {
		return writeXLSX(outFile, func(w io.Writer) error { return procurement.WriteAnomaliesXLSX(w, report.Rows) })
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d material/vendor pairs with more than one price\n\n", len(report.Groups))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, g := range report.Limit(rowLimit) {
		fmt.Fprintf(w, "Material %s, vendor %s: %d prices\n", g.Material, g.Supplier, g.Prices)
		for _, r := range report.GroupRows(g.Material, g.Supplier) {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", r.Plant, r.ShortText, price(r.NetPrice), r.Currency)
		}
	}
	return w.Flush()
}

func runInsights(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	records, err := loadSelected(newStore())
	if err != nil {
		return err
	}
	model, err := newModel(cfg)
	if err != nil {
		return err
	}
	text, err := procurement.GenerateInsights(ctx, model, procurement.FindCheapest(records), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runProcureChat(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && chatAudio == "" {
		return procurement.ErrEmptyQuestion
	}
	model, err := newModel(cfg)
	if err != nil {
		return err
	}
	chat, db, err := newChatbot(ctx, cfg, model, newStore())
	if err != nil {
		return err
	}
	defer db.Close()

	var answer string
	if chatAudio != "" {
		question, answer, err = chat.AskAudio(ctx, chatAudio)
		if question != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Q: %s\n", question)
		}
	} else {
		answer, err = chat.Ask(ctx, question)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
