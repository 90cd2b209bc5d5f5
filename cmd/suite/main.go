// Command suite runs the AI utility tools from the terminal or as an HTTP
// service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/config"
)

var (
	// Global flags
	verbose bool
	envFile string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "suite",
	Short: "AI utility suite: SQL Q&A, document extraction, summaries and procurement analytics",
	Long: `suite bundles four tools behind one binary:

  ask          plain English questions over the ERP database
  extract      structured fields from IDs, invoices, receipts and certificates
  summarize    map-reduce summary of a PDF
  procure      vendor pricing, naming typos and price anomalies per plant

Run "suite serve" to expose all of them over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		cfg, err = config.Load(files...)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	rootCmd.AddCommand(serveCmd, askCmd, extractCmd, summarizeCmd, transcribeCmd, procureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
