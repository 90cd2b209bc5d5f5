package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/config"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/extraction"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/ingestion"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/sqlqa"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/summarize"
)

var (
	askUser     string
	askAudio    string
	askJSON     bool
	extractAs   string
	extractJSON bool
	useCache    bool
	driveFile   string
	driveToken  string
	wordDelay   time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ERP database",
	Long: `Routes the question through the Smart Q&A pipeline. Only tables the
user's groups can read are offered to the model, and only SELECT queries
are executed.

Example:
  suite ask --user admin "how many sales orders were confirmed last month?"
  suite ask --user admin --audio question.wav`,
	RunE: runAsk,
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract structured fields from a document",
	Long: `Reads an ID card, invoice, receipt, contract or certificate and prints
the extracted fields. --model takes a model id or a display name;
the default detects the document type automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a PDF with map-reduce",
	Long: `Splits the document into chunks, summarizes each chunk, merges the
partial summaries until they fit the token budget and prints the final
summary word by word. Summaries are cached in Redis by file name;
--use-cache returns the stored summary for a file of the same name.

Pass a folder to summarize every PDF and text file in it. Use
--drive-file and --token to summarize a Google Drive file instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio>",
	Short: "Transcribe a voice recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "ERP login to answer as (default $QA_USER)")
	askCmd.Flags().StringVar(&askAudio, "audio", "", "ask the question recorded in this audio file")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full pipeline state as JSON")

	extractCmd.Flags().StringVarP(&extractAs, "model", "m", extraction.ModelAuto, "document model")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the report as JSON")

	summarizeCmd.Flags().BoolVar(&useCache, "use-cache", false, "reuse the cached summary stored under the same file name")
	summarizeCmd.Flags().StringVar(&driveFile, "drive-file", "", "Google Drive file id")
	summarizeCmd.Flags().StringVar(&driveToken, "token", "", "Google OAuth access token for --drive-file")
	summarizeCmd.Flags().DurationVar(&wordDelay, "delay", 20*time.Millisecond, "pause between printed words")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && askAudio == "" {
		return errors.New("a question or --audio is required")
	}
	user := askUser
	if user == "" {
		user = cfg.Server.DefaultUser
	}

	model, err := newModel(cfg)
	if err != nil {
		return err
	}
	assistant, cl, err := newAssistant(ctx, cfg, model)
	if err != nil {
		return err
	}
	defer cl.Close()

	var state *sqlqa.State
	if askAudio != "" {
		var transcript string
		transcript, state, err = assistant.AskAudio(ctx, user, askAudio)
		if transcript != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Q: %s\n", transcript)
		}
	} else {
		state, err = assistant.Ask(ctx, user, question)
	}
	if err != nil {
		return err
	}
	if askJSON {
		return printJSON(cmd.OutOrStdout(), state)
	}
	fmt.Fprintln(cmd.OutOrStdout(), state.FinalResponse)
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	modelID, ok := extraction.ResolveModel(extractAs)
	if !ok {
		return fmt.Errorf("unknown model %q", extractAs)
	}
	model, err := newModel(cfg)
	if err != nil {
		return err
	}
	report, err := newAnalyzer(cfg, model).Analyze(ctx, args[0], modelID)
	if err != nil {
		return err
	}
	if extractJSON {
		return printJSON(cmd.OutOrStdout(), report)
	}
	return renderReport(cmd.OutOrStdout(), report)
}

func renderReport(w io.Writer, report *extraction.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%s)\n", report.FileName, report.ModelID)
	if report.DetectedType != "" {
		fmt.Fprintf(tw, "Detected type:\t%s\n", report.DetectedType)
	}
	for i, r := range report.Results {
		fmt.Fprintf(tw, "\nDocument %d: %s\n", i+1, r.DocType)
		for _, name := range r.FieldNames() {
			fmt.Fprintf(tw, "%s\t%s\n", name, r.Fields[name].Value)
		}
		if r.LLMOutput == nil {
			continue
		}
		for _, doc := range r.LLMOutput.Documents {
			for _, p := range doc.Pairs() {
				fmt.Fprintf(tw, "%s\t%s\n", p.Key, p.Value)
			}
			fmt.Fprintln(tw)
		}
	}
	return tw.Flush()
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	if len(args) == 0 && driveFile == "" {
		return errors.New("a file or --drive-file is required")
	}
	model, err := newModel(cfg)
	if err != nil {
		return err
	}
	summarizer, cache, err := newSummarizer(ctx, cfg, model)
	if err != nil {
		return err
	}
	defer cache.Close()

	var result *summarize.Result
	if driveFile != "" {
		drive := newDrive(cfg)
		if drive == nil {
			return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required for --drive-file")
		}
		if driveToken == "" {
			return errors.New("--token is required for --drive-file")
		}
		doc, err := drive.LoadFromDrive(ctx, driveToken, driveFile, cfg.Summarizer.UploadDir)
		if err != nil {
			return err
		}
		result, err = summarizer.SummarizeDocument(ctx, doc.Title, doc)
		if err != nil {
			return err
		}
	} else if isDir(args[0]) {
		return summarizeFolder(ctx, cmd.OutOrStdout(), summarizer, args[0])
	} else {
		result, err = summarizer.SummarizeFile(ctx, args[0], useCache)
		if err != nil {
			return err
		}
	}

	if result.Cached {
		fmt.Fprintln(cmd.ErrOrStderr(), "(cached)")
	}
	return summarize.StreamText(ctx, cmd.OutOrStdout(), result.Summary, wordDelay)
}

// summarizeFolder summarizes every PDF and text file under dir. A file
// that fails is logged and skipped.
func summarizeFolder(ctx context.Context, out io.Writer, s *summarize.Summarizer, dir string) error {
	files, err := ingestion.LoadLocalFiles(dir, ".pdf", ".txt", ".md")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents found in %s", dir)
	}
	for _, f := range files {
		result, err := s.SummarizeFile(ctx, f, useCache)
		if err != nil {
			logger.Warn("skip file", zap.String("file", f), zap.Error(err))
			continue
		}
		fmt.Fprintf(out, "## %s\n\n", result.FileName)
		if err := summarize.StreamText(ctx, out, result.Summary, wordDelay); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	t := newTranscriber(cfg)
	if t == nil {
		return cfg.Validate(config.NeedTranscription)
	}
	text, err := t.Transcribe(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
