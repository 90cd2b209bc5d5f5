package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/httpapi"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/procurement"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve every tool over HTTP",
	Long: `Starts the HTTP API. Tools whose configuration is missing are still
routed but answer 503. Stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	var svc httpapi.Services
	var cl closers
	defer func() { cl.Close() }()

	model, err := newModel(cfg)
	if err != nil {
		logger.Warn("chat model not configured, LLM tools disabled", zap.Error(err))
	} else {
		svc.Extractor = newAnalyzer(cfg, model)
		svc.Analyst = model

		summarizer, cache, err := newSummarizer(ctx, cfg, model)
		if err != nil {
			return err
		}
		cl = append(cl, cache)
		svc.Summarizer, svc.Cache = summarizer, cache

		assistant, acl, err := newAssistant(ctx, cfg, model)
		if err != nil {
			logger.Warn("ERP database unavailable, Q&A disabled", zap.Error(err))
		} else {
			cl = append(cl, acl...)
			svc.Assistant = assistant
		}
	}

	if d := newDrive(cfg); d != nil {
		svc.Drive = d
	}

	store := procurement.NewStore(cfg.Procurement.DataDir, logger)
	svc.Plants = store
	if model != nil {
		chat, db, err := newChatbot(ctx, cfg, model, store)
		if err != nil {
			logger.Warn("procurement chat disabled", zap.Error(err))
		} else {
			cl = append(cl, db)
			svc.Procurement = chat
		}
	}

	server := httpapi.New(svc,
		httpapi.WithLogger(logger),
		httpapi.WithUploadDir(cfg.Summarizer.UploadDir),
		httpapi.WithDefaultUser(cfg.Server.DefaultUser))
	return server.ListenAndServe(ctx, ":"+cfg.Server.Port, cfg.Server.ShutdownTimeout)
}

// commandContext cancels on SIGINT so long model calls can be interrupted.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
