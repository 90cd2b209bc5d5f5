package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/access"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/config"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/extraction"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/ingestion"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/processing"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/procurement"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/retry"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/sqlqa"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/storage"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/summarize"
)

// closers collects resources opened while wiring a command.
type closers []io.Closer

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

type closerFunc func()

func (f closerFunc) Close() error { f(); return nil }

func retryPolicy(c *config.Config) retry.Policy {
	return retry.Policy{MaxRetries: c.Retry.MaxRetries, Delay: c.Retry.Delay, Logger: logger}
}

func newModel(c *config.Config) (*llm.Model, error) {
	if err := c.Validate(config.NeedLLM); err != nil {
		return nil, err
	}
	client := llm.NewAzureClient(c.LLM.Endpoint, c.LLM.APIKey, c.LLM.APIVersion)
	return llm.NewModel(client, c.LLM.Deployment, llm.WithLogger(logger)), nil
}

// newTranscriber returns nil when Whisper is not configured.
func newTranscriber(c *config.Config) *llm.Transcriber {
	if err := c.Validate(config.NeedTranscription); err != nil {
		logger.Debug("voice input disabled", zap.Error(err))
		return nil
	}
	client := llm.NewAzureClient(c.Transcription.Endpoint, c.Transcription.APIKey, c.Transcription.APIVersion)
	return llm.NewTranscriber(client, c.Transcription.Deployment, logger)
}

func newAssistant(ctx context.Context, c *config.Config, model *llm.Model) (*sqlqa.Assistant, closers, error) {
	if err := c.Validate(config.NeedDatabase); err != nil {
		return nil, nil, err
	}
	var cl closers
	pool, err := storage.OpenPool(ctx, c.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	cl = append(cl, closerFunc(pool.Close))

	db, err := storage.OpenPostgres(c.Database.DSN())
	if err != nil {
		cl.Close()
		return nil, nil, err
	}
	cl = append(cl, db)

	policy := retryPolicy(c)
	dir := access.NewDirectory(access.NewPGCatalog(pool), policy, logger)
	exec := storage.NewExecutor(db, policy, logger, storage.ReadOnly())

	opts := []sqlqa.Option{sqlqa.WithLogger(logger), sqlqa.WithMaxRetries(c.Retry.MaxRetries)}
	if t := newTranscriber(c); t != nil {
		opts = append(opts, sqlqa.WithTranscriber(t))
	}
	a, err := sqlqa.New(model, dir, exec, opts...)
	if err != nil {
		cl.Close()
		return nil, nil, err
	}
	return a, cl, nil
}

func newAnalyzer(c *config.Config, model *llm.Model) *extraction.Analyzer {
	opts := []extraction.Option{extraction.WithLogger(logger)}
	if c.DocIntel.Enabled() {
		di := extraction.NewDocIntelClient(c.DocIntel.Endpoint, c.DocIntel.APIKey, c.DocIntel.APIVersion, c.DocIntel.PollInterval, logger)
		opts = append(opts, extraction.WithDocumentIntelligence(di))
	} else {
		logger.Warn("Document Intelligence not configured, extracting text locally")
	}
	return extraction.NewAnalyzer(model, opts...)
}

func newSummarizer(ctx context.Context, c *config.Config, model *llm.Model) (*summarize.Summarizer, *summarize.RedisCache, error) {
	splitter, err := processing.NewSplitter(c.Summarizer.ChunkSize, c.Summarizer.ChunkOverlap)
	if err != nil {
		return nil, nil, err
	}
	cache := summarize.ConnectRedis(ctx, &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}, c.Redis.CacheTTL, logger)

	s, err := summarize.New(model, processing.NewTiktoken(c.LLM.Deployment, logger),
		summarize.WithSplitter(splitter),
		summarize.WithTokenMax(c.Summarizer.TokenMax),
		summarize.WithCache(cache),
		summarize.WithLogger(logger))
	if err != nil {
		cache.Close()
		return nil, nil, err
	}
	return s, cache, nil
}

func newDrive(c *config.Config) *ingestion.Drive {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return nil
	}
	return ingestion.NewDrive(c.Google.ClientID, c.Google.ClientSecret, c.Google.RedirectURL, logger)
}

// openProcurementDB opens the SQLite database and refreshes it from every
// plant workbook found in the data directory.
func openProcurementDB(ctx context.Context, c *config.Config, store *procurement.Store) (*sqlx.DB, error) {
	db, err := storage.OpenSQLite(c.Procurement.Database)
	if err != nil {
		return nil, err
	}
	plants, err := store.Plants()
	if err != nil {
		db.Close()
		return nil, err
	}
	records, err := store.Load(plants...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := procurement.LoadDatabase(ctx, db, records); err != nil {
		db.Close()
		return nil, fmt.Errorf("load %s: %w", c.Procurement.Database, err)
	}
	logger.Info("procurement database loaded",
		zap.String("path", c.Procurement.Database),
		zap.Int("plants", len(plants)),
		zap.Int("rows", len(records)))
	return db, nil
}

func newChatbot(ctx context.Context, c *config.Config, model *llm.Model, store *procurement.Store) (*procurement.Chatbot, *sqlx.DB, error) {
	db, err := openProcurementDB(ctx, c, store)
	if err != nil {
		return nil, nil, err
	}
	opts := []procurement.ChatOption{procurement.WithLogger(logger)}
	if t := newTranscriber(c); t != nil {
		opts = append(opts, procurement.WithTranscriber(t))
	}
	return procurement.NewChatbot(model, db, opts...), db, nil
}
