package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings for every tool in the suite.
type Config struct {
	LLM           LLMConfig
	Transcription TranscriptionConfig
	DocIntel      DocIntelConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Retry         RetryConfig
	Summarizer    SummarizerConfig
	Procurement   ProcurementConfig
	Google        GoogleConfig
	Server        ServerConfig
}

// LLMConfig points at the Azure OpenAI chat deployment.
type LLMConfig struct {
	APIKey     string `env:"AZUREOPENAI_API_KEY"`
	Endpoint   string `env:"AZUREOPENAI_ENDPOINT"`
	APIVersion string `env:"AZUREOPENAI_API_VERSION" envDefault:"2024-10-21"`
	Deployment string `env:"DEPLOYMENT_NAME" envDefault:"gpt-4o-mini"`
}

// TranscriptionConfig points at the Whisper deployment.
type TranscriptionConfig struct {
	APIKey     string `env:"OPENAI_API_KEY"`
	Endpoint   string `env:"OPENAI_ENDPOINT"`
	APIVersion string `env:"OPENAI_API_VERSION" envDefault:"2024-06-01"`
	Deployment string `env:"OPENAI_DEPLOYMENT_NAME" envDefault:"whisper-1"`
}

type DocIntelConfig struct {
	APIKey       string        `env:"DOCUMENTINTELLIGENCE_API_KEY"`
	Endpoint     string        `env:"DOCUMENTINTELLIGENCE_ENDPOINT"`
	APIVersion   string        `env:"DOCUMENTINTELLIGENCE_API_VERSION" envDefault:"2024-11-30"`
	PollInterval time.Duration `env:"DOCUMENTINTELLIGENCE_POLL_INTERVAL" envDefault:"1s"`
}

// Enabled reports whether the hosted OCR service is configured.
func (c DocIntelConfig) Enabled() bool {
	return c.APIKey != "" && c.Endpoint != ""
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_NAME"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL built from
// the individual DB_* variables.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"168h"`
}

type RetryConfig struct {
	MaxRetries int           `env:"DB_MAX_RETRIES" envDefault:"3"`
	Delay      time.Duration `env:"DB_RETRY_DELAY" envDefault:"1s"`
}

type SummarizerConfig struct {
	ChunkSize    int    `env:"CHUNK_SIZE" envDefault:"1500"`
	ChunkOverlap int    `env:"CHUNK_OVERLAP" envDefault:"200"`
	TokenMax     int    `env:"TOKEN_MAX" envDefault:"1500"`
	UploadDir    string `env:"UPLOAD_DIR" envDefault:"datasets"`
}

type ProcurementConfig struct {
	DataDir  string `env:"PROCUREMENT_DATA_DIR" envDefault:"datasets"`
	Database string `env:"PROCUREMENT_DB" envDefault:"procurement.db"`
}

// GoogleConfig holds the OAuth2 client used to pull documents from Drive.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/oauth/callback"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DefaultUser     string        `env:"QA_USER" envDefault:"guest"`
}

// Load reads an optional .env file and parses the environment. A missing
// .env is not an error; hosted deployments inject variables directly.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Requirement names a config group a command depends on.
type Requirement int

const (
	NeedLLM Requirement = iota
	NeedTranscription
	NeedDatabase
)

// Validate checks that the groups needed by a command are populated.
func (c *Config) Validate(needs ...Requirement) error {
	var missing []string
	for _, n := range needs {
		switch n {
		case NeedLLM:
			if c.LLM.APIKey == "" {
				missing = append(missing, "AZUREOPENAI_API_KEY")
			}
			if c.LLM.Endpoint == "" {
				missing = append(missing, "AZUREOPENAI_ENDPOINT")
			}
		case NeedTranscription:
			if c.Transcription.APIKey == "" {
				missing = append(missing, "OPENAI_API_KEY")
			}
			if c.Transcription.Endpoint == "" {
				missing = append(missing, "OPENAI_ENDPOINT")
			}
		case NeedDatabase:
			if c.Database.URL == "" && c.Database.Name == "" {
				missing = append(missing, "DATABASE_URL or DB_NAME")
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	if c.Summarizer.ChunkOverlap >= c.Summarizer.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			c.Summarizer.ChunkOverlap, c.Summarizer.ChunkSize)
	}
	return nil
}
