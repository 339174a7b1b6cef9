package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Generator and embedder modes.
const (
	ModeLocal = "local"
	ModeAPI   = "api"
)

// Index backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Every variable is read as REGASSIST_<NAME>, falling back to the bare <NAME>.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	Debug          bool          `envconfig:"DEBUG" default:"false"`
	Environment    string        `envconfig:"ENVIRONMENT" default:"development"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"120s"`
	MaxBodyBytes   int64         `envconfig:"MAX_BODY_BYTES" default:"65536"`
	APIKeys        []string      `envconfig:"API_KEYS"`

	SentryDSN        string  `envconfig:"SENTRY_DSN"`
	TracesSampleRate float64 `envconfig:"TRACES_SAMPLE_RATE" default:"1.0"`

	TopK               int    `envconfig:"TOP_K" default:"5"`
	GeneratorMode      string `envconfig:"GENERATOR_MODE" default:"local"`
	EmbeddingMode      string `envconfig:"EMBEDDING_MODE" default:"local"`
	EmbeddingBatchSize int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`

	OllamaURL            string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaChatModel      string `envconfig:"OLLAMA_MODEL" default:"qwen2.5:7b-instruct"`
	OllamaEmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"jeffh/intfloat-multilingual-e5-base"`

	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OpenRouterModel   string `envconfig:"OPENROUTER_MODEL" default:"qwen/qwen-2.5-7b-instruct"`
	GenerationRPM     int    `envconfig:"GENERATION_RPM" default:"0"`

	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string `envconfig:"OPENAI_BASE_URL"`
	OpenAIEmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions  int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`

	MaxTokens     int     `envconfig:"MAX_TOKENS" default:"512"`
	Temperature   float64 `envconfig:"TEMPERATURE" default:"0.3"`
	TopP          float64 `envconfig:"TOP_P" default:"0.9"`
	RepeatPenalty float64 `envconfig:"REPEAT_PENALTY" default:"1.1"`

	IndexDir          string `envconfig:"INDEX_DIR" default:"data/index"`
	IndexBackend      string `envconfig:"INDEX_BACKEND" default:"file"`
	IndexKeepVersions int    `envconfig:"INDEX_KEEP_VERSIONS" default:"3"`
	CorpusPath        string `envconfig:"CORPUS_PATH" default:"data/sharif_rules_chunks.json"`
	SectionPattern    string `envconfig:"SECTION_PATTERN"`

	RulesIndexURL   string        `envconfig:"RULES_INDEX_URL" default:"https://ac.sharif.edu/rules/"`
	CrawlRate       float64       `envconfig:"CRAWL_RATE" default:"2"`
	CrawlTimeout    time.Duration `envconfig:"CRAWL_TIMEOUT" default:"30s"`
	CrawlUserAgent  string        `envconfig:"CRAWL_USER_AGENT" default:"regassist-crawler/1.0"`
	RebuildInterval time.Duration `envconfig:"REBUILD_INTERVAL" default:"24h"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket       string `envconfig:"S3_BUCKET" default:"regassist-index"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix       string `envconfig:"S3_PREFIX" default:"index"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("REGASSIST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot start with.
func (c *Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("invalid config: TOP_K must be positive, got %d", c.TopK)
	}
	if c.GeneratorMode != ModeLocal && c.GeneratorMode != ModeAPI {
		return fmt.Errorf("invalid config: GENERATOR_MODE must be %q or %q, got %q", ModeLocal, ModeAPI, c.GeneratorMode)
	}
	if c.EmbeddingMode != ModeLocal && c.EmbeddingMode != ModeAPI {
		return fmt.Errorf("invalid config: EMBEDDING_MODE must be %q or %q, got %q", ModeLocal, ModeAPI, c.EmbeddingMode)
	}
	if c.IndexBackend != BackendFile && c.IndexBackend != BackendPostgres {
		return fmt.Errorf("invalid config: INDEX_BACKEND must be %q or %q, got %q", BackendFile, BackendPostgres, c.IndexBackend)
	}
	if c.IndexBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("invalid config: INDEX_BACKEND=%s requires DATABASE_URL", BackendPostgres)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("invalid config: EMBEDDING_BATCH_SIZE must be positive, got %d", c.EmbeddingBatchSize)
	}
	if c.CrawlRate <= 0 {
		return fmt.Errorf("invalid config: CRAWL_RATE must be positive, got %v", c.CrawlRate)
	}
	if c.SectionPattern != "" {
		if _, err := regexp.Compile(c.SectionPattern); err != nil {
			return fmt.Errorf("invalid config: SECTION_PATTERN: %w", err)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// AuthEnabled reports whether the HTTP API requires a bearer key.
func (c *Config) AuthEnabled() bool {
	return len(c.APIKeys) > 0
}
