// Package config loads the gateway's runtime configuration from a YAML file layered
// with environment overrides, adapted from the teacher's config.Load/applyEnvOverrides
// pattern with its FAQ/UVAdvisor-scoped sections replaced by the gateway's domain and
// ambient stacks.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the gateway.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Tokenizer  TokenizerConfig  `yaml:"tokenizer"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Storage    StorageConfig    `yaml:"storage"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// AuthConfig controls bearer-token authentication of inbound client requests.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwtSecret"`
	AccessTokenTTL  time.Duration `yaml:"accessTokenTtl"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTtl"`
}

// ProviderConfig is one LLM backend's credentials and endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
}

// ProvidersConfig holds one entry per supported LLM provider. A provider with an empty
// APIKey is simply not registered at startup (graceful credential-absence degradation).
type ProvidersConfig struct {
	OpenAI     ProviderConfig `yaml:"openai"`
	ChatGPT    ProviderConfig `yaml:"chatgpt"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
	Groq       ProviderConfig `yaml:"groq"`
	XAI        ProviderConfig `yaml:"xai"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	Gemini     ProviderConfig `yaml:"gemini"`

	DefaultProvider string `yaml:"defaultProvider"`
	DefaultModel    string `yaml:"defaultModel"`
	ReasonerMode    string `yaml:"reasonerMode"`
	TopKModel       string `yaml:"topKModel"`
	MultimodalModel string `yaml:"multimodalModel"`
}

// EmbeddingConfig controls C4.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// TokenizerConfig controls C5.
type TokenizerConfig struct {
	DefaultProvider string `yaml:"defaultProvider"`
}

// ChunkerConfig controls C3 defaults.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunkSize"`
	ChunkOverlap int `yaml:"chunkOverlap"`
}

// RetrievalConfig controls C9/C10.
type RetrievalConfig struct {
	AdaptiveTopK     bool `yaml:"adaptiveTopK"`
	ContextWindow    int  `yaml:"contextWindow"`
	UseSummarizer    bool `yaml:"useSummarizer"`
	EmbedConcurrency int  `yaml:"embedConcurrency"`
}

// EnrichmentConfig controls C8's external tool adapters.
type EnrichmentConfig struct {
	PreferredSearchProvider string `yaml:"preferredSearchProvider"`
	TavilyAPIKey            string `yaml:"tavilyApiKey"`
	LinkupAPIKey            string `yaml:"linkupApiKey"`
	FirecrawlAPIKey         string `yaml:"firecrawlApiKey"`
}

// StorageConfig controls the object store backing uploaded file bytes. When S3.Bucket
// is set, uploads go to the S3-compatible bucket instead of the local upload directory.
type StorageConfig struct {
	UploadDir string   `yaml:"uploadDir"`
	MaxFileMB int      `yaml:"maxFileMb"`
	S3        S3Config `yaml:"s3"`
}

// S3Config holds credentials for an S3-compatible object store (e.g. Cloudflare R2,
// MinIO). Left zero-valued to stay on the local filesystem store.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// RedisConfig contains connection information for cache storage.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// WorkerConfig toggles background ingestion processing.
type WorkerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_READ_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_WRITE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_ACCESS_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.AccessTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_REFRESH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.RefreshTokenTTL = parsed
		}
	}

	overrideProvider(&cfg.Providers.OpenAI, "OPENAI")
	overrideProvider(&cfg.Providers.ChatGPT, "CHATGPT")
	overrideProvider(&cfg.Providers.OpenRouter, "OPENROUTER")
	overrideProvider(&cfg.Providers.Groq, "GROQ")
	overrideProvider(&cfg.Providers.XAI, "XAI")
	overrideProvider(&cfg.Providers.Anthropic, "ANTHROPIC")
	overrideProvider(&cfg.Providers.Gemini, "GEMINI")

	if v := os.Getenv("PROVIDERS_DEFAULT_PROVIDER"); v != "" {
		cfg.Providers.DefaultProvider = v
	}
	if v := os.Getenv("PROVIDERS_DEFAULT_MODEL"); v != "" {
		cfg.Providers.DefaultModel = v
	}
	if v := os.Getenv("PROVIDERS_REASONER_MODE"); v != "" {
		cfg.Providers.ReasonerMode = v
	}

	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = parsed
		}
	}

	if v := os.Getenv("CHUNKER_CHUNK_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.ChunkSize = parsed
		}
	}
	if v := os.Getenv("CHUNKER_CHUNK_OVERLAP"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.ChunkOverlap = parsed
		}
	}

	if v := os.Getenv("RETRIEVAL_ADAPTIVE_TOPK"); v != "" {
		cfg.Retrieval.AdaptiveTopK = parseBool(v)
	}
	if v := os.Getenv("RETRIEVAL_CONTEXT_WINDOW"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.ContextWindow = parsed
		}
	}
	if v := os.Getenv("RETRIEVAL_EMBED_CONCURRENCY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.EmbedConcurrency = parsed
		}
	}

	if v := os.Getenv("ENRICHMENT_PREFERRED_SEARCH_PROVIDER"); v != "" {
		cfg.Enrichment.PreferredSearchProvider = v
	}
	if v := os.Getenv("ENRICHMENT_TAVILY_API_KEY"); v != "" {
		cfg.Enrichment.TavilyAPIKey = v
	}
	if v := os.Getenv("ENRICHMENT_LINKUP_API_KEY"); v != "" {
		cfg.Enrichment.LinkupAPIKey = v
	}
	if v := os.Getenv("ENRICHMENT_FIRECRAWL_API_KEY"); v != "" {
		cfg.Enrichment.FirecrawlAPIKey = v
	}

	if v := os.Getenv("STORAGE_UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	if v := os.Getenv("STORAGE_MAX_FILE_MB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxFileMB = parsed
		}
	}
	if v := os.Getenv("STORAGE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("STORAGE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("STORAGE_S3_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("STORAGE_S3_SECRET_KEY"); v != "" {
		cfg.Storage.S3.SecretKey = v
	}

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("WORKER_ENABLED"); v != "" {
		cfg.Worker.Enabled = parseBool(v)
	}
}

func overrideProvider(p *ProviderConfig, prefix string) {
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		p.APIKey = v
	}
	if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
		p.BaseURL = v
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			AllowedOrigins: []string{"*"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude:     []string{"/api/v1/chat/completions"},
			},
		},
		Auth: AuthConfig{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Providers: ProvidersConfig{
			DefaultProvider: "openai",
			DefaultModel:    "gpt-4o-mini",
			ReasonerMode:    "plain",
			TopKModel:       "gpt-4o-mini",
			MultimodalModel: "gpt-4o-mini",
			OpenAI:          ProviderConfig{BaseURL: "https://api.openai.com/v1"},
			ChatGPT:         ProviderConfig{BaseURL: "https://api.openai.com/v1"},
			OpenRouter:      ProviderConfig{BaseURL: "https://openrouter.ai/api/v1"},
			Groq:            ProviderConfig{BaseURL: "https://api.groq.com/openai/v1"},
			XAI:             ProviderConfig{BaseURL: "https://api.x.ai/v1"},
			Anthropic:       ProviderConfig{BaseURL: ""},
			Gemini:          ProviderConfig{BaseURL: ""},
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Tokenizer: TokenizerConfig{DefaultProvider: "openai"},
		Chunker: ChunkerConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{
			AdaptiveTopK:     true,
			ContextWindow:    64_000,
			UseSummarizer:    true,
			EmbedConcurrency: 4,
		},
		Enrichment: EnrichmentConfig{
			PreferredSearchProvider: "tavily",
		},
		Storage: StorageConfig{
			UploadDir: "./uploads",
			MaxFileMB: 256,
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
			MinConns: 2,
		},
		Worker: WorkerConfig{Enabled: true},
	}
}

// Validate ensures the configuration is safe to use. Missing provider credentials are
// not a validation error: the provider is simply left unregistered at startup.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret cannot be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("auth.accessTokenTtl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth.refreshTokenTtl must be positive")
	}
	if c.Providers.DefaultProvider == "" {
		return errors.New("providers.defaultProvider cannot be empty")
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return errors.New("embedding.model cannot be empty")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding.dimensions must be positive")
	}
	if c.Chunker.ChunkSize <= 0 {
		return errors.New("chunker.chunkSize must be positive")
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return errors.New("chunker.chunkOverlap must be non-negative and less than chunkSize")
	}
	if c.Retrieval.ContextWindow <= 0 {
		return errors.New("retrieval.contextWindow must be positive")
	}
	if c.Retrieval.EmbedConcurrency <= 0 {
		return errors.New("retrieval.embedConcurrency must be positive")
	}
	if c.Storage.MaxFileMB <= 0 {
		return errors.New("storage.maxFileMb must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr cannot be empty when redis is enabled")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var result []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val != "" {
			result = append(result, val)
		}
	}
	return result
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}
