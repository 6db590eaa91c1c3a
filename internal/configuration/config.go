// Package configuration loads engine settings from the environment, with a
// .env file picked up in development. Every knob has a production default;
// only the OpenRouter API key is mandatory.
package configuration

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/llm"
)

// Defaults.
const (
	DefaultChairmanModel = "google/gemini-3-pro-preview"
	DefaultTitleModel    = "google/gemini-2.5-flash"
	DefaultHTTPAddr      = ":8080"
	DefaultMongoURI      = "mongodb://localhost:27017"
	DefaultMongoDatabase = "council"
	DefaultTemporalHost  = "127.0.0.1:7233"
	DefaultTaskQueue     = "council-exchange"

	DefaultQuoteTimeout  = 30 * time.Second
	DefaultBidderTimeout = 120 * time.Second
	DefaultCacheTTL      = 24 * time.Hour

	DefaultRequestsPerSecond = 10
	DefaultBurst             = 20
)

// ErrMissingAPIKey indicates no OpenRouter credential in the environment.
var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is required")

// Config holds the complete engine configuration.
type Config struct {
	// OpenRouter access.
	OpenRouterAPIKey   string
	OpenRouterEndpoint string
	Referer            string
	AppTitle           string

	// Council shape.
	ChairmanModel string
	TitleModel    string
	CouncilSize   int
	PenaltyRate   float64

	// ValueBasisUSD, when positive, fixes every exchange's value basis
	// instead of deriving it from the winning quotes.
	ValueBasisUSD float64

	// Per-call deadlines.
	QuoteTimeout  time.Duration
	BidderTimeout time.Duration

	// Provider rate limiting and response caching.
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration

	// Infrastructure.
	HTTPAddr         string
	MongoURI         string
	MongoDatabase    string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	TemporalHostPort string
	TaskQueue        string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterEndpoint: envString("OPENROUTER_ENDPOINT", llm.DefaultOpenRouterEndpoint),
		Referer:            os.Getenv("OPENROUTER_REFERER"),
		AppTitle:           envString("OPENROUTER_APP_TITLE", "go-council"),

		ChairmanModel: envString("COUNCIL_CHAIRMAN_MODEL", DefaultChairmanModel),
		TitleModel:    envString("COUNCIL_TITLE_MODEL", DefaultTitleModel),
		CouncilSize:   envInt("COUNCIL_SIZE", domain.DefaultCouncilSize),
		PenaltyRate:   envFloat("COUNCIL_PENALTY_RATE", domain.DefaultPenaltyRate),
		ValueBasisUSD: envFloat("COUNCIL_VALUE_BASIS_USD", 0),

		QuoteTimeout:  envDuration("COUNCIL_QUOTE_TIMEOUT", DefaultQuoteTimeout),
		BidderTimeout: envDuration("COUNCIL_BIDDER_TIMEOUT", DefaultBidderTimeout),

		RequestsPerSecond: envFloat("LLM_REQUESTS_PER_SECOND", DefaultRequestsPerSecond),
		Burst:             envInt("LLM_BURST", DefaultBurst),
		CacheTTL:          envDuration("LLM_CACHE_TTL", DefaultCacheTTL),

		HTTPAddr:         envString("COUNCIL_HTTP_ADDR", DefaultHTTPAddr),
		MongoURI:         envString("MONGO_URI", DefaultMongoURI),
		MongoDatabase:    envString("MONGO_DB", DefaultMongoDatabase),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          envInt("REDIS_DB", 0),
		TemporalHostPort: envString("TEMPORAL_HOSTPORT", DefaultTemporalHost),
		TaskQueue:        envString("COUNCIL_TASK_QUEUE", DefaultTaskQueue),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.OpenRouterAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.CouncilSize <= 0 {
		c.CouncilSize = domain.DefaultCouncilSize
	}
	if c.PenaltyRate <= 0 || c.PenaltyRate > 1 {
		c.PenaltyRate = domain.DefaultPenaltyRate
	}
	return nil
}

// LLMConfig derives the provider client configuration.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Endpoint:          c.OpenRouterEndpoint,
		APIKey:            c.OpenRouterAPIKey,
		Referer:           c.Referer,
		AppTitle:          c.AppTitle,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		CacheTTL:          c.CacheTTL,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
