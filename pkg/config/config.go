// Package config loads service configuration from STORYBOOK_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Operational floors for cache settings supplied via the environment.
// They guard against pathological values (capacity 0, ttl 0) without
// restricting caches constructed directly in code.
const (
	MinCacheCapacity = 10
	MinCacheTTL      = 60 * time.Second
)

// Config holds the complete service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `env:"STORYBOOK_PORT" envDefault:"8080"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `env:"STORYBOOK_LOG_LEVEL" envDefault:"info"`

	// LogPretty enables human-readable console output instead of JSON.
	LogPretty bool `env:"STORYBOOK_LOG_PRETTY" envDefault:"false"`

	// CacheCapacity is the maximum number of entries in the image cache.
	CacheCapacity int `env:"STORYBOOK_IMAGE_CACHE_CAPACITY" envDefault:"200"`

	// CacheTTL is the lifetime of an image cache entry.
	CacheTTL time.Duration `env:"STORYBOOK_IMAGE_CACHE_TTL" envDefault:"6h"`

	// GeminiAPIKey authenticates Gemini requests (REQUIRED).
	GeminiAPIKey string `env:"STORYBOOK_GEMINI_API_KEY"`

	// GeminiTextModel generates story text.
	GeminiTextModel string `env:"STORYBOOK_GEMINI_TEXT_MODEL" envDefault:"gemini-2.0-flash"`

	// GeminiImageModel generates illustrations when Cloudflare is not configured.
	GeminiImageModel string `env:"STORYBOOK_GEMINI_IMAGE_MODEL" envDefault:"gemini-2.0-flash-preview-image-generation"`

	// Cloudflare AI Gateway settings. The Cloudflare image provider is used
	// when all three identifiers are present.
	CloudflareAccountID  string `env:"STORYBOOK_CF_ACCOUNT_ID"`
	CloudflareGatewayID  string `env:"STORYBOOK_CF_GATEWAY_ID"`
	CloudflareAPIToken   string `env:"STORYBOOK_CF_API_TOKEN"`
	CloudflareImageModel string `env:"STORYBOOK_CF_IMAGE_MODEL" envDefault:"@cf/black-forest-labs/flux-1-schnell"`

	// ElevenLabs text-to-speech settings. Narration is enabled when the API
	// key is present.
	ElevenLabsAPIKey  string `env:"STORYBOOK_ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string `env:"STORYBOOK_ELEVENLABS_VOICE_ID" envDefault:"21m00Tcm4TlvDq8ikWAM"`
	ElevenLabsModel   string `env:"STORYBOOK_ELEVENLABS_MODEL" envDefault:"eleven_multilingual_v2"`

	// RedisURL enables cross-replica provider quota state when set.
	RedisURL string `env:"STORYBOOK_REDIS_URL"`

	// ProviderTimeout bounds a single provider call.
	ProviderTimeout time.Duration `env:"STORYBOOK_PROVIDER_TIMEOUT" envDefault:"60s"`

	// IllustrationConcurrency is the worker count for batch illustration.
	IllustrationConcurrency int `env:"STORYBOOK_ILLUSTRATION_CONCURRENCY" envDefault:"3"`
}

// Load parses the environment, validates required settings and applies the
// cache floors.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("STORYBOOK_GEMINI_API_KEY is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("STORYBOOK_PORT out of range: %d", cfg.Port)
	}

	cfg.clamp()
	return &cfg, nil
}

// clamp raises cache settings to their operational floors.
func (c *Config) clamp() {
	if c.CacheCapacity < MinCacheCapacity {
		c.CacheCapacity = MinCacheCapacity
	}
	if c.CacheTTL < MinCacheTTL {
		c.CacheTTL = MinCacheTTL
	}
	if c.IllustrationConcurrency < 1 {
		c.IllustrationConcurrency = 1
	}
}

// HasCloudflare reports whether the Cloudflare image provider is configured.
func (c *Config) HasCloudflare() bool {
	return c.CloudflareAccountID != "" && c.CloudflareGatewayID != "" && c.CloudflareAPIToken != ""
}

// HasElevenLabs reports whether text-to-speech is configured.
func (c *Config) HasElevenLabs() bool {
	return c.ElevenLabsAPIKey != ""
}

// HasRedis reports whether shared quota state is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}
