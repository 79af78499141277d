// Command storybook-server runs the storybook backend: an HTTP API that
// generates branching children's stories, illustrations, and narration by
// proxying generative AI providers behind an in-memory image cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fableforge/storybook-backend/pkg/cache"
	"github.com/fableforge/storybook-backend/pkg/config"
	"github.com/fableforge/storybook-backend/pkg/logging"
	"github.com/fableforge/storybook-backend/pkg/provider"
	"github.com/fableforge/storybook-backend/pkg/quota"
	"github.com/fableforge/storybook-backend/pkg/story"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build server")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Int("cache_capacity", cfg.CacheCapacity).
			Dur("cache_ttl", cfg.CacheTTL).
			Bool("cloudflare", cfg.HasCloudflare()).
			Bool("elevenlabs", cfg.HasElevenLabs()).
			Bool("redis", cfg.HasRedis()).
			Msg("Starting storybook server")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	srv.close()
}

// server holds the wired application components.
type server struct {
	cfg    *config.Config
	logger zerolog.Logger

	imageCache  *cache.Cache
	stories     provider.StoryGenerator
	images      provider.ImageGenerator
	imagesName  string
	speech      provider.SpeechSynthesizer
	quota       *quota.Tracker
	illustrator *story.Illustrator
	redisClient *redis.Client
}

// newServer wires the application components from configuration.
func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	logger := logging.NewLogger("wiring")

	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")
	} else {
		logger.Info().Msg("No Redis configured, quota tracking disabled")
	}

	gemini, err := provider.NewGemini(ctx, provider.GeminiConfig{
		APIKey:     cfg.GeminiAPIKey,
		TextModel:  cfg.GeminiTextModel,
		ImageModel: cfg.GeminiImageModel,
	}, logging.NewLogger("gemini"))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	// Cloudflare Workers AI is the preferred image backend when configured;
	// Gemini image generation is the fallback.
	var images provider.ImageGenerator = gemini
	imagesName := "gemini"
	if cfg.HasCloudflare() {
		cf, err := provider.NewCloudflare(provider.CloudflareConfig{
			AccountID: cfg.CloudflareAccountID,
			GatewayID: cfg.CloudflareGatewayID,
			APIToken:  cfg.CloudflareAPIToken,
			Model:     cfg.CloudflareImageModel,
			Timeout:   cfg.ProviderTimeout,
		}, logging.NewLogger("cloudflare"))
		if err != nil {
			return nil, fmt.Errorf("create cloudflare client: %w", err)
		}
		images = cf
		imagesName = "cloudflare"
	}

	var speech provider.SpeechSynthesizer
	if cfg.HasElevenLabs() {
		el, err := provider.NewElevenLabs(provider.ElevenLabsConfig{
			APIKey:         cfg.ElevenLabsAPIKey,
			DefaultVoiceID: cfg.ElevenLabsVoiceID,
			Model:          cfg.ElevenLabsModel,
			Timeout:        cfg.ProviderTimeout,
		}, logging.NewLogger("elevenlabs"))
		if err != nil {
			return nil, fmt.Errorf("create elevenlabs client: %w", err)
		}
		speech = el
	}

	imageCache := cache.New(cfg.CacheCapacity, cfg.CacheTTL)
	tracker := quota.NewTracker(redisClient, logging.NewLogger("quota"))

	srv := &server{
		cfg:         cfg,
		logger:      logging.NewLogger("api"),
		imageCache:  imageCache,
		stories:     gemini,
		images:      images,
		imagesName:  imagesName,
		speech:      speech,
		quota:       tracker,
		redisClient: redisClient,
	}
	srv.illustrator = story.NewIllustrator(
		&cachingImageGenerator{srv: srv},
		story.IllustratorConfig{
			MaxConcurrency: cfg.IllustrationConcurrency,
			Timeout:        cfg.ProviderTimeout,
		},
		logging.NewLogger("illustrator"),
	)
	return srv, nil
}

func (s *server) close() {
	if s.redisClient != nil {
		s.redisClient.Close()
	}
}

// routes builds the HTTP mux.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/story", s.handleStory)
	mux.HandleFunc("/api/image", s.handleImage)
	mux.HandleFunc("/api/tts", s.handleTTS)
	return mux
}
