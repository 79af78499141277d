//go:build integration

// Package integration exercises the image generation flow end to end:
// provider client, retry behavior, cache, and quota tracking against a
// mock provider and a real Redis container.
package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fableforge/storybook-backend/internal/testutil"
	"github.com/fableforge/storybook-backend/pkg/cache"
	"github.com/fableforge/storybook-backend/pkg/provider"
	"github.com/fableforge/storybook-backend/pkg/quota"
)

const imageModel = "@cf/black-forest-labs/flux-1-schnell"

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newCloudflare(t *testing.T, baseURL string) *provider.Cloudflare {
	t.Helper()

	cf, err := provider.NewCloudflare(provider.CloudflareConfig{
		AccountID: "test-account",
		GatewayID: "test-gateway",
		APIToken:  "test-token",
		Model:     imageModel,
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create Cloudflare client: %v", err)
	}
	return cf
}

func TestImageFlow_GenerateThenCache(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	imageBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	mock.SetResponse(
		"/test-account/test-gateway/workers-ai/"+imageModel,
		testutil.NewImageResponse(imageBytes, "image/jpeg"),
	)

	cf := newCloudflare(t, mock.URL())
	imageCache := cache.New(10, time.Hour)
	ctx := context.Background()

	prompt := "a fox sailing a paper boat"
	key := cache.ComputeKey(cf.ModelID(), prompt)

	// Cold cache: request hits the provider.
	if _, err := imageCache.Get(key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("Get() on empty cache = %v, want ErrCacheMiss", err)
	}

	result, err := cf.GenerateImage(ctx, prompt)
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if result.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want image/jpeg", result.MimeType)
	}

	if err := imageCache.Set(key, result.ImageBase64, result.MimeType, result.ModelID); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Warm cache: no provider round trip.
	before := mock.RequestCount()
	entry, err := imageCache.Get(key)
	if err != nil {
		t.Fatalf("Get() after Set() error = %v", err)
	}
	if entry.Payload != result.ImageBase64 {
		t.Error("Cached payload differs from generated payload")
	}
	if entry.ModelID != imageModel {
		t.Errorf("Cached ModelID = %q, want %q", entry.ModelID, imageModel)
	}
	if mock.RequestCount() != before {
		t.Errorf("Provider requests = %d, want %d (cache hit must not call provider)", mock.RequestCount(), before)
	}

	// Equivalent prompt spacing resolves to the same entry.
	sameKey := cache.ComputeKey(cf.ModelID(), "  a  fox sailing\na paper boat ")
	if sameKey != key {
		t.Error("Normalized prompts should produce the same cache key")
	}
}

func TestImageFlow_RetryOnServerError(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	imageBytes := []byte{0x89, 0x50, 0x4E, 0x47}
	mock.SetHandler(
		"/test-account/test-gateway/workers-ai/"+imageModel,
		testutil.FailThenSucceed(1,
			testutil.NewServerErrorResponse(),
			testutil.NewImageResponse(imageBytes, "image/png"),
		),
	)

	cf := newCloudflare(t, mock.URL())

	result, err := cf.GenerateImage(context.Background(), "a fox")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v, want success after retry", err)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", result.MimeType)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("Provider requests = %d, want 2", mock.RequestCount())
	}
}

func TestImageFlow_QuotaCooldownAcrossInstances(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	// One instance records quota exhaustion with a Retry-After hint.
	writer := quota.NewTracker(redisClient, zerolog.Nop())
	if err := writer.RecordResponse(ctx, "cloudflare", 429, 60*time.Second); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	// Another instance sharing the Redis sees the cooldown.
	reader := quota.NewTracker(redisClient, zerolog.Nop())
	allowed, err := reader.ShouldAllowRequest(ctx, "cloudflare")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false across instances during cooldown")
	}

	// Success on either instance lifts the cooldown for both.
	if err := reader.RecordResponse(ctx, "cloudflare", 200, 0); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}
	allowed, err = writer.ShouldAllowRequest(ctx, "cloudflare")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false, want true after success")
	}
}

func TestImageFlow_RateLimitedProviderEntersCooldown(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetResponse(
		"/test-account/test-gateway/workers-ai/"+imageModel,
		testutil.NewRateLimitResponse(30),
	)

	cf := newCloudflare(t, mock.URL())
	tracker := quota.NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	_, err := cf.GenerateImage(ctx, "a fox")
	if err == nil {
		t.Fatal("GenerateImage() expected error from rate limited provider")
	}

	// The advertised window travels with the error into the tracker.
	if got := provider.RetryAfter(err); got != 30*time.Second {
		t.Errorf("RetryAfter(err) = %v, want 30s", got)
	}
	if rerr := tracker.RecordResponse(ctx, "cloudflare", provider.StatusCode(err), provider.RetryAfter(err)); rerr != nil {
		t.Fatalf("RecordResponse() error = %v", rerr)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx, "cloudflare")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false after recorded 429")
	}

	state, err := tracker.GetState(ctx, "cloudflare")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	remaining := state.CooldownRemaining(time.Now())
	if remaining <= 0 || remaining > 30*time.Second {
		t.Errorf("CooldownRemaining = %v, want within the advertised 30s window", remaining)
	}
}
