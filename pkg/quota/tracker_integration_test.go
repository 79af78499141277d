//go:build integration

package quota

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_GetState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.Nop()
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	// Empty Redis yields a zero state.
	state, err := tracker.GetState(ctx, "gemini")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.RecentRejections != 0 {
		t.Errorf("Default RecentRejections = %d, want 0", state.RecentRejections)
	}
	if state.InCooldown(time.Now()) {
		t.Error("Default state should not be in cooldown")
	}

	// Record a rejection and read it back.
	if err := tracker.RecordResponse(ctx, "gemini", 429, 0); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	state, err = tracker.GetState(ctx, "gemini")
	if err != nil {
		t.Fatalf("GetState() after update error = %v", err)
	}
	if state.RecentRejections != 1 {
		t.Errorf("RecentRejections = %d, want 1", state.RecentRejections)
	}

	// State is per provider.
	other, err := tracker.GetState(ctx, "cloudflare")
	if err != nil {
		t.Fatalf("GetState() for other provider error = %v", err)
	}
	if other.RecentRejections != 0 {
		t.Errorf("Other provider RecentRejections = %d, want 0", other.RecentRejections)
	}
}

func TestTracker_Integration_CooldownViaRetryAfter(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	// A Retry-After hint starts a cooldown immediately.
	if err := tracker.RecordResponse(ctx, "elevenlabs", 429, 90*time.Second); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx, "elevenlabs")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false during cooldown")
	}

	state, err := tracker.GetState(ctx, "elevenlabs")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	remaining := state.CooldownRemaining(time.Now())
	if remaining < 80*time.Second || remaining > 90*time.Second {
		t.Errorf("CooldownRemaining = %v, want approximately 90s", remaining)
	}
}

func TestTracker_Integration_CooldownViaThreshold(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	// Rejections below the block threshold do not start a cooldown.
	for i := 0; i < BlockThreshold-1; i++ {
		if err := tracker.RecordResponse(ctx, "gemini", 429, 0); err != nil {
			t.Fatalf("RecordResponse() error = %v", err)
		}
	}

	state, err := tracker.GetState(ctx, "gemini")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.InCooldown(time.Now()) {
		t.Error("Provider in cooldown before reaching block threshold")
	}

	// The threshold rejection does.
	if err := tracker.RecordResponse(ctx, "gemini", 429, 0); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx, "gemini")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false after block threshold")
	}
}

func TestTracker_Integration_SuccessResetsState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < BlockThreshold; i++ {
		if err := tracker.RecordResponse(ctx, "gemini", 429, 0); err != nil {
			t.Fatalf("RecordResponse() error = %v", err)
		}
	}

	// A success clears rejections and ends the cooldown.
	if err := tracker.RecordResponse(ctx, "gemini", 200, 0); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	state, err := tracker.GetState(ctx, "gemini")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.RecentRejections != 0 {
		t.Errorf("RecentRejections = %d, want 0 after success", state.RecentRejections)
	}
	if state.InCooldown(time.Now()) {
		t.Error("Provider still in cooldown after success")
	}

	allowed, err := tracker.ShouldAllowRequest(ctx, "gemini")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false, want true after reset")
	}
}

func TestTracker_Integration_NonQuotaStatusIgnored(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	if err := tracker.RecordResponse(ctx, "gemini", 429, 0); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	// 5xx is a provider failure, not a quota signal.
	if err := tracker.RecordResponse(ctx, "gemini", 500, 0); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	state, err := tracker.GetState(ctx, "gemini")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.RecentRejections != 1 {
		t.Errorf("RecentRejections = %d, want 1 (unchanged by 500)", state.RecentRejections)
	}
}
