package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRejectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storybook_quota_recent_rejections",
		Help: "Number of recent 429 responses per provider",
	}, []string{"provider"})

	quotaBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storybook_quota_blocks_total",
		Help: "Total number of requests refused because a provider was in cooldown",
	}, []string{"provider"})

	quotaThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storybook_quota_throttles_total",
		Help: "Total number of requests throttled after recent provider rejections",
	}, []string{"provider"})
)

// Tracker monitors provider quota signals and gates outgoing requests.
// A Tracker with a nil Redis client allows everything; quota coordination
// is an optional deployment concern, not a correctness one.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a quota tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

func stateKey(provider string) string {
	return redisKeyPrefix + provider
}

// GetState retrieves the quota state for a provider from Redis.
// Returns a zero state when none exists or no Redis client is configured.
func (t *Tracker) GetState(ctx context.Context, provider string) (*State, error) {
	if t.redis == nil {
		return &State{}, nil
	}

	raw, err := t.redis.Get(ctx, stateKey(provider)).Result()
	if err == redis.Nil {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota state for %s: %w", provider, err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("parse quota state for %s: %w", provider, err)
	}
	return &state, nil
}

func (t *Tracker) setState(ctx context.Context, provider string, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal quota state: %w", err)
	}
	if err := t.redis.Set(ctx, stateKey(provider), raw, stateTTL).Err(); err != nil {
		return fmt.Errorf("store quota state for %s: %w", provider, err)
	}
	return nil
}

// RecordResponse updates a provider's quota state from a response outcome.
// A 429 accumulates rejections and, past BlockThreshold or when retryAfter
// is positive, starts a cooldown. Any 2xx clears the rejection count.
func (t *Tracker) RecordResponse(ctx context.Context, provider string, statusCode int, retryAfter time.Duration) error {
	if t.redis == nil {
		return nil
	}

	state, err := t.GetState(ctx, provider)
	if err != nil {
		return err
	}

	now := time.Now()
	switch {
	case statusCode == 429:
		state.RecentRejections++
		if retryAfter > 0 {
			state.CooldownUntil = now.Add(retryAfter)
		} else if state.RecentRejections >= BlockThreshold {
			state.CooldownUntil = now.Add(DefaultCooldown)
		}
	case statusCode >= 200 && statusCode < 300:
		state.RecentRejections = 0
		state.CooldownUntil = time.Time{}
	default:
		// Other errors are not quota signals.
		return nil
	}
	state.LastUpdate = now

	if err := t.setState(ctx, provider, state); err != nil {
		return err
	}

	quotaRejectionsGauge.WithLabelValues(provider).Set(float64(state.RecentRejections))

	if state.InCooldown(now) {
		t.logger.Warn().
			Str("provider", provider).
			Int("recent_rejections", state.RecentRejections).
			Time("cooldown_until", state.CooldownUntil).
			Msg("Provider quota exhausted, entering cooldown")
	} else if statusCode == 429 {
		t.logger.Warn().
			Str("provider", provider).
			Int("recent_rejections", state.RecentRejections).
			Msg("Provider rejected request with 429")
	}

	return nil
}

// ShouldAllowRequest checks whether a request to the provider may proceed.
// Returns false while the provider is in cooldown. After recent rejections
// it sleeps briefly to slow the request rate, then allows the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, provider string) (bool, error) {
	if t.redis == nil {
		return true, nil
	}

	state, err := t.GetState(ctx, provider)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	now := time.Now()
	if state.InCooldown(now) {
		t.logger.Warn().
			Str("provider", provider).
			Dur("cooldown_remaining", state.CooldownRemaining(now)).
			Msg("Provider in cooldown, refusing request")

		quotaBlocksTotal.WithLabelValues(provider).Inc()
		return false, nil
	}

	if state.NeedsThrottling(now) {
		t.logger.Warn().
			Str("provider", provider).
			Int("recent_rejections", state.RecentRejections).
			Msg("Recent provider rejections, throttling request")

		quotaThrottlesTotal.WithLabelValues(provider).Inc()
		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	return true, nil
}
