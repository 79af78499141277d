// Package quota implements provider quota tracking and request gating.
// Generative AI providers signal exhaustion with 429 responses and an
// optional Retry-After header; the tracker records those signals in Redis
// so every server instance backs off together instead of burning quota on
// requests that are already doomed.
package quota

import (
	"time"
)

// Redis key layout for quota state. One JSON document per provider.
const (
	redisKeyPrefix = "storybook:quota:"

	// stateTTL bounds how long stale state lingers in Redis. A provider
	// that stops returning 429s is forgotten after this long.
	stateTTL = 10 * time.Minute
)

// Thresholds for quota decisions.
const (
	// ThrottleThreshold applies throttling once this many recent
	// rejections have been seen. Throttling slows the request rate
	// without refusing work.
	ThrottleThreshold = 1

	// BlockThreshold puts the provider in cooldown once this many recent
	// rejections accumulate without an intervening success.
	BlockThreshold = 3

	// DefaultCooldown is the cooldown applied when the provider does not
	// say how long to wait.
	DefaultCooldown = 30 * time.Second
)

// State is the quota state of a single provider, shared across server
// instances via Redis.
type State struct {
	// RecentRejections counts 429 responses since the last success.
	RecentRejections int `json:"recent_rejections"`

	// CooldownUntil is the instant requests to the provider may resume.
	// Zero when the provider is not in cooldown.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// InCooldown reports whether requests should be refused at the given instant.
func (s *State) InCooldown(now time.Time) bool {
	return !s.CooldownUntil.IsZero() && now.Before(s.CooldownUntil)
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *State) NeedsThrottling(now time.Time) bool {
	return !s.InCooldown(now) && s.RecentRejections >= ThrottleThreshold
}

// CooldownRemaining returns the time left in cooldown, or 0 when none.
func (s *State) CooldownRemaining(now time.Time) time.Duration {
	if !s.InCooldown(now) {
		return 0
	}
	return s.CooldownUntil.Sub(now)
}
