package cache

import "time"

// Entry represents one cached generation result.
type Entry struct {
	// Payload is the generated content, base64-encoded. The cache treats it
	// as an opaque string and never parses it.
	Payload string

	// ContentType is the MIME type of the decoded payload (e.g. "image/png").
	ContentType string

	// ModelID is the model that produced the payload, echoed in responses.
	ModelID string

	// CreatedAt is when the entry was inserted.
	CreatedAt time.Time

	// ExpiresAt is when the entry becomes stale. Always CreatedAt plus the
	// cache TTL.
	ExpiresAt time.Time
}

// IsExpired reports whether the entry is stale at the given time.
// An entry is stale once the time reaches ExpiresAt.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTL returns the remaining lifetime of the entry at the given time.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
