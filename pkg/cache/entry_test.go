package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"fresh", created.Add(time.Minute), false},
		{"just before expiry", created.Add(time.Hour - time.Millisecond), false},
		{"exactly at expiry", created.Add(time.Hour), true},
		{"after expiry", created.Add(2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsExpired(tt.now); got != tt.want {
				t.Errorf("IsExpired(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}

	if got := entry.TTL(created); got != time.Hour {
		t.Errorf("TTL at creation = %v, want %v", got, time.Hour)
	}
	if got := entry.TTL(created.Add(45 * time.Minute)); got != 15*time.Minute {
		t.Errorf("TTL after 45m = %v, want %v", got, 15*time.Minute)
	}
	if got := entry.TTL(created.Add(2 * time.Hour)); got != 0 {
		t.Errorf("TTL after expiry = %v, want 0", got)
	}
}
