package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fableforge/storybook-backend/internal/testutil"
	"github.com/rs/zerolog"
)

func newTestElevenLabs(t *testing.T, mock *testutil.MockProvider) *ElevenLabs {
	t.Helper()

	el, err := NewElevenLabs(ElevenLabsConfig{
		APIKey:         "el-key",
		DefaultVoiceID: "voice-default",
		Model:          "eleven_multilingual_v2",
		BaseURL:        mock.URL(),
		Timeout:        5 * time.Second,
		Retry:          fastRetryConfig(2),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewElevenLabs failed: %v", err)
	}
	return el
}

func TestElevenLabs_Synthesize(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	audio := []byte("mp3-bytes")
	mock.SetResponse("/v1/text-to-speech/voice-default", testutil.NewAudioResponse(audio))

	el := newTestElevenLabs(t, mock)
	result, err := el.Synthesize(context.Background(), "Once upon a time", "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if result.AudioBase64 != base64.StdEncoding.EncodeToString(audio) {
		t.Error("AudioBase64 does not round-trip the body")
	}
	if result.MimeType != "audio/mpeg" {
		t.Errorf("MimeType = %q, want audio/mpeg", result.MimeType)
	}
	if result.ModelID != "eleven_multilingual_v2" {
		t.Errorf("ModelID = %q", result.ModelID)
	}

	if got := mock.LastRequestHeaders().Get("xi-api-key"); got != "el-key" {
		t.Errorf("xi-api-key = %q, want el-key", got)
	}
	if body := string(mock.LastRequestBody()); !strings.Contains(body, `"text":"Once upon a time"`) {
		t.Errorf("request body = %s", body)
	}
}

func TestElevenLabs_Synthesize_VoiceOverride(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetResponse("/v1/text-to-speech/voice-custom", testutil.NewAudioResponse([]byte("audio")))

	el := newTestElevenLabs(t, mock)
	if _, err := el.Synthesize(context.Background(), "hello", "voice-custom"); err != nil {
		t.Fatalf("Synthesize with voice override failed: %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
	}
}

func TestElevenLabs_Synthesize_EmptyText(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	el := newTestElevenLabs(t, mock)
	if _, err := el.Synthesize(context.Background(), "   ", ""); err == nil {
		t.Error("Synthesize succeeded with blank text")
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount())
	}
}

func TestElevenLabs_Synthesize_RateLimited(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetResponse("/v1/text-to-speech/voice-default", testutil.NewRateLimitResponse(30))

	el := newTestElevenLabs(t, mock)
	_, err := el.Synthesize(context.Background(), "hello", "")

	// Rate limits are retried, then surfaced as exhaustion.
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("err = %v, want ErrRetryExhausted", err)
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Class != ErrorClassRateLimit {
		t.Errorf("err = %v, want wrapped rate_limit provider error", err)
	}
	if got := RetryAfter(err); got != 30*time.Second {
		t.Errorf("RetryAfter(err) = %v, want 30s", got)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", mock.RequestCount())
	}
}
