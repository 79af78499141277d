package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	elevenLabsName = "elevenlabs"

	// DefaultElevenLabsBaseURL is the public ElevenLabs API endpoint.
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io"
)

// ElevenLabs synthesizes narration audio via the ElevenLabs text-to-speech
// REST API.
type ElevenLabs struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	defaultVoiceID string
	model          string
	retry          RetryConfig
	logger         zerolog.Logger
}

// ElevenLabsConfig holds ElevenLabs client settings.
type ElevenLabsConfig struct {
	APIKey string

	// DefaultVoiceID is used when a request does not name a voice.
	DefaultVoiceID string

	// Model is the speech model identifier (e.g. "eleven_multilingual_v2").
	Model string

	// BaseURL overrides the API endpoint (used in tests).
	BaseURL string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Retry overrides DefaultRetryConfig when MaxAttempts > 0.
	Retry RetryConfig
}

// NewElevenLabs creates an ElevenLabs speech provider client.
func NewElevenLabs(cfg ElevenLabsConfig, logger zerolog.Logger) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	if cfg.DefaultVoiceID == "" {
		return nil, fmt.Errorf("elevenlabs default voice id is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("elevenlabs model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultElevenLabsBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}

	return &ElevenLabs{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		apiKey:         cfg.APIKey,
		defaultVoiceID: cfg.DefaultVoiceID,
		model:          cfg.Model,
		retry:          retry,
		logger:         logger,
	}, nil
}

// ttsRequest is the ElevenLabs text-to-speech request body.
type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to narration audio, base64-encoded. An empty
// voiceID selects the configured default voice.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) (*SpeechResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if voiceID == "" {
		voiceID = e.defaultVoiceID
	}

	start := time.Now()
	defer func() {
		providerRequestDuration.WithLabelValues(elevenLabsName).Observe(time.Since(start).Seconds())
	}()

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, voiceID)
	body, err := json.Marshal(ttsRequest{Text: text, ModelID: e.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	var result *SpeechResult
	retryErr := retryWithBackoff(ctx, e.logger, elevenLabsName, e.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("xi-api-key", e.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			providerRequestsTotal.WithLabelValues(elevenLabsName, "network_error").Inc()
			return &Error{Provider: elevenLabsName, Class: ErrorClassNetwork, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		providerRequestsTotal.WithLabelValues(elevenLabsName, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &Error{
				Provider:   elevenLabsName,
				StatusCode: resp.StatusCode,
				Class:      classifyStatus(resp.StatusCode),
				Message:    strings.TrimSpace(string(msg)),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}

		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Provider: elevenLabsName, Class: ErrorClassNetwork, Message: "read response body", Err: err}
		}
		if len(audio) == 0 {
			return &Error{Provider: elevenLabsName, Class: ErrorClassServer, Message: "empty audio response"}
		}

		mime := resp.Header.Get("Content-Type")
		if mime == "" {
			mime = "audio/mpeg"
		}
		result = &SpeechResult{
			AudioBase64: base64.StdEncoding.EncodeToString(audio),
			MimeType:    mime,
			ModelID:     e.model,
		}
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return result, nil
}
