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
	cloudflareName = "cloudflare"

	// DefaultGatewayBaseURL is the public Cloudflare AI Gateway endpoint.
	DefaultGatewayBaseURL = "https://gateway.ai.cloudflare.com/v1"
)

// Cloudflare generates images with Workers AI models routed through a
// Cloudflare AI Gateway.
type Cloudflare struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	gatewayID  string
	apiToken   string
	model      string
	retry      RetryConfig
	logger     zerolog.Logger
}

// CloudflareConfig holds Cloudflare AI Gateway settings.
type CloudflareConfig struct {
	AccountID string
	GatewayID string
	APIToken  string

	// Model is the Workers AI image model (e.g. "@cf/black-forest-labs/flux-1-schnell").
	Model string

	// BaseURL overrides the gateway endpoint (used in tests).
	BaseURL string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Retry overrides DefaultRetryConfig when MaxAttempts > 0.
	Retry RetryConfig
}

// NewCloudflare creates a Cloudflare image provider client.
func NewCloudflare(cfg CloudflareConfig, logger zerolog.Logger) (*Cloudflare, error) {
	if cfg.AccountID == "" || cfg.GatewayID == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("cloudflare account, gateway and token are required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("cloudflare image model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGatewayBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}

	return &Cloudflare{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		accountID:  cfg.AccountID,
		gatewayID:  cfg.GatewayID,
		apiToken:   cfg.APIToken,
		model:      cfg.Model,
		retry:      retry,
		logger:     logger,
	}, nil
}

// GenerateImage submits the prompt to the Workers AI model and returns the
// generated image, base64-encoded.
func (c *Cloudflare) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	start := time.Now()
	defer func() {
		providerRequestDuration.WithLabelValues(cloudflareName).Observe(time.Since(start).Seconds())
	}()

	url := fmt.Sprintf("%s/%s/%s/workers-ai/%s", c.baseURL, c.accountID, c.gatewayID, c.model)
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	var result *ImageResult
	retryErr := retryWithBackoff(ctx, c.logger, cloudflareName, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			providerRequestsTotal.WithLabelValues(cloudflareName, "network_error").Inc()
			return &Error{Provider: cloudflareName, Class: ErrorClassNetwork, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		providerRequestsTotal.WithLabelValues(cloudflareName, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &Error{
				Provider:   cloudflareName,
				StatusCode: resp.StatusCode,
				Class:      classifyStatus(resp.StatusCode),
				Message:    strings.TrimSpace(string(msg)),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Provider: cloudflareName, Class: ErrorClassNetwork, Message: "read response body", Err: err}
		}

		r, err := decodeWorkersAIImage(data, resp.Header.Get("Content-Type"), c.model)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return result, nil
}

// ModelID returns the Workers AI model identifier.
func (c *Cloudflare) ModelID() string {
	return c.model
}

// workersAIEnvelope is the JSON response shape of models that return
// base64 image data instead of raw bytes (e.g. flux-1-schnell).
type workersAIEnvelope struct {
	Result struct {
		Image string `json:"image"`
	} `json:"result"`
	Success bool `json:"success"`
}

// decodeWorkersAIImage normalizes the two Workers AI response shapes into an
// ImageResult: raw image bytes (stable-diffusion family) or a JSON envelope
// with a base64 "image" field (flux family).
func decodeWorkersAIImage(data []byte, contentType, modelID string) (*ImageResult, error) {
	mime := contentType
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)

	if strings.HasPrefix(mime, "image/") {
		return &ImageResult{
			ImageBase64: base64.StdEncoding.EncodeToString(data),
			MimeType:    mime,
			ModelID:     modelID,
		}, nil
	}

	var envelope workersAIEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Result.Image != "" {
		// The envelope carries JPEG data already base64-encoded.
		return &ImageResult{
			ImageBase64: envelope.Result.Image,
			MimeType:    "image/jpeg",
			ModelID:     modelID,
		}, nil
	}

	return nil, &Error{
		Provider: cloudflareName,
		Class:    ErrorClassServer,
		Message:  fmt.Sprintf("unexpected response content type %q", contentType),
	}
}
