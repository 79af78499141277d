package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const geminiName = "gemini"

// Gemini generates story text and illustrations through the Google genai SDK.
type Gemini struct {
	client     *genai.Client
	textModel  string
	imageModel string
	retry      RetryConfig
	logger     zerolog.Logger
}

// GeminiConfig holds Gemini client settings.
type GeminiConfig struct {
	// APIKey authenticates requests (REQUIRED).
	APIKey string

	// TextModel generates story JSON.
	TextModel string

	// ImageModel generates illustrations.
	ImageModel string

	// BaseURL overrides the API endpoint (used in tests).
	BaseURL string

	// Retry overrides DefaultRetryConfig when MaxAttempts > 0.
	Retry RetryConfig
}

// NewGemini creates a Gemini provider client.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.TextModel == "" || cfg.ImageModel == "" {
		return nil, fmt.Errorf("gemini model identifiers are required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	retry := cfg.Retry
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}

	return &Gemini{
		client:     client,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		retry:      retry,
		logger:     logger,
	}, nil
}

// GenerateStory asks the text model for a story and returns the raw model
// text. The model is instructed to answer with JSON; pkg/story handles
// extraction and decoding.
func (g *Gemini) GenerateStory(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		providerRequestDuration.WithLabelValues(geminiName).Observe(time.Since(start).Seconds())
	}()

	generateConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.9)),
		ResponseMIMEType: "application/json",
	}

	var text string
	err := retryWithBackoff(ctx, g.logger, geminiName, g.retry, func() error {
		resp, err := g.client.Models.GenerateContent(ctx, g.textModel, genai.Text(prompt), generateConfig)
		if err != nil {
			return g.wrapError(err)
		}
		providerRequestsTotal.WithLabelValues(geminiName, "200").Inc()
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", err
	}

	if text == "" {
		return "", &Error{Provider: geminiName, Class: ErrorClassServer, Message: "empty completion"}
	}
	return text, nil
}

// GenerateImage asks the image model for an illustration and returns its
// first inline image part.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	start := time.Now()
	defer func() {
		providerRequestDuration.WithLabelValues(geminiName).Observe(time.Since(start).Seconds())
	}()

	generateConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	var result *ImageResult
	err := retryWithBackoff(ctx, g.logger, geminiName, g.retry, func() error {
		resp, err := g.client.Models.GenerateContent(ctx, g.imageModel, genai.Text(prompt), generateConfig)
		if err != nil {
			return g.wrapError(err)
		}
		providerRequestsTotal.WithLabelValues(geminiName, "200").Inc()

		r, err := inlineImage(resp, g.imageModel)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ModelID returns the image model identifier.
func (g *Gemini) ModelID() string {
	return g.imageModel
}

// wrapError converts a genai SDK error into a classified provider error.
func (g *Gemini) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		providerRequestsTotal.WithLabelValues(geminiName, strconv.Itoa(apiErr.Code)).Inc()
		return &Error{
			Provider:   geminiName,
			StatusCode: apiErr.Code,
			Class:      classifyStatus(apiErr.Code),
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	providerRequestsTotal.WithLabelValues(geminiName, "network_error").Inc()
	return &Error{Provider: geminiName, Class: ErrorClassNetwork, Message: "request failed", Err: err}
}

// inlineImage finds the first inline image part of a generation response.
func inlineImage(resp *genai.GenerateContentResponse, modelID string) (*ImageResult, error) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &ImageResult{
					ImageBase64: base64.StdEncoding.EncodeToString(part.InlineData.Data),
					MimeType:    part.InlineData.MIMEType,
					ModelID:     modelID,
				}, nil
			}
		}
	}
	return nil, &Error{Provider: geminiName, Class: ErrorClassServer, Message: "response contained no image data"}
}
