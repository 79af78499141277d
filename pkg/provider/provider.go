// Package provider contains clients for the third-party generative AI
// services the backend proxies: Google Gemini for story text and images,
// Cloudflare Workers AI behind an AI Gateway for images, and ElevenLabs for
// text-to-speech narration.
package provider

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics shared by all provider clients.
var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storybook_provider_requests_total",
		Help: "Total provider requests by provider and status",
	}, []string{"provider", "status"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storybook_provider_request_duration_seconds",
		Help:    "Provider request duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})

	providerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storybook_provider_errors_total",
		Help: "Total provider errors by provider and class",
	}, []string{"provider", "class"})
)

// ImageResult is a generated illustration, base64-encoded.
type ImageResult struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
	ModelID     string `json:"modelId"`
}

// SpeechResult is synthesized narration audio, base64-encoded.
type SpeechResult struct {
	AudioBase64 string `json:"audioBase64"`
	MimeType    string `json:"mimeType"`
	ModelID     string `json:"modelId"`
}

// StoryGenerator produces raw story text from a prompt. The text is
// expected to contain a JSON document; extraction happens in pkg/story.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces an illustration from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)

	// ModelID identifies the model results are produced with, for cache
	// keying and response echoing.
	ModelID() string
}

// SpeechSynthesizer converts narration text to audio. An empty voiceID
// selects the configured default voice.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*SpeechResult, error)
}
