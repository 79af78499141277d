package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fableforge/storybook-backend/pkg/cache"
	"github.com/fableforge/storybook-backend/pkg/provider"
	"github.com/fableforge/storybook-backend/pkg/story"
)

// imageRequest is the body of POST /api/image.
type imageRequest struct {
	Prompt  string `json:"prompt"`
	ModelID string `json:"modelId"`
}

// imageResponse is the body of a successful POST /api/image.
type imageResponse struct {
	ModelID     string `json:"modelId"`
	ElapsedMs   int64  `json:"elapsedMs"`
	MimeType    string `json:"mimeType"`
	ImageBase64 string `json:"imageBase64"`
	Cached      bool   `json:"cached"`
}

// ttsRequest is the body of POST /api/tts.
type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()).Err(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleImage serves single-image generation with caching. Repeat requests
// for the same model and prompt (up to whitespace differences) are served
// from the cache without touching the provider.
func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = s.images.ModelID()
	}

	start := time.Now()
	key := cache.ComputeKey(modelID, req.Prompt)

	if entry, err := s.imageCache.Get(key); err == nil {
		s.logger.Info().
			Str("route", "/api/image").
			Str("model", entry.ModelID).
			Bool("cache_hit", true).
			Msg("Image served from cache")

		writeJSON(w, http.StatusOK, imageResponse{
			ModelID:     entry.ModelID,
			ElapsedMs:   0,
			MimeType:    entry.ContentType,
			ImageBase64: entry.Payload,
			Cached:      true,
		})
		return
	}

	result, status := s.generateImage(r.Context(), req.Prompt)
	if status != 0 {
		writeError(w, status, "image generation failed")
		return
	}

	if err := s.imageCache.Set(key, result.ImageBase64, result.MimeType, result.ModelID); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache generated image")
	}

	elapsed := time.Since(start).Milliseconds()
	s.logger.Info().
		Str("route", "/api/image").
		Str("model", result.ModelID).
		Bool("cache_hit", false).
		Int64("elapsed_ms", elapsed).
		Msg("Image generated")

	writeJSON(w, http.StatusOK, imageResponse{
		ModelID:     result.ModelID,
		ElapsedMs:   elapsed,
		MimeType:    result.MimeType,
		ImageBase64: result.ImageBase64,
		Cached:      false,
	})
}

// generateImage runs quota gating, provider generation, and quota
// bookkeeping. On failure it returns a zero result and the HTTP status to
// send to the client.
func (s *server) generateImage(ctx context.Context, prompt string) (*provider.ImageResult, int) {
	allowed, err := s.quota.ShouldAllowRequest(ctx, s.imagesName)
	if err != nil {
		s.logger.Error().Err(err).Msg("Quota check failed")
	} else if !allowed {
		return nil, http.StatusServiceUnavailable
	}

	result, err := s.images.GenerateImage(ctx, prompt)
	if err != nil {
		if qerr := s.quota.RecordResponse(ctx, s.imagesName, provider.StatusCode(err), provider.RetryAfter(err)); qerr != nil {
			s.logger.Error().Err(qerr).Msg("Failed to record provider response")
		}

		s.logger.Error().
			Err(err).
			Str("provider", s.imagesName).
			Str("error_class", string(provider.Classify(err))).
			Msg("Image generation failed")

		if provider.Classify(err) == provider.ErrorClassRateLimit {
			return nil, http.StatusServiceUnavailable
		}
		return nil, http.StatusBadGateway
	}

	if qerr := s.quota.RecordResponse(ctx, s.imagesName, http.StatusOK, 0); qerr != nil {
		s.logger.Error().Err(qerr).Msg("Failed to record provider response")
	}
	return result, 0
}

// handleStory generates a branching story and, when requested, illustrates
// its pages through the image cache.
func (s *server) handleStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req story.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	raw, err := s.stories.GenerateStory(r.Context(), story.BuildStoryPrompt(req))
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("route", "/api/story").
			Str("error_class", string(provider.Classify(err))).
			Msg("Story generation failed")

		if provider.Classify(err) == provider.ErrorClassRateLimit {
			writeError(w, http.StatusServiceUnavailable, "story provider is rate limited")
			return
		}
		writeError(w, http.StatusBadGateway, "story generation failed")
		return
	}

	st, err := story.Decode(raw, s.cfg.GeminiTextModel)
	if err != nil {
		s.logger.Error().Err(err).Str("route", "/api/story").Msg("Story output could not be parsed")
		writeError(w, http.StatusBadGateway, "story output could not be parsed")
		return
	}

	illustrated := 0
	if req.Illustrate {
		illustrated, err = s.illustrator.IllustrateAll(r.Context(), st)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Msg("Illustration batch incomplete")
		}
	}

	s.logger.Info().
		Str("route", "/api/story").
		Int("pages", len(st.Pages)).
		Int("illustrated", illustrated).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Story generated")

	writeJSON(w, http.StatusOK, st)
}

// handleTTS narrates text through the speech provider.
func (s *server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.speech.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("route", "/api/tts").
			Str("error_class", string(provider.Classify(err))).
			Msg("Speech synthesis failed")

		if provider.Classify(err) == provider.ErrorClassRateLimit {
			writeError(w, http.StatusServiceUnavailable, "speech provider is rate limited")
			return
		}
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// cachingImageGenerator routes page illustrations through the image cache,
// so re-illustrating a story reuses previously generated pages.
type cachingImageGenerator struct {
	srv *server
}

func (g *cachingImageGenerator) GenerateImage(ctx context.Context, prompt string) (*provider.ImageResult, error) {
	key := cache.ComputeKey(g.srv.images.ModelID(), prompt)
	if entry, err := g.srv.imageCache.Get(key); err == nil {
		return &provider.ImageResult{
			ImageBase64: entry.Payload,
			MimeType:    entry.ContentType,
			ModelID:     entry.ModelID,
		}, nil
	}

	result, err := g.srv.images.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := g.srv.imageCache.Set(key, result.ImageBase64, result.MimeType, result.ModelID); err != nil {
		g.srv.logger.Warn().Err(err).Msg("Failed to cache illustration")
	}
	return result, nil
}

func (g *cachingImageGenerator) ModelID() string {
	return g.srv.images.ModelID()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
