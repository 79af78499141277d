package story

import (
	"context"
	"sync"
	"time"

	"github.com/fableforge/storybook-backend/pkg/provider"
	"github.com/rs/zerolog"
)

// IllustratorConfig holds batch illustration settings.
type IllustratorConfig struct {
	// MaxConcurrency is the number of parallel generation workers.
	MaxConcurrency int

	// Timeout bounds the generation of a single page's illustration.
	Timeout time.Duration
}

// DefaultIllustratorConfig returns safe defaults: a small worker pool so a
// single story does not monopolize provider quota.
func DefaultIllustratorConfig() IllustratorConfig {
	return IllustratorConfig{
		MaxConcurrency: 3,
		Timeout:        60 * time.Second,
	}
}

// Illustrator generates page illustrations in parallel with a bounded
// worker pool.
type Illustrator struct {
	gen    provider.ImageGenerator
	config IllustratorConfig
	logger zerolog.Logger
}

// NewIllustrator creates an illustrator using the given image generator.
func NewIllustrator(gen provider.ImageGenerator, config IllustratorConfig, logger zerolog.Logger) *Illustrator {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Illustrator{
		gen:    gen,
		config: config,
		logger: logger,
	}
}

// IllustrateAll fills in the illustration fields of every page, in place.
// Pages whose generation fails are left without an image and the rest of
// the batch proceeds; the returned count is the number of pages that were
// illustrated. The error is non-nil only when the context ended before the
// batch completed.
func (il *Illustrator) IllustrateAll(ctx context.Context, s *Story) (int, error) {
	start := time.Now()
	total := len(s.Pages)

	il.logger.Info().
		Str("story", s.Title).
		Int("pages", total).
		Int("workers", il.config.MaxConcurrency).
		Msg("Starting batch illustration")

	jobs := make(chan int, total)
	for i := range s.Pages {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	illustrated := 0

	workers := il.config.MaxConcurrency
	if workers > total {
		workers = total
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				page := &s.Pages[idx]
				pageCtx, cancel := context.WithTimeout(ctx, il.config.Timeout)
				result, err := il.gen.GenerateImage(pageCtx, BuildImagePrompt(s, *page))
				cancel()

				if err != nil {
					il.logger.Warn().
						Err(err).
						Int("page", page.Number).
						Msg("Page illustration failed")
					continue
				}

				// Each worker writes a distinct page; the mutex only guards
				// the shared counter.
				page.ImageBase64 = result.ImageBase64
				page.ImageMimeType = result.MimeType

				mu.Lock()
				illustrated++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	il.logger.Info().
		Str("story", s.Title).
		Int("illustrated", illustrated).
		Int("total", total).
		Dur("duration", time.Since(start)).
		Msg("Batch illustration complete")

	if err := ctx.Err(); err != nil {
		return illustrated, err
	}
	return illustrated, nil
}
