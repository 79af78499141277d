// Package story assembles branching storybook payloads from generative
// model output: prompt construction, tolerant JSON extraction, and parallel
// page illustration.
package story

import "fmt"

// Choice is one branching option offered at the end of a page.
type Choice struct {
	Label    string `json:"label"`
	NextPage int    `json:"nextPage"`
}

// Page is a single storybook page. Illustration fields are filled in by the
// Illustrator after text generation.
type Page struct {
	Number      int      `json:"number"`
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	ImagePrompt string   `json:"imagePrompt"`
	Choices     []Choice `json:"choices,omitempty"`

	ImageBase64   string `json:"imageBase64,omitempty"`
	ImageMimeType string `json:"imageMimeType,omitempty"`
}

// Story is the branching storybook payload returned to clients.
type Story struct {
	Title   string `json:"title"`
	ModelID string `json:"modelId"`
	Pages   []Page `json:"pages"`
}

// Request describes the story a client wants.
type Request struct {
	Theme     string `json:"theme"`
	HeroName  string `json:"heroName"`
	PageCount int    `json:"pageCount"`

	// Illustrate requests batch illustration of the generated pages.
	Illustrate bool `json:"illustrate"`
}

// Limits on requested stories.
const (
	DefaultPageCount = 5
	MaxPageCount     = 12
)

// Validate checks the request and applies the page count default.
func (r *Request) Validate() error {
	if r.Theme == "" {
		return fmt.Errorf("theme is required")
	}
	if r.PageCount == 0 {
		r.PageCount = DefaultPageCount
	}
	if r.PageCount < 1 || r.PageCount > MaxPageCount {
		return fmt.Errorf("pageCount must be between 1 and %d, got %d", MaxPageCount, r.PageCount)
	}
	return nil
}
