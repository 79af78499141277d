package story

import (
	"fmt"
	"strings"
)

// BuildStoryPrompt renders the instruction prompt for the story model.
// The model is asked for a single JSON document matching the Story schema,
// with branching choices that reference later page numbers.
func BuildStoryPrompt(req Request) string {
	hero := req.HeroName
	if hero == "" {
		hero = "a brave child"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a branching interactive children's storybook about %s, starring %s, with exactly %d pages.\n\n", req.Theme, hero, req.PageCount)
	b.WriteString("Respond with a single JSON object and nothing else, using this schema:\n")
	b.WriteString(`{"title": string, "pages": [{"number": int, "title": string, "text": string, "imagePrompt": string, "choices": [{"label": string, "nextPage": int}]}]}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Page numbers start at 1 and are sequential.\n")
	b.WriteString("- Every choice's nextPage must reference an existing later page; the final page has no choices.\n")
	b.WriteString("- Each imagePrompt describes the page's scene visually, without character names.\n")
	b.WriteString("- Keep each page's text to 3-5 sentences, suitable for reading aloud.\n")
	return b.String()
}

// BuildImagePrompt renders the illustration prompt for one page, anchoring
// the page's scene description in a consistent picture-book style.
func BuildImagePrompt(s *Story, p Page) string {
	return fmt.Sprintf(
		"Children's picture-book illustration, warm colors, soft shapes, no text or lettering. Scene: %s. Story setting: %s.",
		p.ImagePrompt, s.Title)
}
