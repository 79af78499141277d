package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON indicates model output contained no JSON object.
var ErrNoJSON = errors.New("no JSON object in model output")

// ExtractJSON returns the JSON object embedded in raw model output.
// Models wrap their answer in markdown code fences or surrounding prose
// often enough that strict parsing of the whole response is not viable;
// extraction tolerates both.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Strip a markdown code fence, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// Decode parses raw model output into a Story and stamps it with the model
// that produced it. Pages missing explicit numbers are numbered by position.
func Decode(raw, modelID string) (*Story, error) {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var s Story
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("decode story JSON: %w", err)
	}
	if len(s.Pages) == 0 {
		return nil, fmt.Errorf("story has no pages")
	}

	for i := range s.Pages {
		if s.Pages[i].Number == 0 {
			s.Pages[i].Number = i + 1
		}
	}
	s.ModelID = modelID
	return &s, nil
}
