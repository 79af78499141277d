package cache

import (
	"strings"
	"testing"
)

func TestComputeKey_WhitespaceNormalization(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
	}{
		{"internal run", "a  b"},
		{"leading and trailing", " a b "},
		{"tabs and newlines", "a\tb\n"},
		{"mixed runs", "  a \t\n  b  "},
	}

	want := ComputeKey("model-x", "a b")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeKey("model-x", tt.prompt)
			if got != want {
				t.Errorf("ComputeKey(%q) = %v, want %v", tt.prompt, got, want)
			}
		})
	}
}

func TestComputeKey_Determinism(t *testing.T) {
	first := ComputeKey("flux-1-schnell", "a fox in a paper boat")
	for i := 0; i < 10; i++ {
		got := ComputeKey("flux-1-schnell", "a fox in a paper boat")
		if got != first {
			t.Fatalf("iteration %d: got %v, want %v (not deterministic)", i, got, first)
		}
	}
}

func TestComputeKey_DistinctInputs(t *testing.T) {
	keys := map[Key]string{}
	pairs := []struct{ model, prompt string }{
		{"", "a fox"},
		{"model-a", "a fox"},
		{"model-b", "a fox"},
		{"model-a", "a hedgehog"},
		{"a fox", ""}, // model/prompt must not be interchangeable
	}

	for _, p := range pairs {
		key := ComputeKey(p.model, p.prompt)
		if prev, ok := keys[key]; ok {
			t.Errorf("collision: (%q,%q) and %s produced %v", p.model, p.prompt, prev, key)
		}
		keys[key] = p.model + "/" + p.prompt
	}
}

func TestComputeKey_Format(t *testing.T) {
	key := ComputeKey("", "anything")

	// Hex representation of a 256-bit digest.
	if len(key) != 64 {
		t.Errorf("key length = %d, want 64", len(key))
	}
	if strings.ToLower(string(key)) != string(key) {
		t.Errorf("key %v is not lowercase hex", key)
	}
}
