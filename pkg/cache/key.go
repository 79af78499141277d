package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key identifies a cached generation result. It is the hex-encoded SHA-256
// digest of "<modelID>::<normalizedPrompt>".
type Key string

// ComputeKey derives the cache key for a (model, prompt) pair.
//
// The model identifier may be empty. The prompt is trimmed and internal
// whitespace runs are collapsed to single spaces before hashing, so prompts
// that differ only in formatting map to the same entry. The function is pure:
// equal inputs always yield equal keys.
func ComputeKey(modelID, prompt string) Key {
	sum := sha256.Sum256([]byte(modelID + "::" + normalizePrompt(prompt)))
	return Key(hex.EncodeToString(sum[:]))
}

func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}
