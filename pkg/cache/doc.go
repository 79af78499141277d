// Package cache provides the bounded in-memory store for generated images.
//
// The cache is capacity-limited, TTL-expiring and LRU-ordered:
//
//   - At most Capacity entries are held; inserting beyond that evicts from
//     the least-recently-used end until the bound holds again.
//   - Every entry expires a fixed TTL after insertion. Expiry is discovered
//     lazily on lookup; there is no background sweeper, so an expired entry
//     that is never looked up occupies capacity until LRU pressure removes it.
//   - Both a successful Get and any Set move the key to the most-recently-used
//     position.
//
// Keys are SHA-256 digests of the model identifier and the
// whitespace-normalized prompt, so logically identical generation requests
// share an entry regardless of formatting.
//
// # Basic Usage
//
//	store := cache.New(200, 6*time.Hour)
//
//	key := cache.ComputeKey("flux-1-schnell", "a fox in a paper boat")
//
//	entry, err := store.Get(key)
//	if err == cache.ErrCacheMiss {
//		// call the image provider, then:
//		_ = store.Set(key, imageBase64, "image/png", "flux-1-schnell")
//	}
//
// # Concurrency
//
// Get and Set are serialized with a mutex; each call runs to completion
// atomically. Two concurrent requests for the same key can still both miss,
// both call the provider and both Set. The second Set overwrites the first,
// which is acceptable because results for identical inputs are equivalent.
// The cache does not de-duplicate in-flight generations.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - storybook_image_cache_hits_total - Cache hits
//   - storybook_image_cache_misses_total - Cache misses
//   - storybook_image_cache_evictions_total{reason} - Evictions (lru, expired)
//   - storybook_image_cache_entries - Current number of entries
package cache
