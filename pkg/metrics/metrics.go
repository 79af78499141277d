// Package metrics provides the centralized Prometheus metrics registry for
// the storybook backend. All metrics are defined in their respective packages
// (cache, provider, quota) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the storybook backend.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Image Cache Metrics (pkg/cache):
//   - storybook_image_cache_hits_total (Counter): Cache hits
//   - storybook_image_cache_misses_total (Counter): Cache misses
//   - storybook_image_cache_evictions_total{reason} (Counter): Evictions by reason (lru, expired)
//   - storybook_image_cache_entries (Gauge): Current number of cached entries
//
// Provider Metrics (pkg/provider):
//   - storybook_provider_requests_total{provider, status} (Counter): Requests by provider and outcome
//   - storybook_provider_request_duration_seconds{provider} (Histogram): Request duration by provider
//   - storybook_provider_errors_total{provider, class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/provider):
//   - storybook_provider_retries_total{provider, error_class} (Counter): Retry attempts by error class
//   - storybook_provider_retry_backoff_seconds{provider} (Histogram): Backoff duration before retries
//   - storybook_provider_retry_exhausted_total{provider} (Counter): Requests that exhausted max retries
//
// Quota Metrics (pkg/quota):
//   - storybook_quota_recent_rejections{provider} (Gauge): Recent 429 responses per provider
//   - storybook_quota_blocks_total{provider} (Counter): Requests refused during provider cooldown
//   - storybook_quota_throttles_total{provider} (Counter): Requests throttled after recent rejections
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(storybook_image_cache_hits_total[5m])) /
//   (sum(rate(storybook_image_cache_hits_total[5m])) + sum(rate(storybook_image_cache_misses_total[5m])))
//
//   # Provider Error Rate
//   sum by (provider) (rate(storybook_provider_errors_total[5m]))
//
//   # P95 Provider Latency
//   histogram_quantile(0.95, rate(storybook_provider_request_duration_seconds_bucket[5m]))
//
//   # Providers Currently Rejecting
//   storybook_quota_recent_rejections > 0
//
//   # Eviction Pressure
//   rate(storybook_image_cache_evictions_total{reason="lru"}[5m])
