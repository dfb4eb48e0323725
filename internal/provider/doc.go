// Package provider is the resilient access layer for the social-data provider.
//
// Every operation normalizes its input, consults the shared response cache, and on a
// miss issues one HTTP GET. Upstream 429 responses are retried with exponential
// backoff plus jitter (or the upstream Retry-After hint) up to a fixed bound; any
// other failure is normalized into *tracker.UpstreamError and returned without retry.
// Response bodies pass through a single normalization step that maps every known
// provider shape onto the canonical tracker types; unknown shapes are upstream errors,
// never silently empty results.
package provider
