// Package coldstore provides durable cold-tier adapters for the
// embedding cache: a Postgres-backed store matching the documented
// cold-row schema, a Redis-backed store using hashes with native
// expiry, and a resilience wrapper adding circuit breaking and bounded
// retries around any ColdStore implementation.
package coldstore
