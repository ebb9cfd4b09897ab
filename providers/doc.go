// Package providers holds the shared plumbing under the per-platform
// publish adapters: a JSON REST client, the HTTP status taxonomy that feeds
// the retry state machine, the single-refresh auth retry, and payload text
// helpers. Platform specifics live in the subpackages.
package providers
