// Package webhooks receives signed EventSub callbacks on a single ingress
// endpoint and walks each message through verify -> dedupe -> persist.
//
// Three message kinds share the endpoint: the verification handshake that
// activates a pending subscription, event notifications, and revocations.
// Message-id dedupe makes at-least-once redelivery safe.
package webhooks
