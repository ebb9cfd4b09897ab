package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	HeaderMessageID        = "Twitch-Eventsub-Message-Id"
	HeaderMessageTimestamp = "Twitch-Eventsub-Message-Timestamp"
	HeaderMessageSignature = "Twitch-Eventsub-Message-Signature"
	HeaderMessageType      = "Twitch-Eventsub-Message-Type"
	HeaderSubscriptionType = "Twitch-Eventsub-Subscription-Type"
)

const (
	MessageTypeVerification = "webhook_callback_verification"
	MessageTypeNotification = "notification"
	MessageTypeRevocation   = "revocation"
)

const signaturePrefix = "sha256="

const defaultTimestampTolerance = 10 * time.Minute

// InboundRequest is the transport-agnostic shape of one received callback.
// Header lookups are case-insensitive.
type InboundRequest struct {
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted    bool
	StatusCode  int
	ContentType string
	Body        []byte
	Metadata    map[string]any
}

type Verifier interface {
	Verify(ctx context.Context, req InboundRequest) error
}

// ComputeSignature produces the signature header value for a message:
// HMAC-SHA256 over message id || timestamp || raw body, hex encoded with
// the sha256= prefix.
func ComputeSignature(secret string, messageID string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(messageID))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// EventSubVerifier checks the signature and timestamp headers of one
// message against a per-subscription secret. The raw body bytes must be
// exactly what arrived on the wire; re-serialized JSON breaks the MAC.
type EventSubVerifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func (v EventSubVerifier) Verify(_ context.Context, req InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}

	messageID := strings.TrimSpace(headerValue(req.Headers, HeaderMessageID))
	if messageID == "" {
		return fmt.Errorf("webhooks: %s header is required", HeaderMessageID)
	}
	timestamp := strings.TrimSpace(headerValue(req.Headers, HeaderMessageTimestamp))
	if timestamp == "" {
		return fmt.Errorf("webhooks: %s header is required", HeaderMessageTimestamp)
	}
	header := strings.TrimSpace(headerValue(req.Headers, HeaderMessageSignature))
	if header == "" {
		return fmt.Errorf("webhooks: %s header is required", HeaderMessageSignature)
	}

	if err := v.checkTimestamp(timestamp); err != nil {
		return err
	}

	signature := strings.TrimSpace(strings.TrimPrefix(header, signaturePrefix))
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhooks: decode hex signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(messageID))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

// checkTimestamp rejects replayed messages outside the tolerance window.
func (v EventSubVerifier) checkTimestamp(timestamp string) error {
	at, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return fmt.Errorf("webhooks: parse message timestamp: %w", err)
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTimestampTolerance
	}
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	drift := now.Sub(at.UTC())
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return fmt.Errorf("webhooks: message timestamp outside the %s tolerance window", tolerance)
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ Verifier = EventSubVerifier{}
