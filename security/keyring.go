package security

import (
	"context"
	"fmt"
	"time"
)

// KeyRotationWindow gates when a retired key may still open ciphertexts.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

// RetiredKey is a previous application key kept around to open rows that
// were sealed before a rotation.
type RetiredKey struct {
	Provider *AppKeySecretProvider
	Window   KeyRotationWindow
}

// Keyring encrypts with the active key and falls back to retired keys on
// decrypt. It is the rotation story: introduce the new key as active, keep
// the old one retired until every row has been rewritten.
type Keyring struct {
	active  *AppKeySecretProvider
	retired []RetiredKey
	now     func() time.Time
}

type KeyringOption func(*Keyring)

func WithRetiredKey(provider *AppKeySecretProvider, window KeyRotationWindow) KeyringOption {
	return func(k *Keyring) {
		if provider != nil {
			k.retired = append(k.retired, RetiredKey{Provider: provider, Window: window})
		}
	}
}

func WithKeyringClock(now func() time.Time) KeyringOption {
	return func(k *Keyring) {
		if now != nil {
			k.now = now
		}
	}
}

func NewKeyring(active *AppKeySecretProvider, opts ...KeyringOption) (*Keyring, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active key provider is required")
	}
	keyring := &Keyring{
		active: active,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(keyring)
		}
	}
	return keyring, nil
}

// Encrypt always seals with the active key.
func (k *Keyring) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("security: keyring is nil")
	}
	return k.active.Encrypt(ctx, plaintext)
}

// Decrypt matches the envelope's key id against the active key first, then
// each retired key whose rotation window still allows it.
func (k *Keyring) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("security: keyring is nil")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}

	if matchesProvider(k.active, meta) {
		return k.active.Decrypt(ctx, ciphertext)
	}

	now := k.now()
	for _, retired := range k.retired {
		if !matchesProvider(retired.Provider, meta) {
			continue
		}
		if !retired.Window.Allows(now) {
			return nil, fmt.Errorf(
				"security: key %q v%d is outside its rotation window",
				meta.KeyID, meta.Version,
			)
		}
		return retired.Provider.Decrypt(ctx, ciphertext)
	}
	return nil, fmt.Errorf("security: no key for envelope %q v%d", meta.KeyID, meta.Version)
}

// ActiveKeyID identifies the key new ciphertexts are sealed with.
func (k *Keyring) ActiveKeyID() (string, int) {
	if k == nil || k.active == nil {
		return "", 0
	}
	return k.active.KeyID(), k.active.Version()
}

func matchesProvider(provider *AppKeySecretProvider, meta EnvelopeMetadata) bool {
	if provider == nil {
		return false
	}
	if meta.KeyID != "" && meta.KeyID != provider.KeyID() {
		return false
	}
	if meta.Version > 0 && meta.Version != provider.Version() {
		return false
	}
	return true
}

var _ SecretProvider = (*Keyring)(nil)
