package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/ports"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// envelopeMagic prefixes every encrypted value and is authenticated as GCM
// additional data, so a value sealed under another envelope version never opens.
var envelopeMagic = []byte("kvs1")

// EncryptionConfig lists the AES-256 keys of the encryption middleware.
type EncryptionConfig struct {
	// ActiveKey seals every value written.
	ActiveKey []byte

	// FallbackKeys only open values, in order, after ActiveKey fails.
	// Keep a retired key here until every value sealed with it has expired.
	FallbackKeys [][]byte
}

// ParseKey decodes a standard base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key is not base64: %v", domain.ErrConfiguration, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: encryption key must be %d bytes, got %d", domain.ErrConfiguration, KeySize, len(key))
	}
	return key, nil
}

type encryptionMiddleware struct {
	next ports.KVClient
	// sealer encrypts; openers[0] is the same cipher, followed by the fallbacks.
	sealer  cipher.AEAD
	openers []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that encrypts values using AES-GCM.
// Keys are validated up front.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != KeySize {
		return nil, fmt.Errorf("%w: active key must be %d bytes (AES-256)", domain.ErrConfiguration, KeySize)
	}
	active, err := newGCM(config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("%w: active key: %v", domain.ErrConfiguration, err)
	}
	openers := []cipher.AEAD{active}
	for i, k := range config.FallbackKeys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("%w: fallback key %d must be %d bytes", domain.ErrConfiguration, i, KeySize)
		}
		aead, err := newGCM(k)
		if err != nil {
			return nil, fmt.Errorf("%w: fallback key %d: %v", domain.ErrConfiguration, i, err)
		}
		openers = append(openers, aead)
	}
	return func(next ports.KVClient) ports.KVClient {
		return &encryptionMiddleware{
			next:    next,
			sealer:  active,
			openers: openers,
		}
	}, nil
}

// MustEncryptionMiddleware is like NewEncryptionMiddleware but panics on invalid keys.
func MustEncryptionMiddleware(config EncryptionConfig) Middleware {
	mw, err := NewEncryptionMiddleware(config)
	if err != nil {
		panic(err)
	}
	return mw
}

func (m *encryptionMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	envelope, err := m.seal(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt value: %w", err)
	}
	return m.next.Set(ctx, key, envelope, ttl)
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) ([]byte, bool, error) {
	envelope, found, err := m.next.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}
	plain, err := m.open(envelope)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrCorruptData, err)
	}
	return plain, true, nil
}

func (m *encryptionMiddleware) Touch(ctx context.Context, key string, ttl time.Duration) error {
	return m.next.Touch(ctx, key, ttl)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

// seal lays out magic || nonce || ciphertext.
func (m *encryptionMiddleware) seal(plain []byte) ([]byte, error) {
	nonceSize := m.sealer.NonceSize()
	out := make([]byte, len(envelopeMagic)+nonceSize, len(envelopeMagic)+nonceSize+len(plain)+m.sealer.Overhead())
	copy(out, envelopeMagic)
	nonce := out[len(envelopeMagic):]
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return m.sealer.Seal(out, nonce, plain, envelopeMagic), nil
}

// open tries the active key first, then each fallback in order.
// Values written without encryption are rejected rather than passed through.
func (m *encryptionMiddleware) open(envelope []byte) ([]byte, error) {
	rest, ok := bytes.CutPrefix(envelope, envelopeMagic)
	if !ok {
		return nil, errors.New("value is missing encryption envelope")
	}
	for _, aead := range m.openers {
		n := aead.NonceSize()
		if len(rest) < n+aead.Overhead() {
			return nil, fmt.Errorf("envelope truncated at %d bytes", len(envelope))
		}
		if plain, err := aead.Open(nil, rest[:n], rest[n:], envelopeMagic); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("no configured key opens the value")
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
