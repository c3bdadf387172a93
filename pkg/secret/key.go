// Package secret encrypts and decrypts the log lines shipped to plugins.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const redacted = "[SECRET]"

// Key is a symmetric key. It never prints its bytes.
type Key []byte

// ParseKey decodes a hex-encoded 32-byte key.
func ParseKey(s string) (Key, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
	}
	return Key(raw), nil
}

// GenerateKey returns a fresh random key.
func GenerateKey() (Key, error) {
	k := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return Key(k), nil
}

// Hex returns the hex encoding. Use it only to write key files.
func (k Key) Hex() string { return hex.EncodeToString(k) }

func (k Key) String() string { return redacted }

// Format keeps %v, %#v and friends from leaking key bytes.
func (k Key) Format(f fmt.State, _ rune) { _, _ = io.WriteString(f, redacted) }

func (k Key) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

func (k Key) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Zero overwrites the key bytes.
func (k Key) Zero() {
	for i := range k {
		k[i] = 0
	}
}
