// Package keys implements the symmetric payload codec and the credential key
// derivation used by the sync engine. The engine never holds raw wallet key
// material; the only key it owns is the derived encryption key.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrAuthentication is returned when the integrity tag does not verify.
	// A wrong key and corrupted data are indistinguishable by design.
	ErrAuthentication = errors.New("payload authentication failed")

	// ErrInvalidKey is returned for keys that are not 32 bytes.
	ErrInvalidKey = errors.New("invalid encryption key")
)

// Wire layout: nonce (12 bytes) ‖ tag (16 bytes) ‖ ciphertext, AES-256-GCM.
const (
	NonceSize = 12
	TagSize   = 16
	KeySize   = 32
)

// Encrypt serializes the payload as JSON and seals it under key. A fresh
// nonce is drawn from crypto/rand on every call; nonce reuse under the same
// key is prevented by construction, not convention.
func Encrypt(key []byte, payload map[string]any) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// gcm.Seal emits ciphertext‖tag; the wire layout wants nonce‖tag‖ciphertext.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ct := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, NonceSize+TagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// Decrypt opens a sealed payload and deserializes the JSON object. Returns
// ErrAuthentication when the tag does not verify.
func Decrypt(key []byte, data []byte) (map[string]any, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	if len(data) < NonceSize+TagSize {
		return nil, ErrAuthentication
	}

	nonce := data[:NonceSize]
	tag := data[NonceSize : NonceSize+TagSize]
	ct := data[NonceSize+TagSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	var payload map[string]any
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to deserialize payload: %w", err)
	}
	return payload, nil
}
