package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Domain tags keep the published lookup key algebraically unrelated to the
// device-only encryption key. Changing any of these is a breaking change to
// every stored credential mapping.
const (
	saltDomainTag       = "shelf/credential-salt/v1"
	lookupKeyDomainTag  = "shelf/lookup-key/v1"
	encryptionDomainTag = "shelf/encryption-key/v1"
)

// Credentials holds the two keys derived from an identifier and a secret.
// LookupKey is published in plaintext as a ledger tag; EncryptionKey never
// leaves the device.
type Credentials struct {
	LookupKey     string // 64 lowercase hex characters
	EncryptionKey []byte // 32-byte AES-256 key
}

// DeriveCredentials derives the lookup and encryption keys from a low-entropy
// secret and an identifier. The identifier is normalized (trimmed,
// lowercased) so case and whitespace variants of the same email derive the
// same keys. The iteration count is a deployment policy constant and is not
// part of the hash domain: raising it changes the derived keys' cost, never
// their relationship to the domain tags.
func DeriveCredentials(identifier, secret string, iterations int) Credentials {
	normalized := strings.ToLower(strings.TrimSpace(identifier))

	salt := sha256.Sum256([]byte(normalized + saltDomainTag))
	master := pbkdf2.Key([]byte(secret), salt[:], iterations, KeySize, sha256.New)

	lookup := sha256.Sum256(append(append([]byte{}, master...), []byte(lookupKeyDomainTag)...))
	encKey := sha256.Sum256(append(append([]byte{}, master...), []byte(encryptionDomainTag)...))

	return Credentials{
		LookupKey:     hex.EncodeToString(lookup[:]),
		EncryptionKey: encKey[:],
	}
}

// ValidLookupKey reports whether s is exactly 64 lowercase hex characters.
// Untrusted lookup keys must pass this before being interpolated into any
// query template.
func ValidLookupKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
