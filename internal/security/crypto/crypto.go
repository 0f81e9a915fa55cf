// Package crypto centralizes the module's hashing, HMAC signing, and
// token-handling primitives so every engine authenticates and signs data
// the same way.
package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HMACSign returns the lowercase hex HMAC-SHA256 signature of data under secret.
func HMACSign(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HMACVerify reports whether signature is the valid HMAC-SHA256 of data under
// secret, using a constant-time comparison.
func HMACVerify(data []byte, signature, secret string) bool {
	expected := HMACSign(data, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// TokenHash hashes an opaque bearer token for storage. Sessions are looked up
// and revoked by this hash; the raw token is never persisted, so a database
// compromise alone cannot be used to authenticate.
func TokenHash(token string) string {
	return SHA256Hex([]byte(token))
}

// RequestHash hashes a request body, optionally combined with a canonical
// encoding of selected headers, for idempotency comparison. Two requests with
// the same idempotency key must produce the same hash or the engine rejects
// the second as a conflict.
func RequestHash(body []byte, headers map[string]string) string {
	if len(headers) == 0 {
		return SHA256Hex(body)
	}
	canon, _ := CanonicalJSON(headers)
	combined := append(append([]byte{}, body...), '|')
	combined = append(combined, canon...)
	return SHA256Hex(combined)
}

// RandomToken returns a URL-safe, base64-encoded random token with n bytes of
// entropy. 32 bytes (256 bits) is the module default for idempotency keys and
// webhook nonces.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto: read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CanonicalJSON serializes v deterministically: object keys are sorted and
// there is no insignificant whitespace. Every HMAC-signed payload in this
// module (audit entries, cursors) is signed over its canonical form so that
// signing and verification never disagree over key order.
func CanonicalJSON(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// normalize round-trips v through encoding/json to flatten it into
// map[string]interface{}/[]interface{}/scalars, which Marshal then emits with
// sorted map keys (Go's default for map[string]interface{}).
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal for canonicalization: %w", err)
	}
	var out interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("crypto: decode for canonicalization: %w", err)
	}
	return out, nil
}

// SortedKeys returns the keys of m in ascending order, used wherever a
// caller needs deterministic iteration over a header or metadata map before
// hashing it directly (bypassing CanonicalJSON's json.Marshal round trip).
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
