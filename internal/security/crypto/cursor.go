package crypto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// cursorClaims embeds an arbitrary canonical-JSON payload inside a standard
// JWT claim set so pagination cursors and similar opaque tokens reuse the
// same signing, expiry, and constant-time verification path as every other
// HS256 token in the module instead of a bespoke envelope format.
type cursorClaims struct {
	Payload json.RawMessage `json:"p"`
	jwt.RegisteredClaims
}

// SignCursor produces a signed, URL-safe opaque token carrying data, expiring
// after ttl. The caller treats the result as opaque; only VerifyCursor with
// the matching secret can recover data.
func SignCursor(data interface{}, secret string, ttl time.Duration) (string, error) {
	payload, err := CanonicalJSON(data)
	if err != nil {
		return "", fmt.Errorf("crypto: canonicalize cursor payload: %w", err)
	}
	claims := cursorClaims{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyCursor validates a token produced by SignCursor and decodes its
// payload into dst. It rejects expired, malformed, or mis-signed tokens.
func VerifyCursor(token, secret string, dst interface{}) error {
	parsed, err := jwt.ParseWithClaims(token, &cursorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("crypto: unexpected cursor signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("crypto: invalid cursor: %w", err)
	}
	claims, ok := parsed.Claims.(*cursorClaims)
	if !ok || !parsed.Valid {
		return fmt.Errorf("crypto: invalid cursor claims")
	}
	if err := json.Unmarshal(claims.Payload, dst); err != nil {
		return fmt.Errorf("crypto: decode cursor payload: %w", err)
	}
	return nil
}
