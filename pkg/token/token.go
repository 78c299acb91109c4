// Package token inspects bearer tokens without verifying them. The backend is
// the only party that validates signatures; everything here is a UI-grade
// heuristic for classifying a session when the backend cannot be reached.
package token

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	oerrors "github.com/campex/campex/pkg/errors"
)

// FingerprintLength matches the original cache key derivation: the last 8
// characters of the token. Not collision-resistant, a cache key only.
const FingerprintLength = 8

func Fingerprint(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if len(token) <= FingerprintLength {
		return token
	}
	return token[len(token)-FingerprintLength:]
}

// Claims is the decoded, unverified payload of a JWT-shaped token.
type Claims map[string]any

// DecodeClaims parses the token's payload segment without checking the
// signature. Explicitly not a security boundary.
func DecodeClaims(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, oerrors.Wrap(oerrors.CodeInvalidToken, "empty token", nil)
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, oerrors.Wrap(oerrors.CodeInvalidToken, "failed to decode token payload", err)
	}

	return Claims(claims), nil
}

func (c Claims) stringValue(key string) string {
	value, ok := c[key]
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func (c Claims) has(key string) bool {
	value, ok := c[key]
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func (c Claims) Subject() string {
	return c.stringValue("sub")
}

func (c Claims) Username() string {
	return c.stringValue("username")
}

// HasTelegramIdentity reports whether the payload carries any of the Telegram
// identity fields the login flow issues for regular users.
func (c Claims) HasTelegramIdentity() bool {
	return c.has("telegram_id") || c.has("telegramId") || c.has("tg_id")
}

// LooksLikeLegacyAdmin reports whether the payload has the legacy admin token
// shape: an admin-ish subject/username or an explicit admin flag, and no
// Telegram identity.
func (c Claims) LooksLikeLegacyAdmin() bool {
	if c.HasTelegramIdentity() {
		return false
	}

	if flag, ok := c["is_admin"].(bool); ok && flag {
		return true
	}
	if strings.EqualFold(c.Subject(), "admin") {
		return true
	}
	return strings.EqualFold(c.Username(), "admin")
}
