package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	secretLen       = 32
	refreshTokenLen = 16 + secretLen
)

// newRefreshToken returns base64url(orgID || 32 random bytes). A nil org
// encodes as the zero UUID.
func newRefreshToken(orgID *uuid.UUID) (string, error) {
	buf := make([]byte, refreshTokenLen)
	if orgID != nil {
		copy(buf[:16], orgID[:])
	}
	if _, err := io.ReadFull(rand.Reader, buf[16:]); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// orgHint extracts the org id a refresh token was minted for. It is a
// routing hint only and carries no authority. ok is false for tokens that
// are not well-formed.
func orgHint(token string) (orgID *uuid.UUID, ok bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenLen {
		return nil, false
	}
	id, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return nil, false
	}
	if id == uuid.Nil {
		return nil, true
	}
	return &id, true
}

// NewSessionID returns an opaque 256-bit session id
func NewSessionID() (string, error) {
	buf := make([]byte, secretLen)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Digest is the store key for a raw token. Raw tokens are never persisted.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
