package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionKind distinguishes the records kept in the revocation store.
type SessionKind string

const (
	// SessionKindRefresh is an opaque, single-use refresh token.
	SessionKindRefresh SessionKind = "refresh"
	// SessionKindAccess is an opaque access session id (session-record auth mode).
	SessionKindAccess SessionKind = "session"
)

// SessionRecord is the payload stored under a refresh token or session id.
// It never leaves the server.
type SessionRecord struct {
	UserID    uuid.UUID  `json:"uid"`
	OrgID     *uuid.UUID `json:"oid,omitempty"`
	OrgEpoch  int64      `json:"epoch"`
	IsSuper   bool       `json:"super"`
	IssuedAt  time.Time  `json:"iat"`
	ExpiresAt time.Time  `json:"exp"`
}

// IsExpired reports whether the record is past its expiry at now.
func (s *SessionRecord) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
