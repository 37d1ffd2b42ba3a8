package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite grants a future Membership to whoever redeems its token.
type Invite struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Token      string     `json:"-" db:"token"`
	Email      string     `json:"email" db:"email"`
	OrgID      uuid.UUID  `json:"org_id" db:"org_id"`
	Role       Role       `json:"role" db:"role"`
	InvitedBy  *uuid.UUID `json:"invited_by,omitempty" db:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	Accepted   bool       `json:"accepted" db:"accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Invite model
func (Invite) TableName() string {
	return "invites"
}

// NewInvite creates a pending invite that expires after ttl
func NewInvite(orgID uuid.UUID, email string, role Role, token string, ttl time.Duration) *Invite {
	now := time.Now()
	return &Invite{
		ID:        uuid.New(),
		Token:     token,
		Email:     NormalizeEmail(email),
		OrgID:     orgID,
		Role:      role,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired reports whether the invite is past its expiry at now.
func (i *Invite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
