package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a user within an organization
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a role a membership can hold.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Membership scopes a User into an Organization with a role.
// (UserID, OrgID) is unique.
type Membership struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	OrgID     uuid.UUID `json:"org_id" db:"org_id"`
	Role      Role      `json:"role" db:"role"`
	Disabled  bool      `json:"disabled" db:"disabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Membership model
func (Membership) TableName() string {
	return "memberships"
}

// NewMembership creates a new enabled Membership
func NewMembership(userID, orgID uuid.UUID, role Role) *Membership {
	now := time.Now()
	return &Membership{
		ID:        uuid.New(),
		UserID:    userID,
		OrgID:     orgID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasRole returns true if the membership holds one of roles
func (m *Membership) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if m.Role == r {
			return true
		}
	}
	return false
}

// MemberView joins a membership with the user it belongs to.
type MemberView struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Disabled   bool      `json:"disabled"`
	JoinedAt   time.Time `json:"joined_at"`
	HasAccount bool      `json:"has_account"`
}
