package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a global identity. Tenant scoping lives on Membership.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash *string   `json:"-" db:"password_hash"` // nil until the account is claimed
	IsSuperAdmin bool      `json:"is_super_admin" db:"is_super_admin"`
	Disabled     bool      `json:"disabled" db:"disabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance without a password
func NewUser(email, name string) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New(),
		Email:     NormalizeEmail(email),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasPassword reports whether the account has been claimed.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// SetPasswordHash stores an already-hashed password.
func (u *User) SetPasswordHash(hash string) {
	u.PasswordHash = &hash
	u.UpdatedAt = time.Now()
}

// NormalizeEmail lower-cases and trims an address so the unique index is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
