package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrgStatus is the lifecycle state of an organization
type OrgStatus string

const (
	OrgStatusActive   OrgStatus = "ACTIVE"
	OrgStatusDisabled OrgStatus = "DISABLED"
	OrgStatusDeleted  OrgStatus = "DELETED"
)

// InitialAuthEpoch is the epoch stamped on a freshly created organization.
const InitialAuthEpoch int64 = 1

// Organization represents a tenant in the multi-tenant system
type Organization struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"` // URL-friendly identifier
	Status    OrgStatus `json:"status" db:"status"`
	AuthEpoch int64     `json:"auth_epoch" db:"auth_epoch"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}

// NewOrganization creates a new active Organization at the initial epoch
func NewOrganization(name, slug string) *Organization {
	now := time.Now()
	return &Organization{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Slug:      slug,
		Status:    OrgStatusActive,
		AuthEpoch: InitialAuthEpoch,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive returns true if sessions scoped to the org may be honoured
func (o *Organization) IsActive() bool {
	return o.Status == OrgStatusActive
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-friendly identifier from an organization name.
func Slugify(name string) string {
	slug := slugInvalidChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 100 {
		slug = strings.TrimRight(slug[:100], "-")
	}
	return slug
}
