package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Organization tests
func TestNewOrganization(t *testing.T) {
	org := NewOrganization("  Test Organization ", "test-organization")

	assert.NotEqual(t, uuid.Nil, org.ID)
	assert.Equal(t, "Test Organization", org.Name)
	assert.Equal(t, "test-organization", org.Slug)
	assert.Equal(t, OrgStatusActive, org.Status)
	assert.Equal(t, InitialAuthEpoch, org.AuthEpoch)
	assert.True(t, org.IsActive())
	assert.Equal(t, org.CreatedAt, org.UpdatedAt)
}

func TestOrganization_IsActive(t *testing.T) {
	for _, status := range []OrgStatus{OrgStatusDisabled, OrgStatusDeleted} {
		org := &Organization{Status: status}
		assert.False(t, org.IsActive(), string(status))
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Acme Corp":            "acme-corp",
		"  Hello,  World!! ":   "hello-world",
		"already-a-slug":       "already-a-slug",
		"Ünïcode & Co":         "n-code-co",
		"---":                  "",
	}
	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, Slugify(input))
		})
	}
}

func TestOrganization_TableName(t *testing.T) {
	assert.Equal(t, "organizations", Organization{}.TableName())
}

// User tests
func TestNewUser(t *testing.T) {
	user := NewUser("  Alice@Example.COM ", " Alice ")

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.False(t, user.HasPassword())
	assert.False(t, user.IsSuperAdmin)
	assert.False(t, user.Disabled)
}

func TestUser_SetPasswordHash(t *testing.T) {
	user := NewUser("a@example.com", "A")
	before := user.UpdatedAt

	time.Sleep(time.Millisecond)
	user.SetPasswordHash("$argon2id$hash")

	assert.True(t, user.HasPassword())
	assert.Equal(t, "$argon2id$hash", *user.PasswordHash)
	assert.True(t, user.UpdatedAt.After(before))
}

func TestUser_PasswordHashNotSerialized(t *testing.T) {
	user := NewUser("a@example.com", "A")
	user.SetPasswordHash("secret-hash")

	data, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash")
}

func TestUser_TableName(t *testing.T) {
	assert.Equal(t, "users", User{}.TableName())
}

// Membership tests
func TestNewMembership(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	m := NewMembership(userID, orgID, RoleUser)

	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, userID, m.UserID)
	assert.Equal(t, orgID, m.OrgID)
	assert.Equal(t, RoleUser, m.Role)
	assert.False(t, m.Disabled)
}

func TestMembership_HasRole(t *testing.T) {
	m := NewMembership(uuid.New(), uuid.New(), RoleUser)

	assert.True(t, m.HasRole(RoleUser))
	assert.True(t, m.HasRole(RoleAdmin, RoleUser))
	assert.False(t, m.HasRole(RoleAdmin))
	assert.False(t, m.HasRole())
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("OWNER").Valid())
	assert.False(t, Role("admin").Valid())
}

// Invite tests
func TestNewInvite(t *testing.T) {
	orgID := uuid.New()
	inv := NewInvite(orgID, "Bob@Example.com", RoleUser, "tok", time.Hour)

	assert.Equal(t, "bob@example.com", inv.Email)
	assert.Equal(t, orgID, inv.OrgID)
	assert.Equal(t, "tok", inv.Token)
	assert.False(t, inv.Accepted)
	assert.WithinDuration(t, time.Now().Add(time.Hour), inv.ExpiresAt, time.Second)
}

func TestInvite_IsExpired(t *testing.T) {
	inv := NewInvite(uuid.New(), "b@example.com", RoleUser, "tok", time.Minute)

	assert.False(t, inv.IsExpired(time.Now()))
	assert.True(t, inv.IsExpired(inv.ExpiresAt))
	assert.True(t, inv.IsExpired(time.Now().Add(2*time.Minute)))
}

func TestInvite_TokenNotSerialized(t *testing.T) {
	inv := NewInvite(uuid.New(), "b@example.com", RoleUser, "very-secret-token", time.Minute)

	data, err := json.Marshal(inv)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "very-secret-token")
}

// AuditLog tests
func TestNewAuditLog(t *testing.T) {
	log := NewAuditLog(AuditActionOrgDisabled, "organization")

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, AuditActionOrgDisabled, log.Action)
	assert.Equal(t, "organization", log.ResourceType)
	assert.Nil(t, log.OrgID)
	assert.False(t, log.Timestamp.IsZero())
}

func TestAuditLog_BuilderMethods(t *testing.T) {
	orgID, actorID, resourceID := uuid.New(), uuid.New(), uuid.New()

	log := NewAuditLog(AuditActionMemberRoleChanged, "membership").
		WithOrg(orgID).
		WithActor(actorID).
		WithResource(resourceID).
		WithDetails(map[string]interface{}{"role": "ADMIN"}).
		WithRequest("req-1", "10.0.0.1", "curl/8")

	require.NotNil(t, log.OrgID)
	assert.Equal(t, orgID, *log.OrgID)
	assert.Equal(t, actorID, *log.ActorID)
	assert.Equal(t, resourceID, *log.ResourceID)
	assert.Equal(t, "req-1", log.RequestID)
	assert.Equal(t, "10.0.0.1", log.IPAddress)
	assert.Equal(t, "curl/8", log.UserAgent)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "ADMIN", details["role"])
}

func TestAuditLog_WithActorIgnoresNil(t *testing.T) {
	log := NewAuditLog(AuditActionLogin, "user").WithActor(uuid.Nil)
	assert.Nil(t, log.ActorID)
}
