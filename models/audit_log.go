package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionOrgCreated        AuditAction = "org_created"
	AuditActionOrgDisabled       AuditAction = "org_disabled"
	AuditActionOrgEnabled        AuditAction = "org_enabled"
	AuditActionOrgDeleted        AuditAction = "org_deleted"
	AuditActionOrgRestored       AuditAction = "org_restored"
	AuditActionInviteCreated     AuditAction = "invite_created"
	AuditActionInviteAccepted    AuditAction = "invite_accepted"
	AuditActionMemberRoleChanged AuditAction = "member_role_changed"
	AuditActionMemberDisabled    AuditAction = "member_disabled"
	AuditActionMemberEnabled     AuditAction = "member_enabled"
	AuditActionAdminAdded        AuditAction = "admin_added"
	AuditActionAdminRemoved      AuditAction = "admin_removed"
	AuditActionPasswordReset     AuditAction = "password_reset"
	AuditActionUserDisabled      AuditAction = "user_disabled"
	AuditActionUserEnabled       AuditAction = "user_enabled"
	AuditActionLogin             AuditAction = "login"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrgID        *uuid.UUID      `json:"org_id,omitempty" db:"org_id"` // nil for super-admin scoped events
	ActorID      *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // organization, membership, invite, user
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
}

// WithOrg sets the organization ID
func (a *AuditLog) WithOrg(orgID uuid.UUID) *AuditLog {
	a.OrgID = &orgID
	return a
}

// WithActor sets the acting user ID
func (a *AuditLog) WithActor(actorID uuid.UUID) *AuditLog {
	if actorID != uuid.Nil {
		a.ActorID = &actorID
	}
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
