package repositories

import (
	"context"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/google/uuid"
)

// TransactionManager manages primary-store transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a primary-store transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context carrying the transaction; repositories called
	// with it join the transaction.
	Context() context.Context
}

// OrganizationRepository handles organization data operations
type OrganizationRepository interface {
	// Create creates a new organization. Returns ErrDuplicate on a slug clash.
	Create(ctx context.Context, org *models.Organization) error

	// GetByID retrieves an organization by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)

	// List retrieves organizations with pagination, newest first
	List(ctx context.Context, limit, offset int) ([]*models.Organization, error)

	// Transition atomically moves an organization from status `from` to `to`
	// and sets auth_epoch = max(auth_epoch+1, minEpoch). Returns ErrConflict
	// when the organization is no longer in `from`.
	Transition(ctx context.Context, id uuid.UUID, from, to models.OrgStatus, minEpoch int64) (*models.Organization, error)
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user. Returns ErrDuplicate on an email clash.
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by (normalized) email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update updates a user's mutable fields
	Update(ctx context.Context, user *models.User) error

	// CountSuperAdmins returns the number of super-admin accounts
	CountSuperAdmins(ctx context.Context) (int, error)
}

// MembershipRepository handles membership data operations
type MembershipRepository interface {
	// Create creates a membership. Returns ErrDuplicate if (user, org) exists.
	Create(ctx context.Context, m *models.Membership) error

	// Get retrieves the membership for (userID, orgID)
	Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error)

	// ListByUser retrieves all memberships of a user, oldest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)

	// ListMembers retrieves the members of an org joined with their user
	// record, optionally filtered by role
	ListMembers(ctx context.Context, orgID uuid.UUID, role *models.Role) ([]*models.MemberView, error)

	// Update updates role and disabled flag
	Update(ctx context.Context, m *models.Membership) error

	// DeleteByOrg removes every membership of an organization
	DeleteByOrg(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// InviteRepository handles invite data operations
type InviteRepository interface {
	// Create inserts a new invite. Returns ErrDuplicate when (email, orgID)
	// already has a pending invite.
	Create(ctx context.Context, invite *models.Invite) error

	// GetByToken retrieves an invite by its token
	GetByToken(ctx context.Context, token string) (*models.Invite, error)

	// DeletePending removes every unaccepted invite for (email, orgID)
	DeletePending(ctx context.Context, email string, orgID uuid.UUID) (int64, error)

	// DeletePendingByOrg removes every unaccepted invite of an org
	DeletePendingByOrg(ctx context.Context, orgID uuid.UUID) (int64, error)

	// MarkAccepted flags a pending invite as accepted. Returns ErrConflict if
	// it was already accepted.
	MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListPending retrieves unaccepted invites of an org, newest first
	ListPending(ctx context.Context, orgID uuid.UUID) ([]*models.Invite, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByOrg retrieves audit logs for an organization with pagination
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// RevocationStore is the fast key-value layer holding opaque sessions, the
// per-org session index, the disabled-org set and per-org epochs.
// id arguments are token digests, never raw tokens.
type RevocationStore interface {
	// SaveSession stores rec under (kind, id) with ttl and, for refresh
	// sessions that carry an org, adds it to that org's index. Applied
	// atomically.
	SaveSession(ctx context.Context, kind models.SessionKind, id string, rec *models.SessionRecord, ttl time.Duration) error

	// GetSession reads a record without consuming it. orgID must match the
	// one the record was saved with.
	GetSession(ctx context.Context, kind models.SessionKind, id string, orgID *uuid.UUID) (*models.SessionRecord, error)

	// ConsumeSession atomically reads and deletes a record, removing it from
	// orgID's index. A second call for the same id returns ErrNotFound.
	ConsumeSession(ctx context.Context, kind models.SessionKind, id string, orgID *uuid.UUID) (*models.SessionRecord, error)

	// DeleteSession removes a record and its index entry; idempotent
	DeleteSession(ctx context.Context, kind models.SessionKind, id string, orgID *uuid.UUID) error

	// PurgeOrg deletes every indexed refresh session of an org and the index
	// itself. Returns the number of keys removed.
	PurgeOrg(ctx context.Context, orgID uuid.UUID) (int, error)

	// SetOrgEpoch publishes the current epoch of an org
	SetOrgEpoch(ctx context.Context, orgID uuid.UUID, epoch int64) error

	// GetOrgEpoch returns the cached epoch; ok is false when nothing is cached
	GetOrgEpoch(ctx context.Context, orgID uuid.UUID) (epoch int64, ok bool, err error)

	// MarkOrgDisabled adds the org to the disabled set
	MarkOrgDisabled(ctx context.Context, orgID uuid.UUID) error

	// MarkOrgEnabled removes the org from the disabled set
	MarkOrgEnabled(ctx context.Context, orgID uuid.UUID) error

	// IsOrgDisabled reports disabled-set membership
	IsOrgDisabled(ctx context.Context, orgID uuid.UUID) (bool, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error
}

// Repositories aggregates all primary-store repository interfaces
type Repositories struct {
	Organizations OrganizationRepository
	Users         UserRepository
	Memberships   MembershipRepository
	Invites       InviteRepository
	AuditLogs     AuditRepository
}
