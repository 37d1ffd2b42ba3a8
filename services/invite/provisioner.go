package invite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/audit"
	"github.com/arjun-computer-geek/saas-demo/services/password"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tokenBytes = 32

	// createAttempts bounds retries when a concurrent CreateInvite for the
	// same (email, org) wins the pending-invite unique index.
	createAttempts = 3
)

// Created is a freshly created invite and the link that redeems it
type Created struct {
	Invite    *models.Invite
	InviteURL string
}

// Details is the public view of a pending invite
type Details struct {
	Email     string      `json:"email"`
	OrgID     uuid.UUID   `json:"orgId"`
	OrgName   string      `json:"orgName"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Accepted describes the outcome of redeeming an invite
type Accepted struct {
	UserID            uuid.UUID   `json:"userId"`
	OrgID             uuid.UUID   `json:"orgId"`
	Role              models.Role `json:"role"`
	AccountCreated    bool        `json:"accountCreated"`
	MembershipCreated bool        `json:"membershipCreated"`
}

// Provisioner creates and redeems invites
type Provisioner struct {
	orgs           repositories.OrganizationRepository
	users          repositories.UserRepository
	memberships    repositories.MembershipRepository
	invites        repositories.InviteRepository
	txMgr          repositories.TransactionManager
	hasher         password.Hasher
	audit          *audit.AuditService
	ttl            time.Duration
	frontendOrigin string
	logger         *zap.Logger
	now            func() time.Time
}

// NewProvisioner creates a new invite provisioner
func NewProvisioner(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	hasher password.Hasher,
	auditService *audit.AuditService,
	cfg config.InviteConfig,
	logger *zap.Logger,
) *Provisioner {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Provisioner{
		orgs:           repos.Organizations,
		users:          repos.Users,
		memberships:    repos.Memberships,
		invites:        repos.Invites,
		txMgr:          txMgr,
		hasher:         hasher,
		audit:          auditService,
		ttl:            ttl,
		frontendOrigin: strings.TrimRight(cfg.FrontendOrigin, "/"),
		logger:         logger,
		now:            time.Now,
	}
}

// CreateInvite replaces any pending invite for (email, org) with a new one
func (p *Provisioner) CreateInvite(ctx context.Context, orgID uuid.UUID, email string, role models.Role, actorID uuid.UUID) (*Created, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "email")
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, services.ErrInvalidRole
	}

	token, err := newToken()
	if err != nil {
		return nil, services.WrapInternal("generate invite token", err)
	}

	var inv *models.Invite
	for attempt := 1; ; attempt++ {
		inv, err = p.replacePending(ctx, orgID, email, role, token, actorID)
		if !errors.Is(err, repositories.ErrDuplicate) || attempt == createAttempts {
			break
		}
		p.logger.Debug("concurrent invite for the same email, retrying",
			zap.String("org_id", orgID.String()), zap.Int("attempt", attempt))
	}
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.WrapInternal("create invite", err)
		}
		return nil, err
	}

	p.audit.LogInviteCreated(ctx, inv, actorID)
	return &Created{Invite: inv, InviteURL: p.frontendOrigin + "/invite/" + token}, nil
}

// replacePending deletes any pending invite for (email, org) and inserts the
// new one in a single transaction. A raw ErrDuplicate means another writer
// inserted first and the whole transaction may be retried.
func (p *Provisioner) replacePending(ctx context.Context, orgID uuid.UUID, email string, role models.Role, token string, actorID uuid.UUID) (*models.Invite, error) {
	return services.WithTransactionResult(ctx, p.txMgr, func(txCtx context.Context, _ repositories.Transaction) (*models.Invite, error) {
		if _, err := p.orgs.GetByID(txCtx, orgID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrOrganizationNotFound
			}
			return nil, services.WrapInternal("load organization", err)
		}

		user, err := p.users.GetByEmail(txCtx, email)
		switch {
		case err == nil:
			if _, err := p.memberships.Get(txCtx, user.ID, orgID); err == nil {
				return nil, services.ErrAlreadyMember
			} else if !errors.Is(err, repositories.ErrNotFound) {
				return nil, services.WrapInternal("load membership", err)
			}
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, services.WrapInternal("load user", err)
		}

		replaced, err := p.invites.DeletePending(txCtx, email, orgID)
		if err != nil {
			return nil, services.WrapInternal("delete pending invites", err)
		}
		if replaced > 0 {
			p.logger.Info("pending invites replaced", zap.String("org_id", orgID.String()), zap.Int64("count", replaced))
		}

		inv := models.NewInvite(orgID, email, role, token, p.ttl)
		if actorID != uuid.Nil {
			inv.InvitedBy = &actorID
		}
		if err := p.invites.Create(txCtx, inv); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return nil, err
			}
			return nil, services.WrapInternal("create invite", err)
		}
		return inv, nil
	})
}

// GetInvite returns the public details of a pending invite
func (p *Provisioner) GetInvite(ctx context.Context, token string) (*Details, error) {
	inv, err := p.pending(ctx, token)
	if err != nil {
		return nil, err
	}

	org, err := p.orgs.GetByID(ctx, inv.OrgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrInviteNotFound
		}
		return nil, services.WrapInternal("load organization", err)
	}

	return &Details{
		Email:     inv.Email,
		OrgID:     inv.OrgID,
		OrgName:   org.Name,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

// AcceptInvite redeems an invite of an ACTIVE org. The user is created or
// claimed, the membership created if absent, and the invite marked accepted
// last, all in one transaction. Redeeming the same token twice yields one
// membership.
func (p *Provisioner) AcceptInvite(ctx context.Context, token, name, newPassword string) (*Accepted, error) {
	var inv *models.Invite

	result, err := services.WithTransactionResult(ctx, p.txMgr, func(txCtx context.Context, _ repositories.Transaction) (*Accepted, error) {
		var err error
		inv, err = p.pending(txCtx, token)
		if err != nil {
			return nil, err
		}

		org, err := p.orgs.GetByID(txCtx, inv.OrgID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrInviteNotFound
			}
			return nil, services.WrapInternal("load organization", err)
		}
		if !org.IsActive() {
			return nil, services.ErrOrgDisabled
		}

		out := &Accepted{OrgID: inv.OrgID, Role: inv.Role}

		user, err := p.users.GetByEmail(txCtx, inv.Email)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			hash, err := p.hash(newPassword)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(name) == "" {
				name = strings.SplitN(inv.Email, "@", 2)[0]
			}
			user = models.NewUser(inv.Email, name)
			user.SetPasswordHash(hash)
			if err := p.users.Create(txCtx, user); err != nil {
				if errors.Is(err, repositories.ErrDuplicate) {
					// a concurrent accept of this invite created the account first
					return nil, services.ErrInviteNotFound.Wrap(err)
				}
				return nil, services.WrapInternal("create user", err)
			}
			out.AccountCreated = true
		case err != nil:
			return nil, services.WrapInternal("load user", err)
		case user.IsSuperAdmin:
			return nil, services.ErrSuperAdminOrgForbidden
		case !user.HasPassword():
			hash, err := p.hash(newPassword)
			if err != nil {
				return nil, err
			}
			user.SetPasswordHash(hash)
			if strings.TrimSpace(name) != "" {
				user.Name = strings.TrimSpace(name)
			}
			if err := p.users.Update(txCtx, user); err != nil {
				return nil, services.WrapInternal("claim user", err)
			}
		}
		out.UserID = user.ID

		existing, err := p.memberships.Get(txCtx, user.ID, inv.OrgID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			if err := p.memberships.Create(txCtx, models.NewMembership(user.ID, inv.OrgID, inv.Role)); err != nil {
				if errors.Is(err, repositories.ErrDuplicate) {
					return nil, services.ErrAlreadyMember.Wrap(err)
				}
				return nil, services.WrapInternal("create membership", err)
			}
			out.MembershipCreated = true
		case err != nil:
			return nil, services.WrapInternal("load membership", err)
		default:
			out.Role = existing.Role
		}

		if err := p.invites.MarkAccepted(txCtx, inv.ID, p.now()); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				return nil, services.ErrInviteNotFound.Wrap(err)
			}
			return nil, services.WrapInternal("mark invite accepted", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("invite accepted",
		zap.String("org_id", result.OrgID.String()),
		zap.String("user_id", result.UserID.String()),
		zap.Bool("membership_created", result.MembershipCreated))
	p.audit.LogInviteAccepted(ctx, inv, result.UserID, result.MembershipCreated)
	return result, nil
}

// ListInvites lists the pending invites of an org
func (p *Provisioner) ListInvites(ctx context.Context, orgID uuid.UUID) ([]*models.Invite, error) {
	invites, err := p.invites.ListPending(ctx, orgID)
	if err != nil {
		return nil, services.WrapInternal("list invites", err)
	}
	return invites, nil
}

// pending loads an unaccepted, unexpired invite
func (p *Provisioner) pending(ctx context.Context, token string) (*models.Invite, error) {
	if token == "" {
		return nil, services.ErrInviteNotFound
	}
	inv, err := p.invites.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrInviteNotFound
		}
		return nil, services.WrapInternal("load invite", err)
	}
	if inv.Accepted {
		return nil, services.ErrInviteNotFound
	}
	if inv.IsExpired(p.now()) {
		return nil, services.ErrInviteExpired
	}
	return inv, nil
}

func (p *Provisioner) hash(pw string) (string, error) {
	if len(pw) < password.MinLength {
		return "", services.ErrPasswordTooShort
	}
	hash, err := p.hasher.Hash(pw)
	if err != nil {
		return "", services.WrapInternal("hash password", err)
	}
	return hash, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
