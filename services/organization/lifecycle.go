package organization

import (
	"context"
	"errors"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/audit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Revoker is the slice of the token service the lifecycle drives.
type Revoker interface {
	SetOrgEpoch(ctx context.Context, orgID uuid.UUID, epoch int64) error
	MarkOrgDisabled(ctx context.Context, orgID uuid.UUID) error
	MarkOrgEnabled(ctx context.Context, orgID uuid.UUID) error
	RevokeAllForOrg(ctx context.Context, orgID uuid.UUID) (int, error)
}

// Lifecycle creates organizations and moves them between statuses. Every
// transition bumps the org's auth epoch in the primary store before the
// revocation store learns about it.
type Lifecycle struct {
	orgs        repositories.OrganizationRepository
	memberships repositories.MembershipRepository
	invites     repositories.InviteRepository
	txMgr       repositories.TransactionManager
	revoker     Revoker
	audit       *audit.AuditService
	logger      *zap.Logger
	now         func() time.Time
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	revoker Revoker,
	auditService *audit.AuditService,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		orgs:        repos.Organizations,
		memberships: repos.Memberships,
		invites:     repos.Invites,
		txMgr:       txMgr,
		revoker:     revoker,
		audit:       auditService,
		logger:      logger,
		now:         time.Now,
	}
}

// Create creates an ACTIVE organization with a slug derived from name
func (l *Lifecycle) Create(ctx context.Context, name string, actorID uuid.UUID) (*models.Organization, error) {
	slug := models.Slugify(name)
	if slug == "" {
		return nil, services.ErrInvalidSlug
	}

	org := models.NewOrganization(name, slug)
	if err := l.orgs.Create(ctx, org); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateSlug.WithDetail("slug", slug)
		}
		return nil, services.WrapInternal("create organization", err)
	}

	if err := l.revoker.SetOrgEpoch(ctx, org.ID, org.AuthEpoch); err != nil {
		l.logger.Warn("failed to publish epoch of new organization", zap.String("org_id", org.ID.String()), zap.Error(err))
	}

	l.logger.Info("organization created", zap.String("org_id", org.ID.String()), zap.String("slug", slug))
	l.audit.LogOrgCreated(ctx, org, actorID)
	return org, nil
}

// Get returns an organization by id
func (l *Lifecycle) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	org, err := l.orgs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrganizationNotFound
		}
		return nil, services.WrapInternal("load organization", err)
	}
	return org, nil
}

// List returns organizations newest first
func (l *Lifecycle) List(ctx context.Context, limit, offset int) ([]*models.Organization, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	orgs, err := l.orgs.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("list organizations", err)
	}
	return orgs, nil
}

// Disable moves an ACTIVE org to DISABLED. The new epoch and the disabled
// marker are published before every indexed session is purged.
func (l *Lifecycle) Disable(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error) {
	org, from, err := l.transition(ctx, id, models.OrgStatusDisabled, 0, nil, models.OrgStatusActive)
	if err != nil {
		return nil, err
	}
	purged, err := l.revokeAccess(ctx, org)
	if err != nil {
		return nil, err
	}
	l.audit.LogOrgTransition(ctx, models.AuditActionOrgDisabled, org, from, actorID, purged)
	return org, nil
}

// Delete soft-deletes an org and removes all of its memberships and pending
// invites in the same transaction, then revokes access like Disable.
func (l *Lifecycle) Delete(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error) {
	removeMembers := func(txCtx context.Context, org *models.Organization) error {
		n, err := l.memberships.DeleteByOrg(txCtx, org.ID)
		if err != nil {
			return services.WrapInternal("delete memberships", err)
		}
		invites, err := l.invites.DeletePendingByOrg(txCtx, org.ID)
		if err != nil {
			return services.WrapInternal("delete pending invites", err)
		}
		l.logger.Info("memberships removed",
			zap.String("org_id", org.ID.String()),
			zap.Int64("count", n),
			zap.Int64("pending_invites", invites))
		return nil
	}

	org, from, err := l.transition(ctx, id, models.OrgStatusDeleted, 0, removeMembers, models.OrgStatusActive, models.OrgStatusDisabled)
	if err != nil {
		return nil, err
	}
	purged, err := l.revokeAccess(ctx, org)
	if err != nil {
		return nil, err
	}
	l.audit.LogOrgTransition(ctx, models.AuditActionOrgDeleted, org, from, actorID, purged)
	return org, nil
}

// Enable moves a DISABLED org back to ACTIVE with a fresh epoch, so no
// session minted before the disable becomes valid again.
func (l *Lifecycle) Enable(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error) {
	org, from, err := l.transition(ctx, id, models.OrgStatusActive, l.now().UnixMilli(), nil, models.OrgStatusDisabled)
	if err != nil {
		return nil, err
	}
	if err := l.revoker.SetOrgEpoch(ctx, org.ID, org.AuthEpoch); err != nil {
		return nil, err
	}
	if err := l.revoker.MarkOrgEnabled(ctx, org.ID); err != nil {
		return nil, err
	}
	l.audit.LogOrgTransition(ctx, models.AuditActionOrgEnabled, org, from, actorID, 0)
	return org, nil
}

// Undelete restores a DELETED org to DISABLED. It stays marked disabled
// until enabled explicitly.
func (l *Lifecycle) Undelete(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error) {
	org, from, err := l.transition(ctx, id, models.OrgStatusDisabled, l.now().UnixMilli(), nil, models.OrgStatusDeleted)
	if err != nil {
		return nil, err
	}
	if err := l.revoker.SetOrgEpoch(ctx, org.ID, org.AuthEpoch); err != nil {
		return nil, err
	}
	if err := l.revoker.MarkOrgDisabled(ctx, org.ID); err != nil {
		return nil, err
	}
	l.audit.LogOrgTransition(ctx, models.AuditActionOrgRestored, org, from, actorID, 0)
	return org, nil
}

// revokeAccess publishes the epoch and the disabled marker, then purges.
func (l *Lifecycle) revokeAccess(ctx context.Context, org *models.Organization) (int, error) {
	if err := l.revoker.SetOrgEpoch(ctx, org.ID, org.AuthEpoch); err != nil {
		return 0, err
	}
	if err := l.revoker.MarkOrgDisabled(ctx, org.ID); err != nil {
		return 0, err
	}
	purged, err := l.revoker.RevokeAllForOrg(ctx, org.ID)
	if err != nil {
		return 0, err
	}
	l.logger.Info("organization access revoked",
		zap.String("org_id", org.ID.String()),
		zap.String("status", string(org.Status)),
		zap.Int64("auth_epoch", org.AuthEpoch),
		zap.Int("sessions_purged", purged),
	)
	return purged, nil
}

// transition runs the conditional status update, plus extra, in one
// transaction. allowed lists the statuses the org may currently hold.
func (l *Lifecycle) transition(
	ctx context.Context,
	id uuid.UUID,
	to models.OrgStatus,
	minEpoch int64,
	extra func(ctx context.Context, org *models.Organization) error,
	allowed ...models.OrgStatus,
) (*models.Organization, models.OrgStatus, error) {
	var from models.OrgStatus

	org, err := services.WithTransactionResult(ctx, l.txMgr, func(txCtx context.Context, _ repositories.Transaction) (*models.Organization, error) {
		current, err := l.orgs.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrOrganizationNotFound
			}
			return nil, services.WrapInternal("load organization", err)
		}

		if !statusIn(current.Status, allowed) {
			return nil, services.ErrInvalidTransition.
				WithDetail("from", current.Status).
				WithDetail("to", to)
		}
		from = current.Status

		updated, err := l.orgs.Transition(txCtx, id, current.Status, to, minEpoch)
		if err != nil {
			switch {
			case errors.Is(err, repositories.ErrConflict):
				return nil, services.ErrInvalidTransition.Wrap(err)
			case errors.Is(err, repositories.ErrNotFound):
				return nil, services.ErrOrganizationNotFound
			default:
				return nil, services.WrapInternal("transition organization", err)
			}
		}

		if extra != nil {
			if err := extra(txCtx, updated); err != nil {
				return nil, err
			}
		}
		return updated, nil
	})
	if err != nil {
		return nil, "", err
	}

	l.logger.Info("organization transitioned",
		zap.String("org_id", org.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(org.Status)),
		zap.Int64("auth_epoch", org.AuthEpoch),
	)
	return org, from, nil
}

func statusIn(status models.OrgStatus, allowed []models.OrgStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}
