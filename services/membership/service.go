package membership

import (
	"context"
	"errors"
	"strings"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/audit"
	"github.com/arjun-computer-geek/saas-demo/services/password"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service manages memberships for org admins and super-admins.
// Nothing here touches the revocation store: a disabled membership is
// enforced per request by the role middleware and at login.
type Service struct {
	orgs        repositories.OrganizationRepository
	users       repositories.UserRepository
	memberships repositories.MembershipRepository
	txMgr       repositories.TransactionManager
	hasher      password.Hasher
	audit       *audit.AuditService
	logger      *zap.Logger
}

// NewService creates a new membership service
func NewService(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	hasher password.Hasher,
	auditService *audit.AuditService,
	logger *zap.Logger,
) *Service {
	return &Service{
		orgs:        repos.Organizations,
		users:       repos.Users,
		memberships: repos.Memberships,
		txMgr:       txMgr,
		hasher:      hasher,
		audit:       auditService,
		logger:      logger,
	}
}

// ListMembers lists the members of an org, optionally filtered by role
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID, role *models.Role) ([]*models.MemberView, error) {
	if role != nil && !role.Valid() {
		return nil, services.ErrInvalidRole
	}
	members, err := s.memberships.ListMembers(ctx, orgID, role)
	if err != nil {
		return nil, services.WrapInternal("list members", err)
	}
	return members, nil
}

// ListAdmins lists the ADMIN members of an org
func (s *Service) ListAdmins(ctx context.Context, orgID uuid.UUID) ([]*models.MemberView, error) {
	if _, err := s.loadOrg(ctx, orgID); err != nil {
		return nil, err
	}
	role := models.RoleAdmin
	return s.ListMembers(ctx, orgID, &role)
}

// ListOrgMembers lists all members of an org for a super-admin
func (s *Service) ListOrgMembers(ctx context.Context, orgID uuid.UUID) ([]*models.MemberView, error) {
	if _, err := s.loadOrg(ctx, orgID); err != nil {
		return nil, err
	}
	return s.ListMembers(ctx, orgID, nil)
}

// UpdateRole changes a member's role
func (s *Service) UpdateRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role, actorID uuid.UUID) (*models.Membership, error) {
	if !role.Valid() {
		return nil, services.ErrInvalidRole
	}
	m, err := s.get(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	m.Role = role
	if err := s.update(ctx, m); err != nil {
		return nil, err
	}
	s.audit.LogMembershipChanged(ctx, models.AuditActionMemberRoleChanged, m, actorID)
	return m, nil
}

// SetDisabled sets a membership's disabled flag, or toggles it when
// disabled is nil.
func (s *Service) SetDisabled(ctx context.Context, orgID, userID uuid.UUID, disabled *bool, actorID uuid.UUID) (*models.Membership, error) {
	m, err := s.get(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if disabled == nil {
		m.Disabled = !m.Disabled
	} else {
		m.Disabled = *disabled
	}
	if err := s.update(ctx, m); err != nil {
		return nil, err
	}

	action := models.AuditActionMemberEnabled
	if m.Disabled {
		action = models.AuditActionMemberDisabled
	}
	s.logger.Info("membership disabled flag changed",
		zap.String("org_id", orgID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("disabled", m.Disabled))
	s.audit.LogMembershipChanged(ctx, action, m, actorID)
	return m, nil
}

// AddAdmin grants ADMIN in an org to the user with email, creating the
// user without a password when absent.
func (s *Service) AddAdmin(ctx context.Context, orgID uuid.UUID, email, name string, actorID uuid.UUID) (*models.Membership, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "email")
	}

	m, err := services.WithTransactionResult(ctx, s.txMgr, func(txCtx context.Context, _ repositories.Transaction) (*models.Membership, error) {
		if _, err := s.loadOrg(txCtx, orgID); err != nil {
			return nil, err
		}

		user, err := s.users.GetByEmail(txCtx, email)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			if strings.TrimSpace(name) == "" {
				name = strings.SplitN(email, "@", 2)[0]
			}
			user = models.NewUser(email, name)
			if err := s.users.Create(txCtx, user); err != nil {
				return nil, services.WrapInternal("create user", err)
			}
		case err != nil:
			return nil, services.WrapInternal("load user", err)
		}
		if user.IsSuperAdmin {
			return nil, services.ErrSuperAdminOrgForbidden
		}

		existing, err := s.memberships.Get(txCtx, user.ID, orgID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			m := models.NewMembership(user.ID, orgID, models.RoleAdmin)
			if err := s.memberships.Create(txCtx, m); err != nil {
				return nil, services.WrapInternal("create membership", err)
			}
			return m, nil
		case err != nil:
			return nil, services.WrapInternal("load membership", err)
		}

		existing.Role = models.RoleAdmin
		if err := s.memberships.Update(txCtx, existing); err != nil {
			return nil, services.WrapInternal("update membership", err)
		}
		return existing, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogMembershipChanged(ctx, models.AuditActionAdminAdded, m, actorID)
	return m, nil
}

// RemoveAdmin demotes an admin to USER
func (s *Service) RemoveAdmin(ctx context.Context, orgID, userID, actorID uuid.UUID) (*models.Membership, error) {
	m, err := s.get(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	m.Role = models.RoleUser
	if err := s.update(ctx, m); err != nil {
		return nil, err
	}
	s.audit.LogMembershipChanged(ctx, models.AuditActionAdminRemoved, m, actorID)
	return m, nil
}

// SetUserDisabled sets or, when disabled is nil, toggles a user's account
// flag. A disabled account cannot log in or refresh in any org. Super-admin
// accounts cannot be disabled.
func (s *Service) SetUserDisabled(ctx context.Context, userID uuid.UUID, disabled *bool, actorID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("load user", err)
	}
	if user.IsSuperAdmin {
		return nil, services.ErrInvalidInput.WithDetail("userId", "super-admin accounts cannot be disabled")
	}

	if disabled == nil {
		user.Disabled = !user.Disabled
	} else {
		user.Disabled = *disabled
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, services.WrapInternal("update user", err)
	}

	action := models.AuditActionUserEnabled
	if user.Disabled {
		action = models.AuditActionUserDisabled
	}
	s.logger.Info("user disabled flag changed",
		zap.String("user_id", userID.String()),
		zap.Bool("disabled", user.Disabled))
	s.audit.LogUserStatusChanged(ctx, action, userID, actorID)
	return user, nil
}

// SetUserPassword sets a user's password on behalf of a super-admin
func (s *Service) SetUserPassword(ctx context.Context, userID uuid.UUID, newPassword string, actorID uuid.UUID) error {
	if len(newPassword) < password.MinLength {
		return services.ErrPasswordTooShort
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrUserNotFound
		}
		return services.WrapInternal("load user", err)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return services.WrapInternal("hash password", err)
	}
	user.SetPasswordHash(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return services.WrapInternal("update user", err)
	}
	s.audit.LogPasswordReset(ctx, userID, actorID)
	return nil
}

func (s *Service) loadOrg(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrganizationNotFound
		}
		return nil, services.WrapInternal("load organization", err)
	}
	return org, nil
}

func (s *Service) get(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	m, err := s.memberships.Get(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrMembershipNotFound
		}
		return nil, services.WrapInternal("load membership", err)
	}
	return m, nil
}

func (s *Service) update(ctx context.Context, m *models.Membership) error {
	if err := s.memberships.Update(ctx, m); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrMembershipNotFound
		}
		return services.WrapInternal("update membership", err)
	}
	return nil
}
