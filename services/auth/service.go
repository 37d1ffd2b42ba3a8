package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/audit"
	"github.com/arjun-computer-geek/saas-demo/services/password"
	"github.com/arjun-computer-geek/saas-demo/services/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is the result of a successful login or refresh
type Session struct {
	*token.Pair
	UserID  uuid.UUID
	OrgID   *uuid.UUID
	IsSuper bool
}

// Profile is the caller's view of themselves
type Profile struct {
	User  *models.User `json:"user"`
	OrgID *uuid.UUID   `json:"orgId"`
	Role  *models.Role `json:"role"`
}

// Service authenticates users and hands out sessions
type Service struct {
	orgs        repositories.OrganizationRepository
	users       repositories.UserRepository
	memberships repositories.MembershipRepository
	hasher      password.Hasher
	tokens      *token.Service
	audit       *audit.AuditService
	logger      *zap.Logger
}

// NewService creates a new auth service
func NewService(
	repos *repositories.Repositories,
	hasher password.Hasher,
	tokens *token.Service,
	auditService *audit.AuditService,
	logger *zap.Logger,
) *Service {
	return &Service{
		orgs:        repos.Organizations,
		users:       repos.Users,
		memberships: repos.Memberships,
		hasher:      hasher,
		tokens:      tokens,
		audit:       auditService,
		logger:      logger,
	}
}

// Login checks credentials and issues a session. Super-admins always get an
// org-less session; everyone else is scoped to orgID, or to their first
// usable membership when orgID is nil.
func (s *Service) Login(ctx context.Context, email, pw string, orgID *uuid.UUID) (*Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" || pw == "" {
		return nil, services.ErrMissingCredentials
	}

	user, err := s.authenticate(ctx, email, pw)
	if err != nil {
		return nil, err
	}

	if user.IsSuperAdmin {
		if orgID != nil {
			return nil, services.ErrSuperAdminOrgForbidden
		}
		return s.issue(ctx, token.Identity{UserID: user.ID, IsSuper: true})
	}

	var org *models.Organization
	if orgID == nil {
		org, err = s.defaultOrg(ctx, user.ID)
	} else {
		org, err = s.scopedOrg(ctx, user.ID, *orgID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.tokens.SetOrgEpoch(ctx, org.ID, org.AuthEpoch); err != nil {
		s.logger.Warn("failed to publish org epoch at login", zap.String("org_id", org.ID.String()), zap.Error(err))
	}

	id := org.ID
	return s.issue(ctx, token.Identity{UserID: user.ID, OrgID: &id, OrgEpoch: org.AuthEpoch})
}

// Refresh rotates a refresh token into a new session. A disabled account
// gets its freshly issued credentials revoked and the refresh rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, services.ErrExpiredOrUnknownToken
	}
	pair, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, pair.Identity.UserID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
	case err != nil:
		return nil, services.WrapInternal("load user", err)
	case !user.Disabled:
		return newSession(pair), nil
	}

	s.logger.Info("refresh rejected: account disabled or gone", zap.String("user_id", pair.Identity.UserID.String()))
	s.Logout(ctx, pair.RefreshToken, s.sessionID(pair))
	return nil, services.ErrExpiredOrUnknownToken
}

// Logout revokes whichever credentials the client still holds. It never
// fails; store errors are logged.
func (s *Service) Logout(ctx context.Context, refreshToken, sessionID string) {
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
			s.logger.Warn("failed to revoke refresh token at logout", zap.Error(err))
		}
	}
	if sessionID != "" {
		if err := s.tokens.RevokeSession(ctx, sessionID); err != nil {
			s.logger.Warn("failed to revoke session at logout", zap.Error(err))
		}
	}
}

// Me returns the authenticated user with their org and role
func (s *Service) Me(ctx context.Context, id token.Identity) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUnauthorized
		}
		return nil, services.WrapInternal("load user", err)
	}

	profile := &Profile{User: user, OrgID: id.OrgID}
	if id.IsSuper || id.OrgID == nil {
		return profile, nil
	}

	m, err := s.memberships.Get(ctx, user.ID, *id.OrgID)
	switch {
	case err == nil:
		role := m.Role
		profile.Role = &role
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, services.WrapInternal("load membership", err)
	}
	return profile, nil
}

// Signup registers a new account without any membership
func (s *Service) Signup(ctx context.Context, email, name, pw string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "email")
	}
	if len(pw) < password.MinLength {
		return nil, services.ErrPasswordTooShort
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, services.ErrDuplicateEmail
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.WrapInternal("load user", err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, services.WrapInternal("hash password", err)
	}
	if strings.TrimSpace(name) == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user := models.NewUser(email, name)
	user.SetPasswordHash(hash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateEmail
		}
		return nil, services.WrapInternal("create user", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if len(next) < password.MinLength {
		return services.ErrPasswordTooShort
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrUserNotFound
		}
		return services.WrapInternal("load user", err)
	}
	if user.HasPassword() {
		ok, err := s.hasher.Verify(current, *user.PasswordHash)
		if err != nil || !ok {
			return services.ErrInvalidCredentials
		}
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return services.WrapInternal("hash password", err)
	}
	user.SetPasswordHash(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return services.WrapInternal("update user", err)
	}
	s.audit.LogPasswordReset(ctx, user.ID, user.ID)
	return nil
}

func (s *Service) authenticate(ctx context.Context, email, pw string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrInvalidCredentials
		}
		return nil, services.WrapInternal("load user", err)
	}
	if user.Disabled || !user.HasPassword() {
		return nil, services.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(pw, *user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash could not be verified", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, services.ErrInvalidCredentials
	}
	if !ok {
		return nil, services.ErrInvalidCredentials
	}
	return user, nil
}

// scopedOrg checks that userID may sign in to orgID
func (s *Service) scopedOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrNoMembership
		}
		return nil, services.WrapInternal("load organization", err)
	}
	if !org.IsActive() {
		return nil, services.ErrOrgDisabled
	}

	m, err := s.memberships.Get(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrNoMembership
		}
		return nil, services.WrapInternal("load membership", err)
	}
	if m.Disabled {
		return nil, services.ErrMembershipDisabled
	}
	return org, nil
}

// defaultOrg picks the oldest enabled membership in an ACTIVE org
func (s *Service) defaultOrg(ctx context.Context, userID uuid.UUID) (*models.Organization, error) {
	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, services.WrapInternal("list memberships", err)
	}
	if len(memberships) == 0 {
		return nil, services.ErrNoMembership
	}

	var blocked error = services.ErrNoMembership
	for _, m := range memberships {
		if m.Disabled {
			blocked = services.ErrMembershipDisabled
			continue
		}
		org, err := s.orgs.GetByID(ctx, m.OrgID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, services.WrapInternal("load organization", err)
		}
		if !org.IsActive() {
			blocked = services.ErrOrgDisabled
			continue
		}
		return org, nil
	}
	return nil, blocked
}

func (s *Service) issue(ctx context.Context, id token.Identity) (*Session, error) {
	pair, err := s.tokens.Issue(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.LogLogin(ctx, id.UserID, id.OrgID)
	return newSession(pair), nil
}

// sessionID is the opaque access session of pair, if the mode issues one
func (s *Service) sessionID(pair *token.Pair) string {
	if s.tokens.Mode() == config.AuthModeSession {
		return pair.AccessToken
	}
	return ""
}

func newSession(pair *token.Pair) *Session {
	return &Session{
		Pair:    pair,
		UserID:  pair.Identity.UserID,
		OrgID:   pair.Identity.OrgID,
		IsSuper: pair.Identity.IsSuper,
	}
}
