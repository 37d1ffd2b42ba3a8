package token

import (
	"context"
	"errors"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/internal/observability"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pair is the credential set handed to a client at login or refresh.
// In session mode AccessToken is an opaque session id.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	ExpiresIn        int64 // seconds
	RefreshExpiresIn int64 // seconds
	Identity         Identity
}

// Service issues, rotates and revokes sessions against the revocation store.
type Service struct {
	store        repositories.RevocationStore
	orgs         repositories.OrganizationRepository
	codec        *Codec
	mode         string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	storeTimeout time.Duration
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewService creates a new token service
func NewService(
	store repositories.RevocationStore,
	orgs repositories.OrganizationRepository,
	codec *Codec,
	cfg config.AuthConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	mode := cfg.Mode
	if mode == "" {
		mode = config.AuthModeToken
	}
	return &Service{
		store:        store,
		orgs:         orgs,
		codec:        codec,
		mode:         mode,
		accessTTL:    cfg.AccessTokenTTL,
		refreshTTL:   cfg.RefreshTokenTTL,
		storeTimeout: cfg.StoreTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// Mode returns the access-credential flavor (token or session)
func (s *Service) Mode() string { return s.mode }

// AccessTTL returns the access credential lifetime
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the refresh token lifetime
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// Codec returns the access token codec
func (s *Service) Codec() *Codec { return s.codec }

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// Issue mints a refresh token and an access credential for id.
func (s *Service) Issue(ctx context.Context, id Identity) (*Pair, error) {
	if id.IsSuper && id.OrgID != nil {
		return nil, services.ErrSuperAdminOrgForbidden
	}

	refreshToken, err := newRefreshToken(id.OrgID)
	if err != nil {
		return nil, services.WrapInternal("generate refresh token", err)
	}

	now := time.Now()
	rec := &models.SessionRecord{
		UserID:    id.UserID,
		OrgID:     id.OrgID,
		OrgEpoch:  id.OrgEpoch,
		IsSuper:   id.IsSuper,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.SaveSession(storeCtx, models.SessionKindRefresh, Digest(refreshToken), rec, s.refreshTTL); err != nil {
		return nil, services.WrapInternal("save refresh session", err)
	}

	pair := &Pair{
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(s.accessTTL / time.Second),
		RefreshExpiresIn: int64(s.refreshTTL / time.Second),
		Identity:         id,
	}

	if s.mode == config.AuthModeSession {
		sid, err := NewSessionID()
		if err != nil {
			return nil, services.WrapInternal("generate session id", err)
		}
		access := *rec
		access.ExpiresAt = now.Add(s.accessTTL)
		if err := s.store.SaveSession(storeCtx, models.SessionKindAccess, Digest(sid), &access, s.accessTTL); err != nil {
			return nil, services.WrapInternal("save access session", err)
		}
		pair.AccessToken = sid
		pair.AccessExpiresAt = access.ExpiresAt
		return pair, nil
	}

	accessToken, expiresAt, err := s.codec.Sign(id, s.accessTTL)
	if err != nil {
		return nil, services.WrapInternal("sign access token", err)
	}
	pair.AccessToken = accessToken
	pair.AccessExpiresAt = expiresAt
	return pair, nil
}

// Rotate redeems a refresh token exactly once and issues a new pair stamped
// with the org's current epoch.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*Pair, error) {
	hint, ok := orgHint(refreshToken)
	if !ok {
		return nil, services.ErrExpiredOrUnknownToken
	}

	storeCtx, cancel := s.storeCtx(ctx)
	rec, err := s.store.ConsumeSession(storeCtx, models.SessionKindRefresh, Digest(refreshToken), hint)
	cancel()
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, services.WrapInternal("consume refresh session", err)
		}
		if hint != nil {
			disabled, derr := s.IsOrgDisabled(ctx, *hint)
			if derr != nil {
				return nil, derr
			}
			if disabled {
				return nil, services.ErrOrgAccessRevoked
			}
		}
		return nil, services.ErrExpiredOrUnknownToken
	}

	if rec.IsExpired(time.Now()) {
		return nil, services.ErrExpiredOrUnknownToken
	}

	id := Identity{UserID: rec.UserID, OrgID: rec.OrgID, OrgEpoch: rec.OrgEpoch, IsSuper: rec.IsSuper}
	if rec.OrgID != nil {
		epoch, active, err := s.OrgLiveness(ctx, *rec.OrgID)
		if err != nil {
			return nil, err
		}
		if !active || epoch != rec.OrgEpoch {
			s.logger.Info("refresh rejected: org access revoked",
				zap.String("org_id", rec.OrgID.String()),
				zap.Int64("stamped_epoch", rec.OrgEpoch),
				zap.Int64("current_epoch", epoch),
			)
			return nil, services.ErrOrgAccessRevoked
		}
		id.OrgEpoch = epoch
	}

	return s.Issue(ctx, id)
}

// OrgLiveness reports the org's current epoch and whether sessions scoped to
// it may be honoured. The revocation store is consulted first; when it holds
// no epoch the primary store decides and the cache is re-warmed.
func (s *Service) OrgLiveness(ctx context.Context, orgID uuid.UUID) (epoch int64, active bool, err error) {
	disabled, err := s.IsOrgDisabled(ctx, orgID)
	if err != nil {
		return 0, false, err
	}
	if disabled {
		return 0, false, nil
	}

	epoch, ok, err := s.GetOrgEpoch(ctx, orgID)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return epoch, true, nil
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, services.WrapInternal("load organization", err)
	}

	if err := s.SetOrgEpoch(ctx, orgID, org.AuthEpoch); err != nil {
		s.logger.Warn("failed to re-warm org epoch", zap.String("org_id", orgID.String()), zap.Error(err))
	}
	if !org.IsActive() {
		if err := s.MarkOrgDisabled(ctx, orgID); err != nil {
			s.logger.Warn("failed to re-warm disabled marker", zap.String("org_id", orgID.String()), zap.Error(err))
		}
	}
	return org.AuthEpoch, org.IsActive(), nil
}

// Revoke deletes a refresh token. Unknown and malformed tokens are ignored.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	hint, ok := orgHint(refreshToken)
	if !ok {
		return nil
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.DeleteSession(storeCtx, models.SessionKindRefresh, Digest(refreshToken), hint); err != nil {
		return services.WrapInternal("revoke refresh session", err)
	}
	return nil
}

// RevokeAllForOrg purges every refresh session of an org
func (s *Service) RevokeAllForOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	n, err := s.store.PurgeOrg(storeCtx, orgID)
	if err != nil {
		return 0, services.WrapInternal("purge org sessions", err)
	}
	s.metrics.SessionsRevoked(n)
	s.logger.Info("org sessions revoked", zap.String("org_id", orgID.String()), zap.Int("count", n))
	return n, nil
}

// ResolveSession looks up an opaque access session id
func (s *Service) ResolveSession(ctx context.Context, sid string) (*models.SessionRecord, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	rec, err := s.store.GetSession(storeCtx, models.SessionKindAccess, Digest(sid), nil)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrExpiredOrUnknownToken
		}
		return nil, services.WrapInternal("load access session", err)
	}
	if rec.IsExpired(time.Now()) {
		return nil, services.ErrExpiredOrUnknownToken
	}
	return rec, nil
}

// RevokeSession deletes an opaque access session; idempotent
func (s *Service) RevokeSession(ctx context.Context, sid string) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	digest := Digest(sid)
	rec, err := s.store.GetSession(storeCtx, models.SessionKindAccess, digest, nil)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return services.WrapInternal("load access session", err)
	}
	if err := s.store.DeleteSession(storeCtx, models.SessionKindAccess, digest, rec.OrgID); err != nil {
		return services.WrapInternal("revoke access session", err)
	}
	return nil
}

// SetOrgEpoch publishes an org's epoch to the revocation store
func (s *Service) SetOrgEpoch(ctx context.Context, orgID uuid.UUID, epoch int64) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.SetOrgEpoch(storeCtx, orgID, epoch); err != nil {
		return services.WrapInternal("publish org epoch", err)
	}
	return nil
}

// GetOrgEpoch reads the cached epoch
func (s *Service) GetOrgEpoch(ctx context.Context, orgID uuid.UUID) (int64, bool, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	epoch, ok, err := s.store.GetOrgEpoch(storeCtx, orgID)
	if err != nil {
		return 0, false, services.WrapInternal("read org epoch", err)
	}
	return epoch, ok, nil
}

// MarkOrgDisabled adds the org to the disabled set
func (s *Service) MarkOrgDisabled(ctx context.Context, orgID uuid.UUID) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.MarkOrgDisabled(storeCtx, orgID); err != nil {
		return services.WrapInternal("mark org disabled", err)
	}
	return nil
}

// MarkOrgEnabled removes the org from the disabled set
func (s *Service) MarkOrgEnabled(ctx context.Context, orgID uuid.UUID) error {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.MarkOrgEnabled(storeCtx, orgID); err != nil {
		return services.WrapInternal("mark org enabled", err)
	}
	return nil
}

// IsOrgDisabled reports disabled-set membership
func (s *Service) IsOrgDisabled(ctx context.Context, orgID uuid.UUID) (bool, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	disabled, err := s.store.IsOrgDisabled(storeCtx, orgID)
	if err != nil {
		return false, services.WrapInternal("read disabled orgs", err)
	}
	return disabled, nil
}
