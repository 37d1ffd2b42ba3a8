package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/internal/observability"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/token"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccessCookieName carries the access token or session id
const AccessCookieName = "access_token"

// SessionAuthority resolves access credentials and org liveness
type SessionAuthority interface {
	// Mode returns config.AuthModeToken or config.AuthModeSession
	Mode() string

	// Codec verifies signed access tokens
	Codec() *token.Codec

	// ResolveSession looks up an opaque session id
	ResolveSession(ctx context.Context, sid string) (*models.SessionRecord, error)

	// RevokeSession deletes an opaque session id
	RevokeSession(ctx context.Context, sid string) error

	// OrgLiveness reports the org's current epoch and whether it is active
	OrgLiveness(ctx context.Context, orgID uuid.UUID) (epoch int64, active bool, err error)
}

// AuthMiddleware authenticates requests and checks that the caller's org
// has not been revoked since the credential was issued.
type AuthMiddleware struct {
	authority SessionAuthority
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authority SessionAuthority, metrics *observability.Metrics, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authority: authority,
		metrics:   metrics,
		logger:    logger,
	}
}

// RequireAuth rejects requests without a live credential
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		credential := extractToken(r)
		if credential == "" {
			m.reject(w, r, observability.OutcomeMissing, services.ErrUnauthorized)
			return
		}

		id, outcome, err := m.authenticate(ctx, credential)
		if err != nil {
			m.reject(w, r, outcome, err)
			return
		}

		m.metrics.AuthOutcome(observability.OutcomeAuthenticated)
		m.logger.Debug("authentication successful",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("user_id", id.UserID.String()),
			zap.Bool("super", id.IsSuper))

		ctx = WithIdentity(ctx, id)
		ctx = WithCredential(ctx, credential)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the identity when the request carries a live credential
// and never rejects.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		credential := extractToken(r)
		if credential != "" {
			ctx = WithCredential(ctx, credential)
			if id, _, err := m.authenticate(ctx, credential); err == nil {
				ctx = WithIdentity(ctx, id)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate resolves the credential and runs the liveness check. The
// outcome label is meaningful only when err is non-nil.
func (m *AuthMiddleware) authenticate(ctx context.Context, credential string) (token.Identity, string, error) {
	var (
		id  token.Identity
		err error
	)
	if m.authority.Mode() == config.AuthModeSession {
		id, err = m.resolveSession(ctx, credential)
	} else {
		id, err = m.verifyToken(credential)
	}
	if err != nil {
		return token.Identity{}, outcomeFor(err), err
	}

	if id.OrgID == nil {
		return id, "", nil
	}

	epoch, active, err := m.authority.OrgLiveness(ctx, *id.OrgID)
	if err != nil {
		return token.Identity{}, observability.OutcomeStoreError, err
	}
	if !active || epoch != id.OrgEpoch {
		if m.authority.Mode() == config.AuthModeSession {
			if err := m.authority.RevokeSession(ctx, credential); err != nil {
				m.logger.Warn("failed to delete revoked session", zap.Error(err))
			}
		}
		m.logger.Info("org access revoked",
			zap.String("org_id", id.OrgID.String()),
			zap.Int64("stamped_epoch", id.OrgEpoch),
			zap.Int64("current_epoch", epoch),
			zap.Bool("active", active))
		return token.Identity{}, observability.OutcomeOrgRevoked, services.ErrOrgAccessRevoked
	}
	return id, "", nil
}

func (m *AuthMiddleware) verifyToken(credential string) (token.Identity, error) {
	claims, err := m.authority.Codec().Verify(credential)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return token.Identity{}, services.ErrExpiredOrUnknownToken
		}
		return token.Identity{}, services.ErrInvalidToken.Wrap(err)
	}
	id, err := claims.Identity()
	if err != nil {
		return token.Identity{}, services.ErrInvalidToken.Wrap(err)
	}
	return id, nil
}

func (m *AuthMiddleware) resolveSession(ctx context.Context, sid string) (token.Identity, error) {
	rec, err := m.authority.ResolveSession(ctx, sid)
	if err != nil {
		return token.Identity{}, err
	}
	return token.Identity{UserID: rec.UserID, OrgID: rec.OrgID, OrgEpoch: rec.OrgEpoch, IsSuper: rec.IsSuper}, nil
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, outcome string, err error) {
	m.metrics.AuthOutcome(outcome)

	fields := []zap.Field{
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.String("outcome", outcome),
		zap.Error(err),
	}
	if services.IsInternalError(err) {
		m.logger.Error("authentication failed", fields...)
	} else {
		m.logger.Debug("authentication rejected", fields...)
	}

	if _, werr := utils.WriteDomainError(w, err); werr != nil {
		m.logger.Error("failed to write auth error response", zap.Error(werr))
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, services.ErrExpiredOrUnknownToken):
		return observability.OutcomeExpired
	case services.IsInternalError(err):
		return observability.OutcomeStoreError
	default:
		return observability.OutcomeInvalid
	}
}

// extractToken reads the Authorization header, falling back to the access
// cookie. The header takes precedence when both are present.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
