package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MembershipReader loads a membership from the primary store
type MembershipReader interface {
	Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error)
}

// RoleMiddleware enforces org roles and super-admin status. It must run
// after AuthMiddleware.RequireAuth.
type RoleMiddleware struct {
	memberships  MembershipReader
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewRoleMiddleware creates a new RoleMiddleware. Each membership read is
// bounded by storeTimeout; zero leaves only the request deadline.
func NewRoleMiddleware(memberships MembershipReader, storeTimeout time.Duration, logger *zap.Logger) *RoleMiddleware {
	return &RoleMiddleware{
		memberships:  memberships,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

func (m *RoleMiddleware) loadMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	if m.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.storeTimeout)
		defer cancel()
	}
	return m.memberships.Get(ctx, userID, orgID)
}

// Authorize requires an enabled membership in the caller's org holding one
// of roles. The membership is attached to the request context.
func (m *RoleMiddleware) Authorize(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, ok := IdentityFromContext(ctx)
			if !ok {
				m.reject(w, r, services.ErrUnauthorized)
				return
			}
			if id.OrgID == nil {
				m.reject(w, r, services.ErrNoMembership)
				return
			}

			membership, err := m.loadMembership(ctx, id.UserID, *id.OrgID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					m.reject(w, r, services.ErrNoMembership)
					return
				}
				m.reject(w, r, services.WrapInternal("load membership", err))
				return
			}
			if membership.Disabled {
				m.reject(w, r, services.ErrMembershipDisabled)
				return
			}
			if !membership.HasRole(roles...) {
				m.reject(w, r, services.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithMembership(ctx, membership)))
		})
	}
}

// RequireSuper requires a super-admin identity. Memberships are never consulted.
func (m *RoleMiddleware) RequireSuper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			m.reject(w, r, services.ErrUnauthorized)
			return
		}
		if !id.IsSuper {
			m.reject(w, r, services.ErrSuperAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RoleMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	fields := []zap.Field{
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.Error(err),
	}
	if services.IsInternalError(err) {
		m.logger.Error("role check failed", fields...)
	} else {
		m.logger.Warn("insufficient permissions", fields...)
	}
	if _, werr := utils.WriteDomainError(w, err); werr != nil {
		m.logger.Error("failed to write role error response", zap.Error(werr))
	}
}
