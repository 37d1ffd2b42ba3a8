package middleware

import (
	"context"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/services/token"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the authenticated identity
	IdentityKey contextKey = "identity"

	// MembershipKey is the context key for the caller's membership in their org
	MembershipKey contextKey = "membership"

	// CredentialKey is the context key for the raw access credential
	CredentialKey contextKey = "credential"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, id token.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFromContext retrieves the authenticated identity from context
func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(token.Identity)
	return id, ok
}

// WithMembership adds the caller's membership to the context
func WithMembership(ctx context.Context, m *models.Membership) context.Context {
	return context.WithValue(ctx, MembershipKey, m)
}

// MembershipFromContext retrieves the membership attached by the role middleware
func MembershipFromContext(ctx context.Context) *models.Membership {
	m, _ := ctx.Value(MembershipKey).(*models.Membership)
	return m
}

// WithCredential records the access credential the request authenticated with
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, CredentialKey, credential)
}

// CredentialFromContext returns the access credential, if any
func CredentialFromContext(ctx context.Context) string {
	c, _ := ctx.Value(CredentialKey).(string)
	return c
}
