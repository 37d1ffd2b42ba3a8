package handlers

import (
	"context"
	"net/http"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/middleware"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/services/auth"
	"github.com/arjun-computer-geek/saas-demo/services/token"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RefreshCookieName carries the refresh token, scoped to /auth
	RefreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

// AuthService is the slice of the auth service the handler drives
type AuthService interface {
	Login(ctx context.Context, email, pw string, orgID *uuid.UUID) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	Logout(ctx context.Context, refreshToken, sessionID string)
	Me(ctx context.Context, id token.Identity) (*auth.Profile, error)
	Signup(ctx context.Context, email, name, pw string) (*models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

// CookieSettings controls the credential cookies
type CookieSettings struct {
	Domain string
	Secure bool
	Mode   string
}

// NewCookieSettings derives cookie settings from the auth config
func NewCookieSettings(cfg config.AuthConfig) CookieSettings {
	return CookieSettings{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		Mode:   cfg.Mode,
	}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=200"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string     `json:"email" validate:"required"`
	Password string     `json:"password" validate:"required"`
	OrgID    *uuid.UUID `json:"orgId,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// SessionResponse is returned by login and refresh
type SessionResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	OrgID        *uuid.UUID `json:"orgId"`
	IsSuper      bool       `json:"isSuper"`
	UserID       uuid.UUID  `json:"userId"`
	ExpiresIn    int64      `json:"expiresIn"`
}

// AuthHandler serves the /auth endpoints
type AuthHandler struct {
	auth    AuthService
	cookies CookieSettings
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService AuthService, cookies CookieSettings, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    authService,
		cookies: cookies,
		logger:  logger,
	}
}

// HandleSignup handles POST /auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeCreated(w, user, h.logger)
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password, req.OrgID)
	if err != nil {
		h.logger.Info("login rejected",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.setSessionCookies(w, session)
	writeOK(w, toSessionResponse(session, false), h.logger)
}

// HandleRefresh handles POST /auth/refresh. The refresh cookie wins over a
// token in the body; only body callers get the new refresh token back.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, fromBody := h.refreshTokenFrom(w, r)
	if refreshToken == "" && !fromBody {
		return
	}

	session, err := h.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.clearSessionCookies(w)
		HandleServiceError(w, err, h.logger)
		return
	}

	h.setSessionCookies(w, session)
	writeOK(w, toSessionResponse(session, fromBody), h.logger)
}

// HandleLogout handles POST /auth/logout. It always succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		refreshToken = c.Value
	}
	if refreshToken == "" {
		var req refreshRequest
		if err := decodeOptional(r, &req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	var sessionID string
	if h.cookies.Mode == config.AuthModeSession {
		sessionID = middleware.CredentialFromContext(r.Context())
	}

	h.auth.Logout(r.Context(), refreshToken, sessionID)
	h.clearSessionCookies(w)
	if err := utils.WriteMessage(w, "logged out"); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.auth.Me(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, profile, h.logger)
}

// HandleChangePassword handles POST /auth/password
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	if err := h.auth.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.WriteMessage(w, "password updated"); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// refreshTokenFrom reads the refresh token from the cookie or the body.
// fromBody is false with an empty token only when a 400 was already written.
func (h *AuthHandler) refreshTokenFrom(w http.ResponseWriter, r *http.Request) (refreshToken string, fromBody bool) {
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		return c.Value, false
	}
	var req refreshRequest
	if !decodeAndValidate(w, r, &req, true, h.logger) {
		return "", false
	}
	return req.RefreshToken, true
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, s *auth.Session) {
	http.SetCookie(w, h.cookie(RefreshCookieName, s.RefreshToken, refreshCookiePath, int(s.RefreshExpiresIn)))
	http.SetCookie(w, h.cookie(middleware.AccessCookieName, s.AccessToken, "/", int(s.ExpiresIn)))
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(RefreshCookieName, "", refreshCookiePath, -1))
	http.SetCookie(w, h.cookie(middleware.AccessCookieName, "", "/", -1))
}

func (h *AuthHandler) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func toSessionResponse(s *auth.Session, withRefresh bool) SessionResponse {
	resp := SessionResponse{
		AccessToken: s.AccessToken,
		OrgID:       s.OrgID,
		IsSuper:     s.IsSuper,
		UserID:      s.UserID,
		ExpiresIn:   s.ExpiresIn,
	}
	if withRefresh {
		resp.RefreshToken = s.RefreshToken
	}
	return resp
}
