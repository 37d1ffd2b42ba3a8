package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/middleware"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/auth"
	"github.com/arjun-computer-geek/saas-demo/services/token"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, pw string, orgID *uuid.UUID) (*auth.Session, error) {
	args := m.Called(ctx, email, pw, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken, sessionID string) {
	m.Called(ctx, refreshToken, sessionID)
}

func (m *MockAuthService) Me(ctx context.Context, id token.Identity) (*auth.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Profile), args.Error(1)
}

func (m *MockAuthService) Signup(ctx context.Context, email, name, pw string) (*models.User, error) {
	args := m.Called(ctx, email, name, pw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	args := m.Called(ctx, userID, current, next)
	return args.Error(0)
}

func testSession(orgID *uuid.UUID) *auth.Session {
	userID := uuid.New()
	return &auth.Session{
		Pair: &token.Pair{
			AccessToken:      "access-credential",
			RefreshToken:     "refresh-credential",
			AccessExpiresAt:  time.Now().Add(15 * time.Minute),
			ExpiresIn:        900,
			RefreshExpiresIn: 604800,
		},
		UserID: userID,
		OrgID:  orgID,
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	logger := zap.NewNop()
	cookies := CookieSettings{Secure: true, Mode: config.AuthModeToken}

	t.Run("sets cookies and returns the session", func(t *testing.T) {
		svc := new(MockAuthService)
		orgID := uuid.New()
		session := testSession(&orgID)
		svc.On("Login", mock.Anything, "user@example.com", "pw123456", &orgID).Return(session, nil)

		h := NewAuthHandler(svc, cookies, logger)
		w := httptest.NewRecorder()
		body := `{"email":"user@example.com","password":"pw123456","orgId":"` + orgID.String() + `"}`
		h.HandleLogin(w, jsonRequest(http.MethodPost, "/auth/login", body))

		require.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "access-credential", resp.AccessToken)
		assert.Equal(t, orgID, *resp.OrgID)
		assert.Equal(t, session.UserID, resp.UserID)
		assert.Equal(t, int64(900), resp.ExpiresIn)
		assert.Empty(t, resp.RefreshToken, "refresh token only travels in the cookie")

		refresh := responseCookie(w, RefreshCookieName)
		require.NotNil(t, refresh)
		assert.Equal(t, "refresh-credential", refresh.Value)
		assert.Equal(t, "/auth", refresh.Path)
		assert.Equal(t, 604800, refresh.MaxAge)
		assert.True(t, refresh.HttpOnly)
		assert.True(t, refresh.Secure)
		assert.Equal(t, http.SameSiteLaxMode, refresh.SameSite)

		access := responseCookie(w, middleware.AccessCookieName)
		require.NotNil(t, access)
		assert.Equal(t, "/", access.Path)
		assert.Equal(t, 900, access.MaxAge)
		svc.AssertExpectations(t)
	})

	t.Run("bad credentials are a 401", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, "user@example.com", "wrong", (*uuid.UUID)(nil)).Return(nil, services.ErrInvalidCredentials)

		h := NewAuthHandler(svc, cookies, logger)
		w := httptest.NewRecorder()
		h.HandleLogin(w, jsonRequest(http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"wrong"}`))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, services.CodeInvalidCredentials, decodeError(t, w).Error)
		assert.Nil(t, responseCookie(w, RefreshCookieName))
	})

	t.Run("disabled org is a 403", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrOrgDisabled)

		h := NewAuthHandler(svc, cookies, logger)
		w := httptest.NewRecorder()
		h.HandleLogin(w, jsonRequest(http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"pw"}`))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, services.CodeOrgDisabled, decodeError(t, w).Error)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		svc := new(MockAuthService)
		h := NewAuthHandler(svc, cookies, logger)
		w := httptest.NewRecorder()
		h.HandleLogin(w, jsonRequest(http.MethodPost, "/auth/login", `{"email":"user@example.com"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Login")
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		h := NewAuthHandler(new(MockAuthService), cookies, logger)
		w := httptest.NewRecorder()
		h.HandleLogin(w, jsonRequest(http.MethodPost, "/auth/login", `{"email":`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	logger := zap.NewNop()
	cookies := CookieSettings{Mode: config.AuthModeToken}

	t.Run("cookie refresh rotates cookies", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Refresh", mock.Anything, "old-refresh").Return(testSession(nil), nil)

		h := NewAuthHandler(svc, cookies, logger)
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "old-refresh"})
		w := httptest.NewRecorder()
		h.HandleRefresh(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.RefreshToken)
		assert.Equal(t, "refresh-credential", responseCookie(w, RefreshCookieName).Value)
	})

	t.Run("body refresh returns the new refresh token", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Refresh", mock.Anything, "old-refresh").Return(testSession(nil), nil)

		h := NewAuthHandler(svc, cookies, logger)
		w := httptest.NewRecorder()
		h.HandleRefresh(w, jsonRequest(http.MethodPost, "/auth/refresh", `{"refreshToken":"old-refresh"}`))

		require.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "refresh-credential", resp.RefreshToken)
	})

	t.Run("missing token is a 401", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Refresh", mock.Anything, "").Return(nil, services.ErrExpiredOrUnknownToken)

		h := NewAuthHandler(svc, cookies, logger)
		w := httptest.NewRecorder()
		h.HandleRefresh(w, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, services.CodeTokenExpiredOrUnknown, decodeError(t, w).Error)
	})

	t.Run("revoked org clears cookies with a 403", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Refresh", mock.Anything, "stale").Return(nil, services.ErrOrgAccessRevoked)

		h := NewAuthHandler(svc, cookies, logger)
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "stale"})
		w := httptest.NewRecorder()
		h.HandleRefresh(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, services.CodeOrgAccessRevoked, decodeError(t, w).Error)
		cleared := responseCookie(w, RefreshCookieName)
		require.NotNil(t, cleared)
		assert.Equal(t, -1, cleared.MaxAge)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	logger := zap.NewNop()

	t.Run("token mode revokes the refresh cookie only", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Logout", mock.Anything, "refresh-1", "").Return()

		h := NewAuthHandler(svc, CookieSettings{Mode: config.AuthModeToken}, logger)
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "refresh-1"})
		req = req.WithContext(middleware.WithCredential(req.Context(), "jwt-value"))
		w := httptest.NewRecorder()
		h.HandleLogout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, -1, responseCookie(w, middleware.AccessCookieName).MaxAge)
		svc.AssertExpectations(t)
	})

	t.Run("session mode also revokes the session", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Logout", mock.Anything, "refresh-2", "session-2").Return()

		h := NewAuthHandler(svc, CookieSettings{Mode: config.AuthModeSession}, logger)
		req := jsonRequest(http.MethodPost, "/auth/logout", `{"refreshToken":"refresh-2"}`)
		req = req.WithContext(middleware.WithCredential(req.Context(), "session-2"))
		w := httptest.NewRecorder()
		h.HandleLogout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("anonymous logout still succeeds", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Logout", mock.Anything, "", "").Return()

		h := NewAuthHandler(svc, CookieSettings{Mode: config.AuthModeSession}, logger)
		w := httptest.NewRecorder()
		h.HandleLogout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthHandler_MeAndPassword(t *testing.T) {
	logger := zap.NewNop()
	orgID := uuid.New()
	id := token.Identity{UserID: uuid.New(), OrgID: &orgID, OrgEpoch: 1}

	t.Run("me returns the profile", func(t *testing.T) {
		svc := new(MockAuthService)
		role := models.RoleAdmin
		user := models.NewUser("me@example.com", "Me")
		svc.On("Me", mock.Anything, id).Return(&auth.Profile{User: user, OrgID: &orgID, Role: &role}, nil)

		h := NewAuthHandler(svc, CookieSettings{}, logger)
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), id))
		w := httptest.NewRecorder()
		h.HandleMe(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ADMIN", resp["role"])
		assert.Equal(t, orgID.String(), resp["orgId"])
	})

	t.Run("me without identity is a 401", func(t *testing.T) {
		h := NewAuthHandler(new(MockAuthService), CookieSettings{}, logger)
		w := httptest.NewRecorder()
		h.HandleMe(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("password change", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("ChangePassword", mock.Anything, id.UserID, "old-pass", "new-pass").Return(nil)

		h := NewAuthHandler(svc, CookieSettings{}, logger)
		req := jsonRequest(http.MethodPost, "/auth/password", `{"currentPassword":"old-pass","newPassword":"new-pass"}`)
		req = req.WithContext(middleware.WithIdentity(req.Context(), id))
		w := httptest.NewRecorder()
		h.HandleChangePassword(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("wrong current password is a 401", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("ChangePassword", mock.Anything, id.UserID, "bad", "new-pass").Return(services.ErrInvalidCredentials)

		h := NewAuthHandler(svc, CookieSettings{}, logger)
		req := jsonRequest(http.MethodPost, "/auth/password", `{"currentPassword":"bad","newPassword":"new-pass"}`)
		req = req.WithContext(middleware.WithIdentity(req.Context(), id))
		w := httptest.NewRecorder()
		h.HandleChangePassword(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_Signup(t *testing.T) {
	logger := zap.NewNop()

	t.Run("creates the account", func(t *testing.T) {
		svc := new(MockAuthService)
		user := models.NewUser("new@example.com", "New")
		svc.On("Signup", mock.Anything, "new@example.com", "New", "secret1").Return(user, nil)

		h := NewAuthHandler(svc, CookieSettings{}, logger)
		w := httptest.NewRecorder()
		h.HandleSignup(w, jsonRequest(http.MethodPost, "/auth/signup", `{"email":"new@example.com","name":"New","password":"secret1"}`))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("duplicate email is a 409", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Signup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateEmail)

		h := NewAuthHandler(svc, CookieSettings{}, logger)
		w := httptest.NewRecorder()
		h.HandleSignup(w, jsonRequest(http.MethodPost, "/auth/signup", `{"email":"dup@example.com","password":"secret1"}`))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, services.CodeDuplicateEmail, decodeError(t, w).Error)
	})

	t.Run("invalid email fails validation", func(t *testing.T) {
		h := NewAuthHandler(new(MockAuthService), CookieSettings{}, logger)
		w := httptest.NewRecorder()
		h.HandleSignup(w, jsonRequest(http.MethodPost, "/auth/signup", `{"email":"nope","password":"secret1"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
