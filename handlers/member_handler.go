package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/arjun-computer-geek/saas-demo/middleware"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/services/invite"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemberService is the slice of the membership service org admins use
type MemberService interface {
	ListMembers(ctx context.Context, orgID uuid.UUID, role *models.Role) ([]*models.MemberView, error)
	UpdateRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role, actorID uuid.UUID) (*models.Membership, error)
	SetDisabled(ctx context.Context, orgID, userID uuid.UUID, disabled *bool, actorID uuid.UUID) (*models.Membership, error)
}

// InviteService is the invite provisioner as seen by the handlers
type InviteService interface {
	CreateInvite(ctx context.Context, orgID uuid.UUID, email string, role models.Role, actorID uuid.UUID) (*invite.Created, error)
	GetInvite(ctx context.Context, token string) (*invite.Details, error)
	AcceptInvite(ctx context.Context, token, name, newPassword string) (*invite.Accepted, error)
	ListInvites(ctx context.Context, orgID uuid.UUID) ([]*models.Invite, error)
}

type updateRoleRequest struct {
	Role models.Role `json:"role" validate:"required"`
}

type setDisabledRequest struct {
	Disabled *bool `json:"disabled,omitempty"`
}

type createInviteRequest struct {
	Email string      `json:"email" validate:"required,email"`
	Role  models.Role `json:"role,omitempty" validate:"omitempty,role"`
}

type acceptInviteRequest struct {
	Name     string `json:"name" validate:"max=200"`
	Password string `json:"password"`
}

// InviteResponse is returned when an invite is created
type InviteResponse struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
	InviteURL string      `json:"inviteUrl"`
}

// MemberHandler serves the org-admin /users endpoints and the public
// invite endpoints.
type MemberHandler struct {
	members MemberService
	invites InviteService
	logger  *zap.Logger
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(members MemberService, invites InviteService, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{
		members: members,
		invites: invites,
		logger:  logger,
	}
}

// HandleListMembers handles GET /users/members
func (h *MemberHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := orgScope(w, r, h.logger)
	if !ok {
		return
	}

	var role *models.Role
	if v := r.URL.Query().Get("role"); v != "" {
		filter := models.Role(v)
		role = &filter
	}

	members, err := h.members.ListMembers(r.Context(), orgID, role)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, nonNilMembers(members), h.logger)
}

// HandleUpdateRole handles POST /users/members/{userId}/role
func (h *MemberHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, orgID, ok := orgScope(w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	m, err := h.members.UpdateRole(r.Context(), orgID, userID, req.Role, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, m, h.logger)
}

// HandleSetDisabled handles POST /users/members/{userId}/disable. Without
// a body the flag is toggled.
func (h *MemberHandler) HandleSetDisabled(w http.ResponseWriter, r *http.Request) {
	id, orgID, ok := orgScope(w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}
	var req setDisabledRequest
	if !decodeAndValidate(w, r, &req, true, h.logger) {
		return
	}

	m, err := h.members.SetDisabled(r.Context(), orgID, userID, req.Disabled, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, m, h.logger)
}

// HandleListInvites handles GET /users/invites
func (h *MemberHandler) HandleListInvites(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := orgScope(w, r, h.logger)
	if !ok {
		return
	}
	invites, err := h.invites.ListInvites(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if invites == nil {
		invites = []*models.Invite{}
	}
	writeOK(w, invites, h.logger)
}

// HandleCreateInvite handles POST /users/invite
func (h *MemberHandler) HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	id, orgID, ok := orgScope(w, r, h.logger)
	if !ok {
		return
	}
	var req createInviteRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	created, err := h.invites.CreateInvite(r.Context(), orgID, req.Email, req.Role, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("invite created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("org_id", orgID.String()),
		zap.String("invite_id", created.Invite.ID.String()))
	writeCreated(w, InviteResponse{
		ID:        created.Invite.ID,
		Email:     created.Invite.Email,
		Role:      created.Invite.Role,
		ExpiresAt: created.Invite.ExpiresAt,
		InviteURL: created.InviteURL,
	}, h.logger)
}

// HandleGetInvite handles GET /users/invite/{token}
func (h *MemberHandler) HandleGetInvite(w http.ResponseWriter, r *http.Request) {
	details, err := h.invites.GetInvite(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, details, h.logger)
}

// HandleAcceptInvite handles POST /users/invite/{token}/accept
func (h *MemberHandler) HandleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if !decodeAndValidate(w, r, &req, true, h.logger) {
		return
	}

	accepted, err := h.invites.AcceptInvite(r.Context(), chi.URLParam(r, "token"), req.Name, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, accepted, h.logger)
}
