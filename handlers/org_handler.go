package handlers

import (
	"context"
	"net/http"

	"github.com/arjun-computer-geek/saas-demo/middleware"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrgLifecycle is the slice of the lifecycle manager the handler drives
type OrgLifecycle interface {
	Create(ctx context.Context, name string, actorID uuid.UUID) (*models.Organization, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, limit, offset int) ([]*models.Organization, error)
	Disable(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error)
	Enable(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error)
	Delete(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error)
	Undelete(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error)
}

// OrgAdministration covers the super-admin views into an org's people
type OrgAdministration interface {
	ListAdmins(ctx context.Context, orgID uuid.UUID) ([]*models.MemberView, error)
	ListOrgMembers(ctx context.Context, orgID uuid.UUID) ([]*models.MemberView, error)
	AddAdmin(ctx context.Context, orgID uuid.UUID, email, name string, actorID uuid.UUID) (*models.Membership, error)
	RemoveAdmin(ctx context.Context, orgID, userID, actorID uuid.UUID) (*models.Membership, error)
	SetUserPassword(ctx context.Context, userID uuid.UUID, newPassword string, actorID uuid.UUID) error
	SetUserDisabled(ctx context.Context, userID uuid.UUID, disabled *bool, actorID uuid.UUID) (*models.User, error)
}

// AuditReader lists an org's audit trail
type AuditReader interface {
	ListForOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

type createOrgRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type addAdminRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=200"`
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// OrgHandler serves the super-admin /orgs endpoints
type OrgHandler struct {
	lifecycle OrgLifecycle
	admin     OrgAdministration
	audit     AuditReader
	logger    *zap.Logger
}

// NewOrgHandler creates a new OrgHandler
func NewOrgHandler(lifecycle OrgLifecycle, admin OrgAdministration, audit AuditReader, logger *zap.Logger) *OrgHandler {
	return &OrgHandler{
		lifecycle: lifecycle,
		admin:     admin,
		audit:     audit,
		logger:    logger,
	}
}

// HandleCreate handles POST /orgs
func (h *OrgHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	var req createOrgRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	org, err := h.lifecycle.Create(r.Context(), req.Name, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("organization created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug))
	writeCreated(w, org, h.logger)
}

// HandleList handles GET /orgs
func (h *OrgHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	orgs, err := h.lifecycle.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if orgs == nil {
		orgs = []*models.Organization{}
	}
	writeOK(w, orgs, h.logger)
}

// HandleGet handles GET /orgs/{id}
func (h *OrgHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	org, err := h.lifecycle.Get(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, org, h.logger)
}

// HandleDisable handles POST /orgs/{id}/disable
func (h *OrgHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "disable", h.lifecycle.Disable)
}

// HandleEnable handles POST /orgs/{id}/enable
func (h *OrgHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "enable", h.lifecycle.Enable)
}

// HandleDelete handles DELETE /orgs/{id}
func (h *OrgHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "delete", h.lifecycle.Delete)
}

// HandleUndelete handles POST /orgs/{id}/undelete
func (h *OrgHandler) HandleUndelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "undelete", h.lifecycle.Undelete)
}

func (h *OrgHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	fn func(ctx context.Context, id, actorID uuid.UUID) (*models.Organization, error),
) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	orgID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	org, err := fn(r.Context(), orgID, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("organization transitioned",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("transition", name),
		zap.String("org_id", org.ID.String()),
		zap.String("status", string(org.Status)),
		zap.Int64("auth_epoch", org.AuthEpoch))
	writeOK(w, org, h.logger)
}

// HandleListAdmins handles GET /orgs/{id}/admins
func (h *OrgHandler) HandleListAdmins(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	admins, err := h.admin.ListAdmins(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, nonNilMembers(admins), h.logger)
}

// HandleAddAdmin handles POST /orgs/{id}/admins
func (h *OrgHandler) HandleAddAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	orgID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req addAdminRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	m, err := h.admin.AddAdmin(r.Context(), orgID, req.Email, req.Name, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeCreated(w, m, h.logger)
}

// HandleRemoveAdmin handles DELETE /orgs/{id}/admins/{userId}
func (h *OrgHandler) HandleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	orgID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}

	m, err := h.admin.RemoveAdmin(r.Context(), orgID, userID, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, m, h.logger)
}

// HandleListMembers handles GET /orgs/{id}/members
func (h *OrgHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.admin.ListOrgMembers(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, nonNilMembers(members), h.logger)
}

// HandleListAudit handles GET /orgs/{id}/audit
func (h *OrgHandler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.lifecycle.Get(r.Context(), orgID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	limit, offset := pagination(r)
	logs, err := h.audit.ListForOrg(r.Context(), orgID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	writeOK(w, logs, h.logger)
}

// HandleSetUserPassword handles POST /orgs/users/{userId}/password
func (h *OrgHandler) HandleSetUserPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}
	var req setPasswordRequest
	if !decodeAndValidate(w, r, &req, false, h.logger) {
		return
	}

	if err := h.admin.SetUserPassword(r.Context(), userID, req.Password, id.UserID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.WriteMessage(w, "password updated"); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleSetUserDisabled handles POST /orgs/users/{userId}/disable. Without
// a body the flag is toggled.
func (h *OrgHandler) HandleSetUserDisabled(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
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

	user, err := h.admin.SetUserDisabled(r.Context(), userID, req.Disabled, id.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	writeOK(w, user, h.logger)
}

func nonNilMembers(m []*models.MemberView) []*models.MemberView {
	if m == nil {
		return []*models.MemberView{}
	}
	return m
}
