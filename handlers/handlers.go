package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/arjun-computer-geek/saas-demo/middleware"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/token"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxBodyBytes     = 1 << 20
	defaultPageLimit = 50
	maxPageLimit     = 200
)

var errEmptyBody = errors.New("request body is required")

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 itself and reports whether the handler may continue.
// An empty body is accepted when allowEmpty is set.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool, logger *zap.Logger) bool {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	switch {
	case errors.Is(err, io.EOF) && allowEmpty:
	case errors.Is(err, io.EOF):
		HandleValidationError(w, errEmptyBody, logger)
		return false
	case err != nil:
		logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return false
	}

	if err := utils.ValidateStruct(dst); err != nil {
		logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}

// decodeOptional reads an optional JSON body, ignoring an empty one
func decodeOptional(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// pathUUID parses a UUID path parameter, writing a 400 when it is malformed
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid "+name+" format", map[string]interface{}{"field": name})
		return uuid.Nil, false
	}
	return id, true
}

// identity returns the authenticated caller, writing a 401 when absent
func identity(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (token.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		HandleServiceError(w, services.ErrUnauthorized, logger)
	}
	return id, ok
}

// orgScope returns the org the caller is signed in to
func orgScope(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (token.Identity, uuid.UUID, bool) {
	id, ok := identity(w, r, logger)
	if !ok {
		return id, uuid.Nil, false
	}
	if id.OrgID == nil {
		HandleServiceError(w, services.ErrNoMembership, logger)
		return id, uuid.Nil, false
	}
	return id, *id.OrgID, true
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func writeOK(w http.ResponseWriter, data interface{}, logger *zap.Logger) {
	if err := utils.WriteOK(w, data); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}

func writeCreated(w http.ResponseWriter, data interface{}, logger *zap.Logger) {
	if err := utils.WriteCreated(w, data); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}
