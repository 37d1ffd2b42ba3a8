package handlers

import (
	"net/http"

	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status, writeErr := utils.WriteDomainError(w, err)
	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}

	if status >= http.StatusInternalServerError {
		// Log internal errors, the client only sees a generic message
		logger.Error("internal server error",
			zap.Error(err),
			zap.String("error_code", services.GetErrorCode(err)))
		return
	}
	logger.Debug("handled service error",
		zap.Int("status", status),
		zap.String("type", string(services.GetErrorType(err))),
		zap.String("error_code", services.GetErrorCode(err)),
		zap.Any("details", services.GetErrorDetails(err)))
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	// Generic validation error
	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
