package services

import (
	"errors"
	"fmt"

	"github.com/arjun-computer-geek/saas-demo/repositories"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeGone         ErrorType = "gone"
	ErrorTypeInternal     ErrorType = "internal"
)

// Machine-readable error codes returned in the `error` field of responses
const (
	CodeInvalidCredentials     = "invalid_credentials"
	CodeTokenInvalid           = "token_invalid"
	CodeTokenExpiredOrUnknown  = "token_expired_or_unknown"
	CodeOrgAccessRevoked       = "org_access_revoked"
	CodeOrgDisabled            = "org_disabled"
	CodeNoMembership           = "no_membership"
	CodeMembershipDisabled     = "membership_disabled"
	CodeSuperAdminRequired     = "super_admin_required"
	CodeSuperAdminOrgForbidden = "super_admin_org_forbidden"
	CodeInviteInvalid          = "invite_invalid"
	CodeInviteExpired          = "invite_expired"
	CodeAlreadyMember          = "already_member"
	CodeDuplicateEmail         = "duplicate_email"
	CodeDuplicateSlug          = "duplicate_slug"
	CodeInvalidTransition      = "invalid_transition"
	CodeInvalidRole            = "invalid_role"
	CodeStoreUnavailable       = "store_unavailable"
	CodeNotFound               = "not_found"
	CodeValidation             = "validation_failed"
	CodeUnauthorized           = "unauthorized"
	CodeForbidden              = "forbidden"
	CodeRateLimited            = "rate_limit_exceeded"
	CodeInternal               = "internal_error"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Type, and on Code when the target carries one
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// Wrap returns a copy of e carrying err as its cause. Sentinels stay untouched.
func (e *DomainError) Wrap(err error) *DomainError {
	cp := *e
	cp.Err = err
	cp.Details = copyDetails(e.Details)
	return &cp
}

// WithDetail returns a copy of e with the detail added
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	cp := *e
	cp.Details = copyDetails(e.Details)
	cp.Details[key] = value
	return &cp
}

func copyDetails(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, code, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrOrganizationNotFound = NewDomainError(ErrorTypeNotFound, CodeNotFound, "organization not found", nil)
	ErrUserNotFound         = NewDomainError(ErrorTypeNotFound, CodeNotFound, "user not found", nil)
	ErrMembershipNotFound   = NewDomainError(ErrorTypeNotFound, CodeNotFound, "membership not found", nil)
	ErrInviteNotFound       = NewDomainError(ErrorTypeNotFound, CodeInviteInvalid, "invite not found or already used", nil)

	// Validation Errors
	ErrInvalidInput       = NewDomainError(ErrorTypeValidation, CodeValidation, "invalid input", nil)
	ErrInvalidRole        = NewDomainError(ErrorTypeValidation, CodeInvalidRole, "role must be ADMIN or USER", nil)
	ErrInvalidTransition  = NewDomainError(ErrorTypeValidation, CodeInvalidTransition, "organization cannot make this transition", nil)
	ErrAlreadyMember      = NewDomainError(ErrorTypeValidation, CodeAlreadyMember, "user is already a member of this organization", nil)
	ErrPasswordTooShort   = NewDomainError(ErrorTypeValidation, CodeValidation, "password must be at least 6 characters", nil)
	ErrInvalidSlug        = NewDomainError(ErrorTypeValidation, CodeValidation, "organization name must contain letters or digits", nil)
	ErrMissingCredentials = NewDomainError(ErrorTypeValidation, CodeValidation, "email and password are required", nil)

	// Gone Errors
	ErrInviteExpired = NewDomainError(ErrorTypeGone, CodeInviteExpired, "invite has expired", nil)

	// Authentication Errors
	ErrInvalidCredentials    = NewDomainError(ErrorTypeUnauthorized, CodeInvalidCredentials, "invalid email or password", nil)
	ErrInvalidToken          = NewDomainError(ErrorTypeUnauthorized, CodeTokenInvalid, "invalid authentication token", nil)
	ErrExpiredOrUnknownToken = NewDomainError(ErrorTypeUnauthorized, CodeTokenExpiredOrUnknown, "token expired or unknown", nil)
	ErrUnauthorized          = NewDomainError(ErrorTypeUnauthorized, CodeUnauthorized, "authentication required", nil)

	// Permission Errors
	ErrOrgAccessRevoked       = NewDomainError(ErrorTypeForbidden, CodeOrgAccessRevoked, "organization access has been revoked", nil)
	ErrOrgDisabled            = NewDomainError(ErrorTypeForbidden, CodeOrgDisabled, "organization is disabled", nil)
	ErrNoMembership           = NewDomainError(ErrorTypeForbidden, CodeNoMembership, "no membership in this organization", nil)
	ErrMembershipDisabled     = NewDomainError(ErrorTypeForbidden, CodeMembershipDisabled, "membership is disabled", nil)
	ErrSuperAdminRequired     = NewDomainError(ErrorTypeForbidden, CodeSuperAdminRequired, "super admin required", nil)
	ErrSuperAdminOrgForbidden = NewDomainError(ErrorTypeForbidden, CodeSuperAdminOrgForbidden, "super admins cannot sign in to an organization", nil)
	ErrForbidden              = NewDomainError(ErrorTypeForbidden, CodeForbidden, "insufficient role", nil)

	// Rate Limit Errors
	ErrRateLimitExceeded = NewDomainError(ErrorTypeRateLimit, CodeRateLimited, "too many attempts, try again later", nil)

	// Conflict Errors
	ErrDuplicateSlug  = NewDomainError(ErrorTypeConflict, CodeDuplicateSlug, "an organization with this name already exists", nil)
	ErrDuplicateEmail = NewDomainError(ErrorTypeConflict, CodeDuplicateEmail, "email already registered", nil)

	// Internal Errors
	ErrInternal         = NewDomainError(ErrorTypeInternal, CodeInternal, "internal server error", nil)
	ErrStoreUnavailable = NewDomainError(ErrorTypeInternal, CodeStoreUnavailable, "backing store unavailable", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsGoneError checks if an error is a gone error
func IsGoneError(err error) bool {
	return GetErrorType(err) == ErrorTypeGone
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the code of a domain error, or empty string if not a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error. Store outages keep the
// store_unavailable code.
func WrapInternal(message string, err error) error {
	if errors.Is(err, repositories.ErrStoreUnavailable) {
		return ErrStoreUnavailable.Wrap(fmt.Errorf("%s: %w", message, err))
	}
	return NewDomainError(ErrorTypeInternal, CodeInternal, message, err)
}
