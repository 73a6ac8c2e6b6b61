package engine

import "fmt"

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

// ForbiddenError carries a denial. The message is the policy tier reason
// and is safe to display; it never includes allowlist contents.
func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func NotFoundError(kind, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", kind, id),
	}
}

// ValidationError rejects a call missing a required identifier.
func ValidationError(msg string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Status: 422, Message: msg}
}

// LookupFailedError reports a membership gateway failure. It is distinct
// from a denial: the caller decides whether to retry or fail closed.
func LookupFailedError(err error) *AppError {
	return &AppError{
		Code:    "LOOKUP_FAILED",
		Status:  502,
		Message: fmt.Sprintf("Organization membership lookup failed: %v", err),
	}
}
