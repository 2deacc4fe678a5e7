package models

// ErrorCode is the machine readable code in error responses
type ErrorCode string

const (
	ErrorCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrorCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrorCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrorCodePolicyNotFound     ErrorCode = "POLICY_NOT_FOUND"
	ErrorCodeContentNotFound    ErrorCode = "CONTENT_NOT_FOUND"
	ErrorCodeEmailNotFound      ErrorCode = "EMAIL_NOT_FOUND"
	ErrorCodeConflict           ErrorCode = "CONFLICT"
	ErrorCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeTokenMissing       ErrorCode = "TOKEN_MISSING"
	ErrorCodeTokenMalformed     ErrorCode = "TOKEN_MALFORMED"
	ErrorCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrorCodeTokenMismatch      ErrorCode = "TOKEN_CONTENT_MISMATCH"
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_API_KEY"
)

// ErrorResponse is the JSON envelope for every error
type ErrorResponse struct {
	Error   string    `json:"error"`
	Code    ErrorCode `json:"code,omitempty"`
	Details string    `json:"details,omitempty"`
}
