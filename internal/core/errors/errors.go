package errors

const (
	HttpInternalError     = "internal_error"
	HttpInvalidJsonError  = "invalid_json"
	HttpValidationError   = "validation_failed"
	HttpInvalidPhoneError = "invalid_phone"
	HttpNotFoundError     = "not_found"
	HttpDuplicateError    = "duplicate"
	HttpUnauthorizedError = "unauthorized"
)

// ErrorResponse is the JSON error body shared by all HTTP surfaces.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
