package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Provider error codes. One of these is set as the Code on every
// ErrorTypeProvider AppError so callers can tell transport failures apart
// from configuration problems without string matching.
const (
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeUnknownModel      = "UNKNOWN_MODEL"
	CodeUnknownProvider   = "UNKNOWN_PROVIDER"
	CodeTransportFailure  = "TRANSPORT_FAILURE"
)

// NewMissingCredentialError creates a provider error for an unconfigured API key
func NewMissingCredentialError(provider string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       CodeMissingCredential,
		Message:    fmt.Sprintf("%s API key not configured", provider),
		Details:    map[string]interface{}{"provider": provider},
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// NewUnknownModelError creates a provider error for an unresolvable model id
func NewUnknownModelError(modelID string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       CodeUnknownModel,
		Message:    fmt.Sprintf("unknown model: %s", modelID),
		Details:    map[string]interface{}{"modelId": modelID},
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// NewUnknownProviderError creates a provider error for an unroutable provider
func NewUnknownProviderError(modelID string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       CodeUnknownProvider,
		Message:    fmt.Sprintf("unknown provider for model: %s", modelID),
		Details:    map[string]interface{}{"modelId": modelID},
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// NewTransportFailureError creates a provider error for a failed completion call
func NewTransportFailureError(status int, body string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       CodeTransportFailure,
		Message:    fmt.Sprintf("completion request failed with status %d", status),
		Details:    map[string]interface{}{"status": status, "body": body},
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// NewVisionUnsupportedError creates the pre-flight error raised when a turn
// carries image attachments but one or more targeted models cannot accept
// them. The offending model names are kept in Details under "models".
func NewVisionUnsupportedError(modelNames []string) *AppError {
	return &AppError{
		Type:       ErrorTypeVisionUnsupported,
		Message:    fmt.Sprintf("attachments not supported by: %s", strings.Join(modelNames, ", ")),
		Details:    map[string]interface{}{"models": modelNames},
		HTTPStatus: http.StatusUnprocessableEntity,
		StackTrace: captureStackTrace(),
	}
}

// NewAllModelsFailedError creates the council-mode error raised when every
// dispatched model call settles with a failure.
func NewAllModelsFailedError(dispatched int) *AppError {
	return &AppError{
		Type:       ErrorTypeAllModelsFailed,
		Message:    fmt.Sprintf("all %d model dispatches failed", dispatched),
		Details:    map[string]interface{}{"dispatched": dispatched},
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// IsProvider checks if an error is a provider error
func IsProvider(err error) bool {
	return IsType(err, ErrorTypeProvider)
}

// IsVisionUnsupported checks if an error is a vision gate failure
func IsVisionUnsupported(err error) bool {
	return IsType(err, ErrorTypeVisionUnsupported)
}

// IsAllModelsFailed checks if an error is a council aggregation failure
func IsAllModelsFailed(err error) bool {
	return IsType(err, ErrorTypeAllModelsFailed)
}

// ProviderCode returns the provider error code, or "" for other errors
func ProviderCode(err error) string {
	appErr := GetAppError(err)
	if appErr == nil || appErr.Type != ErrorTypeProvider {
		return ""
	}
	return appErr.Code
}
