package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeAuthentication      = "AUTHENTICATION_FAILED"
	CodeDuplicateCredential = "DUPLICATE_CREDENTIAL"
	CodeNotFound            = "NOT_FOUND"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeInvalidImage        = "INVALID_IMAGE"
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeStorage             = "STORAGE_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
	// Details maps request fields to what was wrong with them.
	Details map[string]string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Field names the offending input, when there is one.
	Field   string
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so callers can use errors.Is with the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &AppError{Code: CodeValidation}
	ErrAuthentication      = &AppError{Code: CodeAuthentication}
	ErrDuplicateCredential = &AppError{Code: CodeDuplicateCredential}
	ErrNotFound            = &AppError{Code: CodeNotFound}
	ErrPayloadTooLarge     = &AppError{Code: CodePayloadTooLarge}
	ErrInvalidImage        = &AppError{Code: CodeInvalidImage}
	ErrUnsupportedFormat   = &AppError{Code: CodeUnsupportedFormat}
	ErrStorage             = &AppError{Code: CodeStorage}
)

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewDetailedValidationError carries per-field problems alongside the message.
func NewDetailedValidationError(field, message string, details map[string]string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
		Details: details,
	}
}

// NewFieldValidationError is a validation error tied to one input field.
func NewFieldValidationError(field, message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewAuthenticationError reports failed login; reason is kept for logs only.
func NewAuthenticationError(message, reason string) *AppError {
	return &AppError{
		Code:    CodeAuthentication,
		Message: message,
		Err:     errors.New(reason),
	}
}

// NewDuplicateCredentialError reports a taken username or email.
func NewDuplicateCredentialError(field string, err error) *AppError {
	msg := "Username is already taken."
	if field == "email" {
		msg = "Email is already registered."
	}
	return &AppError{
		Code:    CodeDuplicateCredential,
		Message: msg,
		Field:   field,
		Err:     err,
	}
}

func NewPayloadTooLargeError(message string) *AppError {
	return &AppError{
		Code:    CodePayloadTooLarge,
		Message: message,
	}
}

func NewInvalidImageError(err error) *AppError {
	return &AppError{
		Code:    CodeInvalidImage,
		Message: "Invalid image file.",
		Err:     err,
	}
}

func NewUnsupportedFormatError(format string) *AppError {
	return &AppError{
		Code:    CodeUnsupportedFormat,
		Message: "Only JPG, PNG, and WEBP images are allowed.",
		Err:     fmt.Errorf("decoded format %q", format),
	}
}

func NewStorageError(err error) *AppError {
	return &AppError{
		Code:    CodeStorage,
		Message: "Could not store file",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError writes a standardized JSON error body. Wrapped causes are never exposed.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
			Field: appErr.Field,
			Details: appErr.Details,
		}
	} else {
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  CodeInternal,
		}
	}

	return c.Status(status).JSON(response)
}
