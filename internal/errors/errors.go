package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryNetwork        ErrorCategory = "network"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryInternal       ErrorCategory = "internal"
	CategoryExternalAPI    ErrorCategory = "external_api"
	CategoryConfiguration  ErrorCategory = "configuration"
)

// AppError wraps an errbuilder error with the HTTP-facing context the server needs.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

func (e *AppError) Error() string {
	codeStr := "UNKNOWN_ERROR"
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		codeStr = "VALIDATION_ERROR"
	case errbuilder.CodeNotFound:
		codeStr = "NOT_FOUND"
	case errbuilder.CodeUnauthenticated:
		codeStr = "AUTHENTICATION_ERROR"
	case errbuilder.CodeUnavailable:
		codeStr = "UPSTREAM_ERROR"
	case errbuilder.CodeDeadlineExceeded:
		codeStr = "TIMEOUT_ERROR"
	case errbuilder.CodeResourceExhausted:
		codeStr = "RATE_LIMIT_EXCEEDED"
	case errbuilder.CodeInternal:
		codeStr = "INTERNAL_ERROR"
	case errbuilder.CodeFailedPrecondition:
		codeStr = "CONFIGURATION_ERROR"
	}

	return fmt.Sprintf("[%s] %s", codeStr, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// Response is the body written to clients. Causes and stack traces stay in the logs.
func (e *AppError) Response() gin.H {
	body := gin.H{
		"detail":   e.ErrBuilder.Msg,
		"category": e.Category,
		"status":   e.HTTPStatus,
	}
	if e.Category == CategoryValidation && len(e.ErrBuilder.Details.Errors) > 0 {
		fields := make(map[string]string, len(e.ErrBuilder.Details.Errors))
		for field := range e.ErrBuilder.Details.Errors {
			fields[field] = e.ErrBuilder.Details.Errors.Get(field)
		}
		body["errors"] = fields
	}
	return body
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// NewValidationError creates a validation error using errbuilder
func NewValidationError(message string, details ...interface{}) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		errorMap.Set("validation_details", fmt.Errorf("%v", details[0]))
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

func NewNotFoundError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryNotFound, http.StatusNotFound)
}

func NewAuthenticationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnauthenticated).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryAuthentication, http.StatusUnauthorized)
}

// NewNetworkError creates a network error using errbuilder
func NewNetworkError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryNetwork, http.StatusBadGateway)
}

// NewTimeoutError creates a timeout error using errbuilder
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError creates a rate limit error. retryAfter is optional.
func NewRateLimitError(message string, retryAfter string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg(message)

	if retryAfter != "" {
		errorMap := errbuilder.ErrorMap{}
		errorMap.Set("retry_after", errors.New(retryAfter))
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewExternalAPIError creates an external API error using errbuilder
func NewExternalAPIError(apiName string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("api_name", errors.New(apiName))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(fmt.Sprintf("%s API error", apiName)).
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryExternalAPI, http.StatusBadGateway)
}

// NewInternalError creates an internal server error. message is exposed to
// clients; internal details belong in cause.
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := NewAppError(builder, CategoryInternal, http.StatusInternalServerError)

	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// NewConfigurationError creates a configuration error using errbuilder
func NewConfigurationError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("config_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler is a Gin middleware that renders the last error attached to the context.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		appErr.RequestID = c.GetHeader("X-Request-ID")

		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr.Response())
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError("Internal server error", fmt.Errorf("panic: %v", recovered))
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
	})
}

// upstreamError is satisfied by client errors that carry the status code of a
// failed upstream HTTP call.
type upstreamError interface {
	error
	HTTPStatus() int
	Service() string
}

// rateLimited is satisfied by upstream errors that can tell a quota rejection
// apart from a plain 403.
type rateLimited interface {
	RateLimited() bool
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}

	var upstream upstreamError
	if errors.As(err, &upstream) {
		return fromUpstream(upstream)
	}

	var ebErr *errbuilder.ErrBuilder
	if errors.As(err, &ebErr) {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError("Request timeout", err)
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "network is unreachable") {
		return NewNetworkError("Network connection failed", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

func fromUpstream(err upstreamError) *AppError {
	if rl, ok := err.(rateLimited); ok && rl.RateLimited() {
		return NewRateLimitError(fmt.Sprintf("%s rate limit exceeded", err.Service()), "")
	}

	switch err.HTTPStatus() {
	case http.StatusNotFound:
		return NewNotFoundError(fmt.Sprintf("%s resource not found", err.Service()), err)
	case http.StatusUnauthorized:
		return NewAuthenticationError(fmt.Sprintf("%s authentication failed", err.Service()), err)
	case http.StatusTooManyRequests:
		return NewRateLimitError(fmt.Sprintf("%s rate limit exceeded", err.Service()), "")
	default:
		return NewExternalAPIError(err.Service(), err)
	}
}

// LogError logs an error with appropriate level and context
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", err.RequestID,
	)

	errorMsg := err.ErrBuilder.Msg
	cause := err.ErrBuilder.Unwrap()

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryNotFound, CategoryAuthentication:
		if cause != nil {
			logEntry.Warn(errorMsg, "cause", cause)
		} else {
			logEntry.Warn(errorMsg)
		}
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI:
		if cause != nil {
			logEntry.Info(errorMsg, "cause", cause)
		} else {
			logEntry.Info(errorMsg)
		}
	default:
		if cause != nil {
			logEntry.Error(errorMsg, "cause", cause)
		} else {
			logEntry.Error(errorMsg)
		}
	}

	if err.StackTrace != "" && (gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode) {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// IsRetryableError checks if an error should trigger a retry
func IsRetryableError(err error) bool {
	appErr := ToAppError(err)
	if appErr == nil {
		return false
	}

	switch appErr.Category {
	case CategoryNetwork:
		return true
	case CategoryExternalAPI:
		// Only server-side upstream failures are transient; a 403, 409 or 422
		// answers the same way on every attempt.
		var upstream upstreamError
		if errors.As(err, &upstream) {
			return upstream.HTTPStatus() >= http.StatusInternalServerError
		}
		return true
	case CategoryTimeout:
		// The caller's own deadline or cancellation is final.
		return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
	default:
		return false
	}
}

// SafeClose safely closes a resource and logs any errors
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}

// NewValidationErrorWithMap creates a validation error carrying one message
// per offending field.
func NewValidationErrorWithMap(message string, validationErrors map[string]string) *AppError {
	errMap := errbuilder.ErrorMap{}

	for field, msg := range validationErrors {
		errMap.Set(field, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(msg))
	}

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message).
		WithDetails(errbuilder.NewErrDetails(errMap))

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// BindingErrors flattens a gin binding error into field messages. Decode
// failures that name no field are reported under "body".
func BindingErrors(err error) map[string]string {
	fields := make(map[string]string)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
		return fields
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		fields[typeErr.Field] = fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
		return fields
	}

	fields["body"] = err.Error()
	return fields
}
