package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	status  int
	limited bool
}

func (e *fakeUpstream) Error() string     { return fmt.Sprintf("upstream returned %d", e.status) }
func (e *fakeUpstream) HTTPStatus() int   { return e.status }
func (e *fakeUpstream) Service() string   { return "GitHub" }
func (e *fakeUpstream) RateLimited() bool { return e.limited }

func TestAppErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		message  string
		category ErrorCategory
		status   int
	}{
		{
			name:     "validation",
			err:      NewValidationError("bad username", "username"),
			message:  "[VALIDATION_ERROR] bad username",
			category: CategoryValidation,
			status:   http.StatusBadRequest,
		},
		{
			name:     "not found",
			err:      NewNotFoundError("GitHub user 'ghost' not found.", nil),
			message:  "[NOT_FOUND] GitHub user 'ghost' not found.",
			category: CategoryNotFound,
			status:   http.StatusNotFound,
		},
		{
			name:     "authentication",
			err:      NewAuthenticationError("bad token", nil),
			message:  "[AUTHENTICATION_ERROR] bad token",
			category: CategoryAuthentication,
			status:   http.StatusUnauthorized,
		},
		{
			name:     "rate limit",
			err:      NewRateLimitError("Rate limit exceeded", "60s"),
			message:  "[RATE_LIMIT_EXCEEDED] Rate limit exceeded",
			category: CategoryRateLimit,
			status:   http.StatusTooManyRequests,
		},
		{
			name:     "configuration",
			err:      NewConfigurationError("CACHE_TTL is not a duration", nil),
			message:  "[CONFIGURATION_ERROR] Configuration error",
			category: CategoryConfiguration,
			status:   http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestToAppError(t *testing.T) {
	existing := NewValidationError("already typed")

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		status   int
	}{
		{name: "app error passes through", err: existing, category: CategoryValidation, status: 400},
		{name: "wrapped app error", err: fmt.Errorf("handler: %w", existing), category: CategoryValidation, status: 400},
		{name: "deadline", err: context.DeadlineExceeded, category: CategoryTimeout, status: 504},
		{name: "cancelled", err: fmt.Errorf("fetch: %w", context.Canceled), category: CategoryTimeout, status: 504},
		{name: "upstream 404", err: &fakeUpstream{status: 404}, category: CategoryNotFound, status: 404},
		{name: "upstream 401", err: &fakeUpstream{status: 401}, category: CategoryAuthentication, status: 401},
		{name: "upstream 403 rate limited", err: &fakeUpstream{status: 403, limited: true}, category: CategoryRateLimit, status: 429},
		{name: "upstream 429", err: &fakeUpstream{status: 429}, category: CategoryRateLimit, status: 429},
		{name: "upstream 500", err: fmt.Errorf("user: %w", &fakeUpstream{status: 500}), category: CategoryExternalAPI, status: 502},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), category: CategoryNetwork, status: 502},
		{name: "anything else", err: errors.New("boom"), category: CategoryInternal, status: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
		})
	}

	assert.Nil(t, ToAppError(nil))
	assert.Same(t, existing, ToAppError(existing))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(&fakeUpstream{status: 503}))
	assert.True(t, IsRetryableError(&fakeUpstream{status: 502}))
	assert.False(t, IsRetryableError(&fakeUpstream{status: 409}))
	assert.False(t, IsRetryableError(&fakeUpstream{status: 403}))
	assert.False(t, IsRetryableError(&fakeUpstream{status: 422}))
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.False(t, IsRetryableError(&fakeUpstream{status: 404}))
	assert.False(t, IsRetryableError(&fakeUpstream{status: 403, limited: true}))
	assert.False(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(nil))
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryHandler(), ErrorHandler())
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("GitHub user 'ghost' not found.", nil))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})

	tests := []struct {
		path   string
		status int
		detail string
	}{
		{"/missing", http.StatusNotFound, `"detail":"GitHub user 'ghost' not found."`},
		{"/plain", http.StatusInternalServerError, `"detail":"An unexpected error occurred"`},
		{"/panic", http.StatusInternalServerError, `"detail":"Internal server error"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.detail)
		})
	}
}

func TestNewValidationErrorWithMap(t *testing.T) {
	appErr := NewValidationErrorWithMap("invalid request body", map[string]string{
		"username": "failed on the 'required' rule",
	})

	assert.Equal(t, CategoryValidation, appErr.Category)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)

	body := appErr.Response()
	assert.Equal(t, "invalid request body", body["detail"])
	assert.Equal(t, map[string]string{"username": "failed on the 'required' rule"}, body["errors"])

	assert.NotContains(t, NewNotFoundError("missing", nil).Response(), "errors")
}

func TestBindingErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type payload struct {
		Username string `json:"username" binding:"required"`
		Count    int    `json:"count"`
	}

	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{"missing required field", `{}`, map[string]string{"username": "failed on the 'required' rule"}},
		{"wrong type", `{"username":"octocat","count":"many"}`, map[string]string{"count": "expected int, got string"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var p payload
			err := c.ShouldBindJSON(&p)
			require.Error(t, err)
			assert.Equal(t, tt.want, BindingErrors(err))
		})
	}

	assert.Contains(t, BindingErrors(errors.New("unexpected EOF")), "body")
}
