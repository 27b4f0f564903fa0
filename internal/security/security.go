package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/types"
)

const (
	MaxUsernameLength = 39

	analyzeRequestKey = "analyze_request"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z\d-]+$`)
	scriptPattern   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern  = regexp.MustCompile(`<[^>]+>`)
	blankRunPattern = regexp.MustCompile(`[ \t]+`)
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxResumeLength int           `json:"max_resume_length"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	EnableHSTS      bool          `json:"enable_hsts"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxResumeLength: 20000,
		RequestTimeout:  90 * time.Second,
	}
}

// SecurityMiddleware validates request input and sets response headers.
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// ValidateUsername checks a GitHub handle: letters, digits and hyphens,
// 1 to 39 characters.
func ValidateUsername(username string) error {
	if username == "" {
		return apperrors.NewValidationError("username is required")
	}
	if len(username) > MaxUsernameLength {
		return apperrors.NewValidationError(fmt.Sprintf("username exceeds maximum length of %d characters", MaxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return apperrors.NewValidationError("username may only contain letters, digits and hyphens")
	}
	return nil
}

// ValidateResumeText rejects resume text that is too long or not clean UTF-8.
func (sm *SecurityMiddleware) ValidateResumeText(text string) error {
	if len(text) > sm.config.MaxResumeLength {
		return apperrors.NewValidationError(fmt.Sprintf("resume_text exceeds maximum length of %d bytes", sm.config.MaxResumeLength))
	}
	if strings.Contains(text, "\x00") {
		return apperrors.NewValidationError("resume_text contains invalid characters")
	}
	if !utf8.ValidString(text) {
		return apperrors.NewValidationError("resume_text contains invalid UTF-8 encoding")
	}
	return nil
}

// SanitizeInput strips markup and control characters from free text while
// keeping line breaks.
func SanitizeInput(input string) string {
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	input = blankRunPattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// SecurityHeaders sets the headers every JSON response carries. The swagger
// UI serves its own inline scripts, so it gets no CSP.
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	if !strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
		c.Header("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")
	}
	if sm.config.EnableHSTS || c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Next()
}

// ValidateContentType requires JSON bodies on requests that carry one.
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if contentType != "" && !strings.Contains(contentType, "application/json") {
		appErr := apperrors.NewValidationError("unsupported content type, expected application/json")
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, appErr.Response())
		return
	}

	c.Next()
}

// RequestTimeout bounds the request context.
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// ValidateAnalyzeRequest binds and validates the analyze body and stores it
// for the handler, see AnalyzeRequestFrom.
func (sm *SecurityMiddleware) ValidateAnalyzeRequest(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, apperrors.NewValidationErrorWithMap("invalid request body", apperrors.BindingErrors(err)))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := ValidateUsername(req.Username); err != nil {
		abortWith(c, err)
		return
	}
	if err := sm.ValidateResumeText(req.ResumeText); err != nil {
		abortWith(c, err)
		return
	}
	req.ResumeText = SanitizeInput(req.ResumeText)

	c.Set(analyzeRequestKey, req)
	c.Next()
}

// AnalyzeRequestFrom returns the request stored by ValidateAnalyzeRequest.
func AnalyzeRequestFrom(c *gin.Context) (types.AnalyzeRequest, bool) {
	v, ok := c.Get(analyzeRequestKey)
	if !ok {
		return types.AnalyzeRequest{}, false
	}
	req, ok := v.(types.AnalyzeRequest)
	return req, ok
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortWith(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
}
