package monitoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	slowRequestThreshold = 5 * time.Second
	// resume text makes analyze bodies larger than a bare username
	maxAnalyzeBody = 64 << 10
)

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		ip := c.ClientIP()
		userAgent := c.GetHeader("User-Agent")
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)
		if statusCode >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(method, path, ip, userAgent, statusCode, duration)

		for _, err := range c.Errors {
			logger.APIErrorLogger(err.Err, method, path, ip, statusCode)
		}

		if duration > slowRequestThreshold {
			logger.SystemLogger("slow_request", fmt.Sprintf("%s %s took %s", method, path, duration.Round(time.Millisecond)))
		}
	}
}

// SecurityMonitoringMiddleware logs, but does not block, suspicious requests.
func SecurityMonitoringMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userAgent := c.GetHeader("User-Agent")
		details := make(map[string]interface{})

		switch {
		case containsSQLInjectionPatterns(c.Request.URL.RawQuery):
			details["type"] = "potential_sql_injection"
			details["query"] = c.Request.URL.RawQuery
		case c.Request.Method == "POST" && c.Request.URL.Path == "/api/analyze" && c.Request.ContentLength > maxAnalyzeBody:
			details["type"] = "large_request_body"
			details["size_bytes"] = c.Request.ContentLength
		case containsSuspiciousUserAgent(userAgent):
			details["type"] = "suspicious_user_agent"
			details["user_agent"] = userAgent
		}

		if len(details) > 0 {
			logger.SecurityLogger("suspicious_activity_detected", c.ClientIP(), userAgent, details)
		}

		c.Next()
	}
}

var sqlInjectionPatterns = []string{
	"union select",
	"union all",
	"select * from",
	"drop table",
	"delete from",
	"';--",
	"/*",
	"*/",
	" xp_",
}

var suspiciousAgents = []string{
	"sqlmap",
	"nmap",
	"masscan",
	"zmap",
	"dirbuster",
	"gobuster",
	"nikto",
	"acunetix",
	"nessus",
}

func containsSQLInjectionPatterns(query string) bool {
	return containsAny(query, sqlInjectionPatterns)
}

func containsSuspiciousUserAgent(userAgent string) bool {
	return containsAny(userAgent, suspiciousAgents)
}

func containsAny(s string, patterns []string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
