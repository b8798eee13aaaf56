package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/middleware"
)

// startSpan opens the web-layer span of a request.
func startSpan(c *gin.Context, name string) (context.Context, trace.Span) {
	return middleware.StartSpan(c.Request.Context(), name, trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.FullPath()),
	))
}

// errorStatus maps domain errors to a status and a client-safe message.
var errorStatus = []struct {
	target  error
	status  int
	message string
}{
	{domain.ErrUnknownSection, http.StatusBadRequest, "Unknown profile section"},
	{domain.ErrInvalidSectionData, http.StatusBadRequest, "Invalid profile data"},
	{domain.ErrInvalidEmail, http.StatusBadRequest, "Invalid email address"},
	{domain.ErrWeakPassword, http.StatusBadRequest, "Password must be at least 8 characters long"},
	{domain.ErrMissingField, http.StatusBadRequest, "Required field missing"},
	{domain.ErrInvalidPeriod, http.StatusBadRequest, "Invalid billing period"},
	{domain.ErrInvalidDiscountCode, http.StatusBadRequest, "Invalid discount code"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "Authentication required"},
	{domain.ErrEmailNotConfirmed, http.StatusForbidden, "Please confirm your email before signing in"},
	{domain.ErrProfileNotFound, http.StatusNotFound, "Profile not found"},
	{domain.ErrInvalidPlan, http.StatusNotFound, "Plan not found"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "Please wait a moment before submitting again"},
	{domain.ErrAuthProvider, http.StatusBadGateway, "Authentication service unavailable"},
	{domain.ErrNoRemote, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// respondError writes the mapped error. 4xx are logged at warn, the rest at error.
func respondError(c *gin.Context, span trace.Span, err error, logMsg string) {
	logger := middleware.GetLoggerFromGinContext(c)
	middleware.RecordError(span, err)

	for _, m := range errorStatus {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				logger.Error(logMsg, zap.Error(err))
			} else {
				logger.Warn(logMsg, zap.Error(err))
			}
			c.JSON(m.status, gin.H{"error": m.message})
			return
		}
	}

	logger.Error(logMsg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// requireUserID returns the authenticated user or writes 401.
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		middleware.GetLoggerFromGinContext(c).Warn("No user_id in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return "", false
	}
	return userID, true
}

// requestMeta collects header fallbacks for form submissions.
func requestMeta(c *gin.Context) domain.RequestMeta {
	return domain.RequestMeta{
		ClientIP:      c.ClientIP(),
		Referer:       c.GetHeader("Referer"),
		UserAgent:     c.Request.UserAgent(),
		OriginalURL:   c.GetHeader("X-Original-URL"),
		DeploymentURL: c.GetHeader("X-Vercel-Deployment-URL"),
	}
}

// validateSection checks a partial section document against the section's
// binding rules before it is merged.
func validateSection(section domain.Section, data json.RawMessage) error {
	var target any
	switch section {
	case domain.SectionBasic:
		target = &domain.Basic{}
	case domain.SectionBodyMetrics:
		target = &domain.BodyMetrics{}
	case domain.SectionPreferences:
		target = &domain.Preferences{}
	default:
		// free-form sections only need to be JSON objects
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decode section %s: %v: %w", section, err, domain.ErrInvalidSectionData)
		}
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode section %s: %v: %w", section, err, domain.ErrInvalidSectionData)
	}
	if err := binding.Validator.ValidateStruct(target); err != nil {
		return fmt.Errorf("validate section %s: %w: %w", section, err, domain.ErrInvalidSectionData)
	}
	return nil
}
