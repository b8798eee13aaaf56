package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	logicv1 "github.com/garciabuilder/site-service/internal/logic/v1"
	"github.com/garciabuilder/site-service/middleware"
)

// InquiryHandler serves the public contact, lead and newsletter forms.
// Unparseable bodies are treated as empty, as the forms post loosely.
type InquiryHandler struct {
	service *logicv1.InquiryService
}

// NewInquiryHandler creates a new inquiry handler
func NewInquiryHandler(service *logicv1.InquiryService) *InquiryHandler {
	return &InquiryHandler{service: service}
}

// postOnly answers non-POST requests with 405.
func postOnly(c *gin.Context) bool {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return false
	}
	return true
}

// respondInquiryError maps inquiry failures; storage errors are 500 {error}.
func respondInquiryError(c *gin.Context, err error, missingMsg string) {
	logger := middleware.GetLoggerFromGinContext(c)
	switch {
	case errors.Is(err, domain.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": missingMsg})
	case errors.Is(err, domain.ErrRateLimited):
		logger.Warn("Submission throttled", zap.Error(err))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Please wait a moment before submitting again"})
	case errors.Is(err, domain.ErrNoRemote):
		logger.Error("Submission rejected, no database configured", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		logger.Error("Failed to store submission", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}

// Contact stores a contact inquiry
func (h *InquiryHandler) Contact(c *gin.Context) {
	if !postOnly(c) {
		return
	}
	ctx, span := startSpan(c, "http.inquiry.contact")
	defer span.End()

	var req domain.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.GetLoggerFromGinContext(c).Debug("Unparseable contact body", zap.Error(err))
	}

	if _, err := h.service.SubmitContact(ctx, req, requestMeta(c)); err != nil {
		middleware.RecordError(span, err)
		respondInquiryError(c, err, logicv1.MessageContactRequired)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Lead stores a marketing lead
func (h *InquiryHandler) Lead(c *gin.Context) {
	if !postOnly(c) {
		return
	}
	ctx, span := startSpan(c, "http.inquiry.lead")
	defer span.End()

	body := map[string]any{}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.GetLoggerFromGinContext(c).Debug("Unparseable lead body", zap.Error(err))
		body = map[string]any{}
	}

	if _, err := h.service.CaptureLead(ctx, body, requestMeta(c)); err != nil {
		middleware.RecordError(span, err)
		respondInquiryError(c, err, logicv1.MessageEmailRequired)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type newsletterRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Newsletter subscribes an email address
func (h *InquiryHandler) Newsletter(c *gin.Context) {
	if !postOnly(c) {
		return
	}
	ctx, span := startSpan(c, "http.inquiry.newsletter")
	defer span.End()

	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.GetLoggerFromGinContext(c).Debug("Unparseable newsletter body", zap.Error(err))
	}

	if _, err := h.service.Subscribe(ctx, req.Email, req.Name, req.Source, requestMeta(c)); err != nil {
		middleware.RecordError(span, err)
		respondInquiryError(c, err, logicv1.MessageEmailRequired)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
