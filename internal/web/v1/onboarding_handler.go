package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	logicv1 "github.com/garciabuilder/site-service/internal/logic/v1"
	"github.com/garciabuilder/site-service/middleware"
)

// OnboardingHandler sends the post-purchase welcome email
type OnboardingHandler struct {
	service *logicv1.OnboardingService
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(service *logicv1.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{service: service}
}

type welcomeRequest struct {
	Plan     string `json:"plan" binding:"required,max=64"`
	PlanName string `json:"plan_name" binding:"max=120"`
	Locale   string `json:"locale" binding:"max=10"`
}

// Welcome emails the signed-in user the next steps for the plan they bought.
// The address is the account's, never one from the body.
func (h *OnboardingHandler) Welcome(c *gin.Context) {
	ctx, span := startSpan(c, "http.onboarding.welcome")
	defer span.End()

	if _, ok := requireUserID(c); !ok {
		return
	}
	var req welcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.GetLoggerFromGinContext(c).Warn("Invalid onboarding request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
		return
	}
	span.SetAttributes(attribute.String("pricing.plan", req.Plan))

	var name, email string
	if user := middleware.AuthUserFromContext(c); user != nil {
		name, email = user.FullName(), user.Email
	}
	sent, err := h.service.SendWelcome(ctx, domain.OnboardingRequest{
		Email:    email,
		Name:     name,
		PlanKey:  req.Plan,
		PlanName: req.PlanName,
		Locale:   req.Locale,
	})
	if err != nil {
		respondError(c, span, err, "Failed to send onboarding email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sent": sent})
}
