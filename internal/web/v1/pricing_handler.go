package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/garciabuilder/site-service/internal/core/domain"
	logicv1 "github.com/garciabuilder/site-service/internal/logic/v1"
)

// PricingHandler serves plans, quotes, payment links and discount codes
type PricingHandler struct {
	service *logicv1.PricingService
	now     func() time.Time
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(service *logicv1.PricingService) *PricingHandler {
	return &PricingHandler{service: service, now: time.Now}
}

type planQuote struct {
	domain.Plan
	Quote domain.Quote `json:"quote"`
}

type applyDiscountRequest struct {
	Code string `json:"code" binding:"required"`
}

// invalidCode answers an unknown code with "did you mean" suggestions.
func (h *PricingHandler) invalidCode(c *gin.Context, code string) {
	resp := gin.H{"error": "Invalid discount code. Please try again."}
	if suggestions := h.service.SuggestCodes(code); len(suggestions) > 0 {
		resp["suggestions"] = suggestions
	}
	c.JSON(http.StatusBadRequest, resp)
}

// ListPricing returns every plan quoted for ?period= and ?code=
func (h *PricingHandler) ListPricing(c *gin.Context) {
	_, span := startSpan(c, "http.pricing.list")
	defer span.End()

	period, code := c.Query("period"), c.Query("code")
	quotes, err := h.service.Quotes(period, code)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDiscountCode) {
			h.invalidCode(c, code)
			return
		}
		respondError(c, span, err, "Failed to quote plans")
		return
	}

	catalog := h.service.Catalog()
	plans := make([]planQuote, 0, len(catalog.Plans))
	for i, p := range catalog.Plans {
		plans = append(plans, planQuote{Plan: p, Quote: quotes[i]})
	}
	c.JSON(http.StatusOK, gin.H{
		"currency": catalog.Currency,
		"periods":  catalog.Periods,
		"plans":    plans,
	})
}

// PaymentLink returns (or redirects to) the checkout link of a plan
func (h *PricingHandler) PaymentLink(c *gin.Context) {
	_, span := startSpan(c, "http.pricing.link")
	defer span.End()

	plan, period, code := c.Param("plan"), c.Query("period"), c.Query("code")
	span.SetAttributes(attribute.String("pricing.plan", plan), attribute.String("pricing.period", period))

	link, err := h.service.PaymentLink(plan, period, code, h.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDiscountCode) {
			h.invalidCode(c, code)
			return
		}
		respondError(c, span, err, "Failed to build payment link")
		return
	}

	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusFound, link)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": link})
}

// ApplyDiscount stores the code as the user's active discount
func (h *PricingHandler) ApplyDiscount(c *gin.Context) {
	ctx, span := startSpan(c, "http.discount.apply")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req applyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a discount code"})
		return
	}

	active, err := h.service.ApplyDiscount(ctx, userID, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDiscountCode) {
			h.invalidCode(c, req.Code)
			return
		}
		respondError(c, span, err, "Failed to apply discount")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"discount": active,
		"message":  active.Description + " applied!",
	})
}

// ActiveDiscount returns the user's applied code, or null
func (h *PricingHandler) ActiveDiscount(c *gin.Context) {
	ctx, span := startSpan(c, "http.discount.active")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	active, err := h.service.ActiveDiscount(ctx, userID)
	if err != nil {
		respondError(c, span, err, "Failed to read active discount")
		return
	}
	c.JSON(http.StatusOK, gin.H{"discount": active})
}

// RemoveDiscount clears the user's applied code
func (h *PricingHandler) RemoveDiscount(c *gin.Context) {
	ctx, span := startSpan(c, "http.discount.remove")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.service.RemoveDiscount(ctx, userID); err != nil {
		respondError(c, span, err, "Failed to remove discount")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
