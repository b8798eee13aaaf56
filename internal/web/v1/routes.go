package v1

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/middleware"
)

// Handlers groups the API handlers. A nil handler leaves its routes unregistered.
type Handlers struct {
	Profile    *ProfileHandler
	Auth       *AuthHandler
	Pricing    *PricingHandler
	Inquiry    *InquiryHandler
	Onboarding *OnboardingHandler
	Verifier   middleware.TokenVerifier
	// AllowFallback lets unauthenticated requests act as the demo user.
	AllowFallback bool
}

// SetupRoutes registers the site API on r.
func SetupRoutes(r *gin.Engine, h Handlers, logger *zap.Logger) {
	if h.Inquiry != nil {
		// the forms post to these exact paths; anything but POST is a 405
		r.Any("/api/contact", h.Inquiry.Contact)
		r.Any("/api/lead", h.Inquiry.Lead)
		r.Any("/api/newsletter", h.Inquiry.Newsletter)
	}

	auth := middleware.AuthMiddleware(h.Verifier, logger, h.AllowFallback)

	apiV1 := r.Group("/api/v1")
	if h.Auth != nil {
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", h.Auth.SignUp)
			authGroup.POST("/signin", h.Auth.SignIn)
			authGroup.POST("/reset", h.Auth.ResetPassword)
			authGroup.POST("/signout", auth, h.Auth.SignOut)
			authGroup.GET("/me", auth, h.Auth.Me)
		}
	}

	if h.Pricing != nil {
		apiV1.GET("/pricing", h.Pricing.ListPricing)
		apiV1.GET("/pricing/:plan/link", h.Pricing.PaymentLink)

		discounts := apiV1.Group("/discounts")
		discounts.Use(auth)
		{
			discounts.POST("/apply", h.Pricing.ApplyDiscount)
			discounts.GET("/active", h.Pricing.ActiveDiscount)
			discounts.DELETE("/active", h.Pricing.RemoveDiscount)
		}
	}

	if h.Onboarding != nil {
		apiV1.POST("/onboarding/welcome", auth, h.Onboarding.Welcome)
	}

	if h.Profile != nil {
		profileGroup := apiV1.Group("/users/profile")
		profileGroup.Use(auth)
		{
			profileGroup.GET("", h.Profile.GetProfile)
			profileGroup.POST("/sync", h.Profile.SyncPending)
			profileGroup.GET("/pending", h.Profile.Pending)
			profileGroup.GET("/events", h.Profile.Events)
			profileGroup.GET("/:section", h.Profile.GetSection)
			profileGroup.PUT("/:section", h.Profile.SaveSection)
		}
	}
}
