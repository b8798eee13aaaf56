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

// AuthHandler handles sign-up, sign-in, password reset and sign-out
type AuthHandler struct {
	service *logicv1.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *logicv1.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// SignUp registers an account
func (h *AuthHandler) SignUp(c *gin.Context) {
	ctx, span := startSpan(c, "http.auth.signup")
	defer span.End()

	var req domain.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		middleware.GetLoggerFromGinContext(c).Warn("Invalid sign-up request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
		return
	}

	session, err := h.service.SignUp(ctx, req)
	if err != nil {
		respondError(c, span, err, "Sign-up failed")
		return
	}

	if session.AccessToken == "" {
		c.JSON(http.StatusCreated, gin.H{
			"user":                  session.User,
			"confirmation_required": true,
			"message":               "Account created! Please check your email to confirm your account.",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":                  session.User,
		"session":               session,
		"confirmation_required": false,
		"message":               "Account created successfully!",
	})
}

// SignIn starts a session
func (h *AuthHandler) SignIn(c *gin.Context) {
	ctx, span := startSpan(c, "http.auth.signin")
	defer span.End()

	var req domain.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		middleware.GetLoggerFromGinContext(c).Warn("Invalid sign-in request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
		return
	}

	session, err := h.service.SignIn(ctx, req)
	if err != nil {
		respondError(c, span, err, "Sign-in failed")
		return
	}

	middleware.GetLoggerFromGinContext(c).Info("User signed in", zap.String("user_id", session.User.ID))
	c.JSON(http.StatusOK, session)
}

// ResetPassword emails a reset link
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	ctx, span := startSpan(c, "http.auth.reset")
	defer span.End()

	var req domain.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
		return
	}

	if err := h.service.ResetPassword(ctx, req.Email); err != nil {
		respondError(c, span, err, "Password reset failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent! Check your inbox."})
}

// SignOut ends the session and clears local copies
func (h *AuthHandler) SignOut(c *gin.Context) {
	ctx, span := startSpan(c, "http.auth.signout")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.service.SignOut(ctx, userID, c.GetString("access_token")); err != nil {
		respondError(c, span, err, "Sign-out failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me returns the locally recorded current user
func (h *AuthHandler) Me(c *gin.Context) {
	ctx, span := startSpan(c, "http.auth.me")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	current, err := h.service.CurrentUser(ctx, userID)
	if err != nil {
		respondError(c, span, err, "Failed to read current user")
		return
	}
	c.JSON(http.StatusOK, current)
}
