package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	logicv1 "github.com/garciabuilder/site-service/internal/logic/v1"
	"github.com/garciabuilder/site-service/middleware"
)

// maxSectionBody bounds a section PUT body.
const maxSectionBody = 64 << 10

// eventKeepAlive is how often an idle event stream sends a comment.
const eventKeepAlive = 25 * time.Second

// ProfileHandler serves the signed-in user's profile.
type ProfileHandler struct {
	service *logicv1.ProfileSync
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(service *logicv1.ProfileSync) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GetProfile returns the full profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	ctx, span := startSpan(c, "http.profile.get")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	profile, err := h.service.LoadProfile(ctx, userID, middleware.AuthUserFromContext(c))
	if err != nil {
		respondError(c, span, err, "Failed to load profile")
		return
	}

	resp := gin.H{"profile": profile}
	if bmi, ok := profile.BodyMetrics.BMI(); ok {
		resp["bmi"] = bmi
	}
	c.JSON(http.StatusOK, resp)
}

// GetSection returns one section
func (h *ProfileHandler) GetSection(c *gin.Context) {
	ctx, span := startSpan(c, "http.profile.get_section")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	section, err := domain.ParseSection(c.Param("section"))
	if err != nil {
		respondError(c, span, err, "Invalid profile section")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("profile.section", string(section)))

	data, err := h.service.Load(ctx, userID, section)
	if err != nil {
		respondError(c, span, err, "Failed to load profile section")
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "data": data})
}

// SaveSection merges the body into one section. A save that could not
// reach the remote is still a 200 with synced=false.
func (h *ProfileHandler) SaveSection(c *gin.Context) {
	ctx, span := startSpan(c, "http.profile.save_section")
	defer span.End()

	logger := middleware.GetLoggerFromGinContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	section, err := domain.ParseSection(c.Param("section"))
	if err != nil {
		respondError(c, span, err, "Invalid profile section")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("profile.section", string(section)))

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSectionBody+1))
	if err != nil || len(body) > maxSectionBody {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := validateSection(section, body); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		logger.Warn("Invalid profile section data", zap.String("section", string(section)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
		return
	}

	result, err := h.service.Save(ctx, userID, section, body)
	if err != nil {
		respondError(c, span, err, "Failed to save profile section")
		return
	}

	logger.Info("Profile section saved",
		zap.String("user_id", userID),
		zap.String("section", string(section)),
		zap.Bool("synced", result.Synced),
	)
	c.JSON(http.StatusOK, result)
}

// SyncPending resends the user's unsynced sections now
func (h *ProfileHandler) SyncPending(c *gin.Context) {
	ctx, span := startSpan(c, "http.profile.sync")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	n, err := h.service.SyncPending(ctx, userID)
	if err != nil {
		respondError(c, span, err, "Failed to sync pending sections")
		return
	}
	pending, err := h.service.PendingSections(ctx, userID)
	if err != nil {
		respondError(c, span, err, "Failed to list pending sections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": n, "pending": pending, "remote": h.service.HasRemote()})
}

// Pending lists sections not yet accepted by the remote
func (h *ProfileHandler) Pending(c *gin.Context) {
	ctx, span := startSpan(c, "http.profile.pending")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	pending, err := h.service.PendingSections(ctx, userID)
	if err != nil {
		respondError(c, span, err, "Failed to list pending sections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "remote": h.service.HasRemote()})
}

// Events streams the user's profile updates as server-sent events.
func (h *ProfileHandler) Events(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	updates, cancel := h.service.Events().Subscribe(userID, 16)
	defer cancel()

	keepAlive := time.NewTicker(eventKeepAlive)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case u, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("profile", u)
			return true
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}
