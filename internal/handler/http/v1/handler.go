package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shenikar/emergency_tracker/internal/config"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	trackerService service.TrackerService
	logger         *logrus.Logger
	validate       *validator.Validate
	cfg            *config.Config
}

func NewHandler(trackerService service.TrackerService, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		trackerService: trackerService,
		logger:         logger,
		validate:       validator.New(),
		cfg:            cfg,
	}
}

// @Summary Open a session
// @Description Open a tracking session for a user. Replaces the current session. Requires API key.
// @Tags Session
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param session body LoginRequest true "Session credentials"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /session/login [post]
func (h *Handler) login(c *gin.Context) {
	var input LoginRequest
	log := h.logger.WithField("method", "login")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := DTOToSession(input)
	if err := h.trackerService.Login(c.Request.Context(), session); err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToSessionResponse(session))
}

// @Summary Close the session
// @Description Close the current session and stop tracking. Requires API key.
// @Tags Session
// @Produce json
// @Security ApiKeyAuth
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /session/logout [post]
func (h *Handler) logout(c *gin.Context) {
	log := h.logger.WithField("method", "logout")
	if err := h.trackerService.Logout(c.Request.Context()); err != nil {
		h.respondError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get the current session
// @Description Get the user and role of the current session. Requires API key.
// @Tags Session
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SessionResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "No active session"
// @Router /session [get]
func (h *Handler) getSession(c *gin.Context) {
	session, ok := h.trackerService.CurrentSession()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, ModelToSessionResponse(session))
}

// @Summary Get the tracked emergency
// @Description Get the current snapshot of the tracked emergency. Requires API key.
// @Tags Emergency
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SnapshotResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "No active session"
// @Router /emergency [get]
func (h *Handler) getEmergency(c *gin.Context) {
	log := h.logger.WithField("method", "getEmergency")
	snap, err := h.trackerService.Snapshot()
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToSnapshotResponse(snap))
}

// @Summary Stream snapshots
// @Description Server-sent events with every new snapshot of the tracked emergency. The first event is the current snapshot. Requires API key.
// @Tags Emergency
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Success 200 {object} SnapshotResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "No active session"
// @Router /emergency/stream [get]
func (h *Handler) streamEmergency(c *gin.Context) {
	log := h.logger.WithField("method", "streamEmergency")

	// В ячейке лежит только последний снимок: отстающий клиент пропускает промежуточные,
	// но всегда получает самый свежий
	updates := make(chan models.Snapshot, 1)
	unsubscribe, err := h.trackerService.Subscribe(func(snap models.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			select {
			case old := <-updates:
				log.WithField("version", old.Version).Debug("Stream client is behind, snapshot replaced")
			default:
			}
		}
	})
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	defer unsubscribe()

	current, err := h.trackerService.Snapshot()
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", ModelToSnapshotResponse(current))
	c.Writer.Flush()

	last := current.Version
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap := <-updates:
			if snap.Version <= last {
				return true
			}
			last = snap.Version
			c.SSEvent("snapshot", ModelToSnapshotResponse(snap))
			return true
		}
	})
	log.Debug("Stream client disconnected")
}

// @Summary Track an emergency
// @Description Start tracking an emergency by ID. An empty ID looks up the emergency of the session user. Requires API key.
// @Tags Emergency
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param track body TrackRequest false "Emergency to track"
// @Success 200 {object} SnapshotResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Emergency not found"
// @Failure 409 {object} map[string]string "No active session"
// @Router /emergency/track [post]
func (h *Handler) trackEmergency(c *gin.Context) {
	var input TrackRequest
	log := h.logger.WithField("method", "trackEmergency")

	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			log.WithError(err).Warn("Failed to bind JSON")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.trackerService.Track(c.Request.Context(), input.EmergencyID)
	if err != nil {
		h.respondError(c, log.WithField("emergency_id", input.EmergencyID), err)
		return
	}
	c.JSON(http.StatusOK, ModelToSnapshotResponse(snap))
}

// @Summary Trigger SOS
// @Description Create a new emergency at the given location and start tracking it. Residents only. Requires API key.
// @Tags Emergency
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sos body SOSRequest true "SOS request"
// @Success 201 {object} SnapshotResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Action not allowed for role"
// @Failure 409 {object} map[string]string "No active session"
// @Failure 502 {object} map[string]string "Backend error"
// @Router /emergency/sos [post]
func (h *Handler) triggerSOS(c *gin.Context) {
	var input SOSRequest
	log := h.logger.WithField("method", "triggerSOS")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.trackerService.TriggerSOS(c.Request.Context(), DTOToSOSRequest(input))
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToSnapshotResponse(snap))
}

// @Summary Accept the tracked emergency
// @Description Responders only. Requires API key.
// @Tags Emergency
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SnapshotResponse
// @Failure 403 {object} map[string]string "Action not allowed for role"
// @Failure 404 {object} map[string]string "No tracked emergency"
// @Failure 409 {object} map[string]string "Emergency is terminal or no active session"
// @Failure 502 {object} map[string]string "Backend error"
// @Router /emergency/accept [post]
func (h *Handler) acceptEmergency(c *gin.Context) {
	h.performAction(c, models.ActionAccept)
}

// @Summary Mark arrival at the tracked emergency
// @Description Responders only. Requires API key.
// @Tags Emergency
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SnapshotResponse
// @Failure 403 {object} map[string]string "Action not allowed for role"
// @Failure 404 {object} map[string]string "No tracked emergency"
// @Failure 409 {object} map[string]string "Emergency is terminal or no active session"
// @Failure 502 {object} map[string]string "Backend error"
// @Router /emergency/arrive [post]
func (h *Handler) arriveEmergency(c *gin.Context) {
	h.performAction(c, models.ActionArrive)
}

// @Summary Resolve the tracked emergency
// @Description Responders only. Requires API key.
// @Tags Emergency
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SnapshotResponse
// @Failure 403 {object} map[string]string "Action not allowed for role"
// @Failure 404 {object} map[string]string "No tracked emergency"
// @Failure 409 {object} map[string]string "Emergency is terminal or no active session"
// @Failure 502 {object} map[string]string "Backend error"
// @Router /emergency/resolve [post]
func (h *Handler) resolveEmergency(c *gin.Context) {
	h.performAction(c, models.ActionResolve)
}

// @Summary Flag the tracked emergency as fraud
// @Description Responders only. Requires API key.
// @Tags Emergency
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SnapshotResponse
// @Failure 403 {object} map[string]string "Action not allowed for role"
// @Failure 404 {object} map[string]string "No tracked emergency"
// @Failure 409 {object} map[string]string "Emergency is terminal or no active session"
// @Failure 502 {object} map[string]string "Backend error"
// @Router /emergency/mark-fraud [post]
func (h *Handler) markFraudEmergency(c *gin.Context) {
	h.performAction(c, models.ActionMarkFraud)
}

func (h *Handler) performAction(c *gin.Context, action models.Action) {
	log := h.logger.WithField("method", "performAction").WithField("action", action)
	snap, err := h.trackerService.PerformAction(c.Request.Context(), action)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToSnapshotResponse(snap))
}

// @Summary Update device position
// @Description Store the latest device position used for responder location reports. Requires API key.
// @Tags Device
// @Accept json
// @Security ApiKeyAuth
// @Param position body PositionRequest true "Device position"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /device/position [put]
func (h *Handler) updatePosition(c *gin.Context) {
	var input PositionRequest
	log := h.logger.WithField("method", "updatePosition")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.trackerService.UpdatePosition(DTOToLocation(input))
	c.Status(http.StatusNoContent)
}

// @Summary Get application health status
// @Description Get health status of the application and the emergency backend
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	if err := h.trackerService.Health(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Backend: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Backend: "ok"})
}

// respondError переводит ошибки сервиса в HTTP-статусы
func (h *Handler) respondError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSession):
		log.WithError(err).Warn("Invalid session")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoSession):
		c.JSON(http.StatusConflict, gin.H{"error": "no active session"})
	case errors.Is(err, service.ErrActionNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "action not allowed for role"})
	case errors.Is(err, service.ErrNoEmergency):
		c.JSON(http.StatusNotFound, gin.H{"error": "emergency not found"})
	case errors.Is(err, service.ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": "emergency is in terminal status"})
	default:
		log.WithError(err).Error("Emergency backend request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "emergency backend error"})
	}
}
