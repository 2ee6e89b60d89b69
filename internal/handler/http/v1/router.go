package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	protected := api.Group("", APIKeyAuthMiddleware(h.cfg, h.logger))

	// Маршруты сессии
	session := protected.Group("/session")
	{
		session.GET("", h.getSession)
		session.POST("/login", h.login)
		session.POST("/logout", h.logout)
	}

	// Маршруты отслеживаемого вызова
	emergency := protected.Group("/emergency")
	{
		emergency.GET("", h.getEmergency)
		emergency.GET("/stream", h.streamEmergency)
		emergency.POST("/track", h.trackEmergency)
		emergency.POST("/sos", h.triggerSOS)
		emergency.POST("/accept", h.acceptEmergency)
		emergency.POST("/arrive", h.arriveEmergency)
		emergency.POST("/resolve", h.resolveEmergency)
		emergency.POST("/mark-fraud", h.markFraudEmergency)
	}

	// Позиция устройства для отчетов ответчика
	protected.PUT("/device/position", h.updatePosition)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
