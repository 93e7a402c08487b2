package controller

import (
	"github.com/sitekeep/adminauth/internal/service"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	router   *gin.RouterGroup
	lockouts *service.LockoutService
}

func NewHealthController(router *gin.RouterGroup, lockouts *service.LockoutService) *HealthController {
	return &HealthController{
		router:   router,
		lockouts: lockouts,
	}
}

func (controller *HealthController) SetupRoutes() {
	controller.router.GET("/health", controller.healthHandler)
	controller.router.HEAD("/health", controller.healthHandler)
}

func (controller *HealthController) healthHandler(c *gin.Context) {
	if _, err := controller.lockouts.List(c.Request.Context()); err != nil {
		tlog.App.Error().Err(err).Msg("Health check failed, lockout store unreadable")
		c.JSON(503, gin.H{
			"status":  "error",
			"message": "Lockout store unavailable",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "ok",
		"message": "Healthy",
	})
}
