package controller

import (
	"encoding/json"

	"github.com/sitekeep/adminauth/internal/middleware"
	"github.com/sitekeep/adminauth/internal/service"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type SettingsControllerConfig struct {
	Production bool
}

// SettingsController exposes the security policy. Writes are refused in
// production, where the policy comes from configuration only.
type SettingsController struct {
	config   SettingsControllerConfig
	router   *gin.RouterGroup
	sessions *service.SessionService
}

func NewSettingsController(config SettingsControllerConfig, router *gin.RouterGroup, sessions *service.SessionService) *SettingsController {
	return &SettingsController{
		config:   config,
		router:   router,
		sessions: sessions,
	}
}

func (controller *SettingsController) SetupRoutes() {
	controller.router.GET("/settings", controller.getSettingsHandler)
	controller.router.PUT("/settings", controller.updateSettingsHandler)
}

func (controller *SettingsController) getSettingsHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":   200,
		"message":  "OK",
		"settings": controller.sessions.Policy(),
		"readOnly": controller.config.Production,
	})
}

func (controller *SettingsController) updateSettingsHandler(c *gin.Context) {
	if controller.config.Production {
		c.JSON(403, gin.H{
			"status":  403,
			"message": "Settings are read-only in production",
		})
		return
	}

	// Fields are decoded one by one so a bad value only loses that field
	var fields map[string]any

	body, err := c.GetRawData()
	if err == nil {
		err = json.Unmarshal(body, &fields)
	}
	if err != nil || fields == nil {
		tlog.App.Error().Err(err).Msg("Failed to parse settings body")
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	policy := controller.sessions.UpdateSettings(service.SettingsUpdate{
		SessionTimeout:   numberField(fields, "sessionTimeout"),
		MaxLoginAttempts: numberField(fields, "maxLoginAttempts"),
		LockoutDuration:  numberField(fields, "lockoutDuration"),
	})

	username := ""
	if identity, err := middleware.GetIdentity(c); err == nil {
		username = identity.Username
	}

	tlog.App.Info().Interface("settings", policy).Msg("Security settings updated")
	tlog.AuditSettingsChange(c, username, policy)

	c.JSON(200, gin.H{
		"status":   200,
		"message":  "Settings updated",
		"settings": policy,
	})
}

// numberField returns the field only when it is a JSON number.
func numberField(fields map[string]any, key string) *float64 {
	value, ok := fields[key].(float64)
	if !ok {
		return nil
	}
	return &value
}
