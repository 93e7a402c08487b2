package tlog

import "github.com/gin-gonic/gin"

func AuditLoginSuccess(c *gin.Context, username, provider string) {
	Audit.Info().
		Str("event", "login").
		Str("result", "success").
		Str("username", username).
		Str("provider", provider).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditLoginFailure(c *gin.Context, username, provider string, remaining int) {
	Audit.Warn().
		Str("event", "login").
		Str("result", "failure").
		Str("username", username).
		Str("provider", provider).
		Int("remaining_attempts", remaining).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditLockout(c *gin.Context, username string, seconds int) {
	Audit.Warn().
		Str("event", "lockout").
		Str("result", "locked").
		Str("username", username).
		Int("seconds", seconds).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditLogout(c *gin.Context, username, provider string) {
	Audit.Info().
		Str("event", "logout").
		Str("result", "success").
		Str("username", username).
		Str("provider", provider).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditDenied(c *gin.Context, provider, reason string) {
	Audit.Warn().
		Str("event", "gate").
		Str("result", "denied").
		Str("provider", provider).
		Str("reason", reason).
		Str("path", c.Request.URL.Path).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditSettingsChange(c *gin.Context, username string, settings any) {
	Audit.Info().
		Str("event", "settings").
		Str("result", "updated").
		Str("username", username).
		Interface("settings", settings).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditUnlock(c *gin.Context, username, key string) {
	Audit.Info().
		Str("event", "unlock").
		Str("result", "success").
		Str("username", username).
		Str("key", key).
		Str("ip", c.ClientIP()).
		Send()
}
