package controller

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/middleware"
	"github.com/sitekeep/adminauth/internal/service"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthControllerConfig struct {
	CookieName   string
	CookieDomain string
	SecureCookie bool
}

type AuthController struct {
	config   AuthControllerConfig
	router   *gin.RouterGroup
	gate     gin.HandlerFunc
	local    *service.LocalProvider
	sessions *service.SessionService
	lockouts *service.LockoutService
}

// NewAuthController wires the login surface. local is nil when password
// logins are disabled.
func NewAuthController(config AuthControllerConfig, router *gin.RouterGroup, gate gin.HandlerFunc, local *service.LocalProvider, sessions *service.SessionService, lockouts *service.LockoutService) *AuthController {
	return &AuthController{
		config:   config,
		router:   router,
		gate:     gate,
		local:    local,
		sessions: sessions,
		lockouts: lockouts,
	}
}

func (controller *AuthController) SetupRoutes() {
	authGroup := controller.router.Group("/auth")
	authGroup.POST("/login", controller.loginHandler)
	authGroup.POST("/logout", controller.logoutHandler)
	authGroup.GET("/attempts", controller.attemptsHandler)
	authGroup.GET("/me", controller.gate, controller.meHandler)
}

func (controller *AuthController) loginHandler(c *gin.Context) {
	var req LoginRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to bind JSON")
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	if controller.local == nil {
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Password login is disabled",
		})
		return
	}

	ctx := c.Request.Context()
	clientIP := c.ClientIP()

	tlog.App.Debug().Str("username", req.Username).Str("ip", clientIP).Msg("Login attempt")

	// Refuse locked keys before any hashing so the lock is not extended
	ipStatus, err := controller.lockouts.Status(ctx, clientIP)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to check IP lockout")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	userStatus := controller.sessions.AttemptStatus(req.Username)

	if ipStatus.Locked || userStatus.Locked {
		remaining := max(ipStatus.RemainingLockTime, userStatus.RemainingLockTime)
		tlog.App.Warn().Str("username", req.Username).Str("ip", clientIP).Msg("Login refused, too many failed attempts")
		c.Writer.Header().Add("x-adminauth-lock-locked", "true")
		c.Writer.Header().Add("x-adminauth-lock-reset", lockReset(ipStatus, userStatus).Format(time.RFC3339))
		c.JSON(429, gin.H{
			"status":            429,
			"message":           fmt.Sprintf("Too many failed login attempts. Try again in %d seconds", remaining),
			"locked":            true,
			"remainingLockTime": remaining,
		})
		return
	}

	ok, err := controller.local.CheckCredentials(req.Username, req.Password)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Local provider is misconfigured, refusing login")
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	if !ok {
		controller.failedLogin(c, req.Username, clientIP)
		return
	}

	controller.sessions.ClearLoginAttempts(req.Username)

	if err := controller.lockouts.ClearLockout(ctx, clientIP); err != nil {
		tlog.App.Error().Err(err).Str("ip", clientIP).Msg("Failed to clear IP lockout")
	}

	token, err := controller.local.IssueToken()

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to issue session token")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	username := controller.local.Username()
	controller.sessions.CreateSession(username, token)
	controller.setSessionCookie(c, token)

	tlog.App.Info().Str("username", username).Msg("Login successful")
	tlog.AuditLoginSuccess(c, username, config.ProviderLocal)

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Login successful",
	})
}

func (controller *AuthController) failedLogin(c *gin.Context, username string, clientIP string) {
	userResult := controller.sessions.RecordFailedLogin(username)
	ipResult, err := controller.lockouts.RecordFailedAttempt(c.Request.Context(), clientIP, username)

	if err != nil {
		tlog.App.Error().Err(err).Str("ip", clientIP).Msg("Failed to record failed attempt")
		ipResult = userResult
	}

	locked := userResult.Locked || ipResult.Locked
	remaining := min(userResult.RemainingAttempts, ipResult.RemainingAttempts)

	tlog.App.Warn().Str("username", username).Str("ip", clientIP).Int("remaining", remaining).Msg("Invalid credentials")
	tlog.AuditLoginFailure(c, username, config.ProviderLocal, remaining)

	if locked {
		tlog.AuditLockout(c, username, int(controller.sessions.Policy().LockoutDuration().Seconds()))
	}

	c.JSON(401, gin.H{
		"status":            401,
		"message":           "Unauthorized",
		"locked":            locked,
		"remainingAttempts": remaining,
	})
}

func (controller *AuthController) logoutHandler(c *gin.Context) {
	tlog.App.Debug().Msg("Logout request received")

	token, err := c.Cookie(controller.config.CookieName)

	if err == nil && token != "" {
		if session, ok := controller.sessions.GetSession(token); ok {
			tlog.AuditLogout(c, session.Username, session.Provider)
		}
		controller.sessions.DeleteSession(token)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(controller.config.CookieName, "", -1, "/", controller.config.CookieDomain, controller.config.SecureCookie, true)

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Logout successful",
	})
}

func (controller *AuthController) attemptsHandler(c *gin.Context) {
	clientIP := c.ClientIP()

	status, err := controller.lockouts.Status(c.Request.Context(), clientIP)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to check IP lockout")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if username := strings.TrimSpace(c.Query("username")); username != "" {
		userStatus := controller.sessions.AttemptStatus(username)
		status.Locked = status.Locked || userStatus.Locked
		status.RemainingAttempts = min(status.RemainingAttempts, userStatus.RemainingAttempts)
		status.RemainingLockTime = max(status.RemainingLockTime, userStatus.RemainingLockTime)
	}

	if status.Locked {
		status.RemainingAttempts = 0
	}

	c.JSON(200, gin.H{
		"status":            200,
		"message":           "OK",
		"locked":            status.Locked,
		"remainingAttempts": status.RemainingAttempts,
		"remainingLockTime": status.RemainingLockTime,
	})
}

func (controller *AuthController) meHandler(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to get identity")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":   200,
		"message":  "OK",
		"username": identity.Username,
		"email":    identity.Email,
		"provider": identity.Provider,
	})
}

func (controller *AuthController) setSessionCookie(c *gin.Context, token string) {
	maxAge := int(controller.sessions.Policy().SessionTimeout().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(controller.config.CookieName, token, maxAge, "/", controller.config.CookieDomain, controller.config.SecureCookie, true)
}

// lockReset returns the later of the two lock deadlines.
func lockReset(statuses ...service.AttemptStatus) time.Time {
	var reset time.Time
	for _, status := range statuses {
		if status.LockedUntil != nil && status.LockedUntil.After(reset) {
			reset = *status.LockedUntil
		}
	}
	return reset.UTC()
}
