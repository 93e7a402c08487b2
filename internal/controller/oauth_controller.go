package controller

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/service"
	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
)

type OAuthControllerConfig struct {
	CookieName         string
	CSRFCookieName     string
	VerifierCookieName string
	SecureCookie       bool
	CookieDomain       string
	AppURL             string
}

type OAuthController struct {
	config    OAuthControllerConfig
	router    *gin.RouterGroup
	oauth     *service.OAuthService
	federated *service.FederatedProvider
	sessions  *service.SessionService
}

func NewOAuthController(config OAuthControllerConfig, router *gin.RouterGroup, oauth *service.OAuthService, federated *service.FederatedProvider, sessions *service.SessionService) *OAuthController {
	return &OAuthController{
		config:    config,
		router:    router,
		oauth:     oauth,
		federated: federated,
		sessions:  sessions,
	}
}

func (controller *OAuthController) SetupRoutes() {
	oauthGroup := controller.router.Group("/oauth")
	oauthGroup.GET("/url", controller.oauthURLHandler)
	oauthGroup.GET("/callback", controller.oauthCallbackHandler)
}

func (controller *OAuthController) oauthURLHandler(c *gin.Context) {
	state, err := controller.oauth.GenerateState()

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to generate OAuth state")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	verifier := controller.oauth.GenerateVerifier()
	authURL := controller.oauth.GetAuthURL(state, verifier)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(controller.config.CSRFCookieName, state, int(time.Hour.Seconds()), "/", controller.config.CookieDomain, controller.config.SecureCookie, true)
	c.SetCookie(controller.config.VerifierCookieName, verifier, int(time.Hour.Seconds()), "/", controller.config.CookieDomain, controller.config.SecureCookie, true)

	c.JSON(200, gin.H{
		"status":  200,
		"message": "OK",
		"url":     authURL,
	})
}

func (controller *OAuthController) oauthCallbackHandler(c *gin.Context) {
	state := c.Query("state")
	csrfCookie, err := c.Cookie(controller.config.CSRFCookieName)

	if err != nil || state == "" || !utils.CompareTokens(state, csrfCookie) {
		tlog.App.Warn().Err(err).Msg("CSRF token mismatch or cookie missing")
		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/error", controller.config.AppURL))
		return
	}

	verifier, err := c.Cookie(controller.config.VerifierCookieName)

	if err != nil || verifier == "" {
		tlog.App.Warn().Err(err).Msg("OAuth verifier cookie missing")
		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/error", controller.config.AppURL))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(controller.config.CSRFCookieName, "", -1, "/", controller.config.CookieDomain, controller.config.SecureCookie, true)
	c.SetCookie(controller.config.VerifierCookieName, "", -1, "/", controller.config.CookieDomain, controller.config.SecureCookie, true)

	ctx := c.Request.Context()

	token, err := controller.oauth.VerifyCode(ctx, c.Query("code"), verifier)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to verify OAuth code")
		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/error", controller.config.AppURL))
		return
	}

	user, err := controller.oauth.Userinfo(ctx, token)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to get user from OAuth provider")
		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/error", controller.config.AppURL))
		return
	}

	email := strings.TrimSpace(user.Email)

	if email == "" {
		tlog.App.Error().Msg("OAuth provider did not return an email")
		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/error", controller.config.AppURL))
		return
	}

	if !controller.federated.IsAllowed(email) {
		tlog.App.Warn().Str("email", email).Msg("Email not in allow-list")
		tlog.AuditLoginFailure(c, email, config.ProviderOAuth, 0)

		queries, err := query.Values(config.UnauthorizedQuery{
			Username: email,
			Reason:   string(service.ReasonNotAllowed),
		})

		if err != nil {
			tlog.App.Error().Err(err).Msg("Failed to encode unauthorized query")
			c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/error", controller.config.AppURL))
			return
		}

		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/unauthorized?%s", controller.config.AppURL, queries.Encode()))
		return
	}

	sessionToken, err := utils.GenerateToken()

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to generate session token")
		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/error", controller.config.AppURL))
		return
	}

	username := user.PreferredUsername
	if username == "" {
		username = email
	}

	controller.sessions.CreateSessionFor(service.Identity{
		Username: username,
		Email:    email,
		Provider: config.ProviderOAuth,
	}, sessionToken)

	maxAge := int(controller.sessions.Policy().SessionTimeout().Seconds())
	c.SetCookie(controller.config.CookieName, sessionToken, maxAge, "/", controller.config.CookieDomain, controller.config.SecureCookie, true)

	tlog.App.Info().Str("email", email).Msg("OAuth login successful")
	tlog.AuditLoginSuccess(c, username, config.ProviderOAuth)

	c.Redirect(http.StatusTemporaryRedirect, controller.config.AppURL)
}
