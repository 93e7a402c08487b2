package bootstrap

import (
	"fmt"

	"github.com/sitekeep/adminauth/internal/controller"
	"github.com/sitekeep/adminauth/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Without trusted proxies the client address is the peer address
	proxies := app.config.Server.TrustedProxies
	if len(proxies) == 0 {
		proxies = nil
	}

	err := engine.SetTrustedProxies(proxies)

	if err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	zerologMiddleware := middleware.NewZerologMiddleware()

	err = zerologMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthMiddlewareConfig{
		CookieName:   app.context.sessionCookieName,
		CookieDomain: app.context.cookieDomain,
		SecureCookie: app.config.Auth.SecureCookie,
	}, app.services.authService, app.services.policyService)

	err = authMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth middleware: %w", err)
	}

	gate := authMiddleware.Middleware()

	apiRouter := engine.Group("/api")
	protectedRouter := apiRouter.Group("", gate)

	authController := controller.NewAuthController(controller.AuthControllerConfig{
		CookieName:   app.context.sessionCookieName,
		CookieDomain: app.context.cookieDomain,
		SecureCookie: app.config.Auth.SecureCookie,
	}, apiRouter, gate, app.services.localProvider, app.services.sessionService, app.services.lockoutService)

	authController.SetupRoutes()

	if app.services.oauthService != nil {
		oauthController := controller.NewOAuthController(controller.OAuthControllerConfig{
			CookieName:         app.context.sessionCookieName,
			CSRFCookieName:     app.context.csrfCookieName,
			VerifierCookieName: app.context.verifierCookieName,
			SecureCookie:       app.config.Auth.SecureCookie,
			CookieDomain:       app.context.cookieDomain,
			AppURL:             app.config.AppURL,
		}, apiRouter, app.services.oauthService, app.services.federatedProvider, app.services.sessionService)

		oauthController.SetupRoutes()
	}

	settingsController := controller.NewSettingsController(controller.SettingsControllerConfig{
		Production: app.config.Production,
	}, protectedRouter, app.services.sessionService)

	settingsController.SetupRoutes()

	lockoutController := controller.NewLockoutController(protectedRouter, app.services.lockoutService)

	lockoutController.SetupRoutes()

	healthController := controller.NewHealthController(apiRouter, app.services.lockoutService)

	healthController.SetupRoutes()

	return engine, nil
}
