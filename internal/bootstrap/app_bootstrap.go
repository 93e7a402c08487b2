package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/repository"
	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type BootstrapApp struct {
	config  config.Config
	context struct {
		cookieDomain       string
		sessionCookieName  string
		csrfCookieName     string
		verifierCookieName string
		passwordHash       string
		secret             string
		clientSecret       string
	}
	repository repository.LockoutRepository
	services   Services
}

func NewBootstrapApp(config config.Config) *BootstrapApp {
	return &BootstrapApp{
		config: config,
	}
}

// Setup wires the app together without starting the server.
func (app *BootstrapApp) Setup() (*gin.Engine, error) {
	appURL, err := url.Parse(app.config.AppURL)

	if err != nil || appURL.Host == "" {
		return nil, fmt.Errorf("invalid app url %q", app.config.AppURL)
	}

	// Secrets
	app.context.secret = utils.GetSecret(app.config.Auth.Secret, app.config.Auth.SecretFile)
	app.context.passwordHash = utils.GetSecret(app.config.Auth.PasswordHash, app.config.Auth.PasswordHashFile)
	app.context.clientSecret = utils.GetSecret(app.config.OAuth.ClientSecret, app.config.OAuth.ClientSecretFile)

	// Cookie domain
	cookieDomain, err := utils.GetCookieDomain(app.config.AppURL)

	if err != nil {
		return nil, err
	}

	app.context.cookieDomain = cookieDomain

	// Cookie names
	cookieID := utils.GenerateIdentifier(appURL.Hostname())
	app.context.sessionCookieName = fmt.Sprintf("%s-%s", config.SessionCookieName, cookieID)
	app.context.csrfCookieName = fmt.Sprintf("%s-%s", config.CSRFCookieName, cookieID)
	app.context.verifierCookieName = fmt.Sprintf("%s-%s", config.VerifierCookieName, cookieID)

	// Dumps
	tlog.App.Trace().Str("cookieDomain", app.context.cookieDomain).Msg("Cookie domain")
	tlog.App.Trace().Str("sessionCookieName", app.context.sessionCookieName).Msg("Session cookie name")
	tlog.App.Trace().Str("csrfCookieName", app.context.csrfCookieName).Msg("CSRF cookie name")
	tlog.App.Trace().Str("verifierCookieName", app.context.verifierCookieName).Msg("Verifier cookie name")

	// Lockout store
	repo, err := SetupLockoutRepository(app.config.Lockout)

	if err != nil {
		return nil, fmt.Errorf("failed to setup lockout store: %w", err)
	}

	app.repository = repo

	// Services
	services, err := app.initServices()

	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.services = services

	// Router
	router, err := app.setupRouter()

	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	return router, nil
}

// Run sets the app up and serves until the listener fails.
func (app *BootstrapApp) Run() error {
	router, err := app.Setup()

	if err != nil {
		return err
	}

	defer app.Close()

	// Start session cleanup routine
	tlog.App.Debug().Msg("Starting session cleanup routine")
	go app.sessionCleanup()

	// If we have an socket path, bind to it
	if app.config.Server.SocketPath != "" {
		if _, err := os.Stat(app.config.Server.SocketPath); err == nil {
			tlog.App.Info().Msgf("Removing existing socket file %s", app.config.Server.SocketPath)
			err := os.Remove(app.config.Server.SocketPath)
			if err != nil {
				return fmt.Errorf("failed to remove existing socket file: %w", err)
			}
		}

		tlog.App.Info().Msgf("Starting server on unix socket %s", app.config.Server.SocketPath)
		if err := router.RunUnix(app.config.Server.SocketPath); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		return nil
	}

	// Start server
	address := fmt.Sprintf("%s:%d", app.config.Server.Address, app.config.Server.Port)
	tlog.App.Info().Msgf("Starting server on %s", address)
	if err := router.Run(address); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (app *BootstrapApp) Close() error {
	var errs []error

	if app.services.ldapService != nil {
		errs = append(errs, app.services.ldapService.Close())
	}

	if app.repository != nil {
		errs = append(errs, app.repository.Close())
	}

	return errors.Join(errs...)
}

func (app *BootstrapApp) sessionCleanup() {
	interval := time.Duration(app.config.Auth.CleanupInterval) * time.Second

	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		removed := app.services.sessionService.CleanupExpired()
		if removed > 0 {
			tlog.App.Debug().Int("removed", removed).Msg("Cleaned up expired sessions")
		}
	}
}
