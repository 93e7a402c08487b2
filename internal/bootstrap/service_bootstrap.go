package bootstrap

import (
	"fmt"
	"strings"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/service"
	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"
)

type Services struct {
	authService       *service.AuthService
	federatedProvider *service.FederatedProvider
	ldapService       *service.LdapService
	localProvider     *service.LocalProvider
	lockoutService    *service.LockoutService
	oauthService      *service.OAuthService
	policyService     *service.PolicyService
	sessionService    *service.SessionService
}

func (app *BootstrapApp) initServices() (Services, error) {
	services := Services{}

	policyService := service.NewPolicyService()

	policy := policyService.Update(service.SettingsUpdate{
		SessionTimeout:   optional(app.config.Policy.SessionTimeout),
		MaxLoginAttempts: optional(app.config.Policy.MaxLoginAttempts),
		LockoutDuration:  optional(app.config.Policy.LockoutDuration),
	})

	tlog.App.Debug().Interface("policy", policy).Msg("Security policy")

	services.policyService = policyService

	sessionService := service.NewSessionService(service.SessionServiceConfig{}, policyService)

	services.sessionService = sessionService

	lockoutService := service.NewLockoutService(service.LockoutServiceConfig{
		Strict: app.config.Lockout.Strict,
	}, app.repository, policyService)

	services.lockoutService = lockoutService

	var provider service.IdentityProvider

	switch strings.ToLower(app.config.Auth.Provider) {
	case "", config.ProviderLocal:
		localProvider := service.NewLocalProvider(service.LocalProviderConfig{
			Username:     app.config.Auth.Username,
			PasswordHash: app.context.passwordHash,
			Secret:       app.context.secret,
			CookieName:   app.context.sessionCookieName,
		}, sessionService)

		if err := localProvider.Configured(); err != nil {
			// The gate will deny every request until this is fixed
			tlog.App.Error().Err(err).Msg("Local provider is not fully configured")
		}

		services.localProvider = localProvider
		provider = localProvider
	case config.ProviderOAuth:
		oauthService := service.NewOAuthService(service.OAuthServiceConfig{
			ClientID:           app.config.OAuth.ClientID,
			ClientSecret:       app.context.clientSecret,
			Scopes:             app.config.OAuth.Scopes,
			RedirectURL:        app.redirectURL(),
			AuthURL:            app.config.OAuth.AuthURL,
			TokenURL:           app.config.OAuth.TokenURL,
			UserinfoURL:        app.config.OAuth.UserinfoURL,
			InsecureSkipVerify: app.config.OAuth.InsecureSkipVerify,
		})

		if err := oauthService.Init(); err != nil {
			return Services{}, err
		}

		services.oauthService = oauthService

		var roles service.RoleResolver

		if app.config.Ldap.Address != "" {
			ldapService := service.NewLdapService(service.LdapServiceConfig{
				Address:      app.config.Ldap.Address,
				BindDN:       app.config.Ldap.BindDN,
				BindPassword: app.config.Ldap.BindPassword,
				BaseDN:       app.config.Ldap.BaseDN,
				Insecure:     app.config.Ldap.Insecure,
				SearchFilter: app.config.Ldap.SearchFilter,
				RoleAttr:     app.config.Ldap.RoleAttr,
			})

			err := ldapService.Init()

			if err == nil {
				services.ldapService = ldapService
				roles = ldapService
			} else {
				tlog.App.Warn().Err(err).Msg("Failed to initialize LDAP service, continuing without role lookup")
			}
		}

		federatedProvider := service.NewFederatedProvider(service.FederatedProviderConfig{
			CookieName: app.context.sessionCookieName,
			Whitelist:  utils.CleanList(app.config.OAuth.Whitelist),
			AdminRoles: utils.CleanList(app.config.OAuth.AdminRoles),
		}, sessionService, roles)

		services.federatedProvider = federatedProvider
		provider = federatedProvider
	default:
		return Services{}, fmt.Errorf("unknown identity provider %q", app.config.Auth.Provider)
	}

	authService := service.NewAuthService(service.AuthServiceConfig{
		Production: app.config.Production,
		DevBypass:  app.config.DevBypass,
	}, provider)

	err := authService.Init()

	if err != nil {
		return Services{}, err
	}

	services.authService = authService

	return services, nil
}

func (app *BootstrapApp) redirectURL() string {
	if app.config.OAuth.RedirectURL != "" {
		return app.config.OAuth.RedirectURL
	}
	return strings.TrimSuffix(app.config.AppURL, "/") + "/api/oauth/callback"
}

// optional turns an unset (zero) config value into a nil update.
func optional(value int) *float64 {
	if value == 0 {
		return nil
	}
	return service.Float(value)
}
