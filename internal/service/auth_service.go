package service

import (
	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

// DenyReason says why the gate refused a request. It is logged, never sent
// to the client.
type DenyReason string

const (
	ReasonNoToken         DenyReason = "no_token"
	ReasonInvalidToken    DenyReason = "invalid_token"
	ReasonMisconfigured   DenyReason = "misconfigured"
	ReasonNoIdentity      DenyReason = "no_identity"
	ReasonNotAllowed      DenyReason = "not_allowed"
	ReasonRoleDenied      DenyReason = "role_denied"
	ReasonRoleUnavailable DenyReason = "role_unavailable"
)

type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}

type AuthResult struct {
	Authenticated bool
	Identity      Identity
	Reason        DenyReason
}

func Allow(identity Identity) AuthResult {
	return AuthResult{
		Authenticated: true,
		Identity:      identity,
	}
}

func Deny(reason DenyReason) AuthResult {
	return AuthResult{
		Reason: reason,
	}
}

// IdentityProvider decides whether a request carries a valid admin identity.
// Implementations resolve every error into the returned result.
type IdentityProvider interface {
	Name() string
	Verify(c *gin.Context) AuthResult
}

type AuthServiceConfig struct {
	Production bool
	DevBypass  bool
}

var devIdentity = Identity{
	Username: "dev",
	Email:    "dev@localhost",
	Provider: config.ProviderDev,
}

type AuthService struct {
	config   AuthServiceConfig
	provider IdentityProvider
}

func NewAuthService(config AuthServiceConfig, provider IdentityProvider) *AuthService {
	return &AuthService{
		config:   config,
		provider: provider,
	}
}

func (auth *AuthService) Init() error {
	if auth.config.DevBypass {
		if auth.config.Production {
			tlog.App.Warn().Msg("Dev bypass requested in production, ignoring it")
		} else {
			tlog.App.Warn().Msg("Dev bypass is enabled, every request is treated as authenticated")
		}
	}

	if auth.provider == nil {
		tlog.App.Error().Msg("No identity provider configured, all requests will be denied")
		return nil
	}

	tlog.App.Info().Str("provider", auth.provider.Name()).Msg("Identity provider ready")
	return nil
}

func (auth *AuthService) Provider() IdentityProvider {
	return auth.provider
}

func (auth *AuthService) BypassActive() bool {
	return auth.config.DevBypass && !auth.config.Production
}

// RequireAuth is the gate every protected request passes through.
func (auth *AuthService) RequireAuth(c *gin.Context) AuthResult {
	if auth.BypassActive() {
		return Allow(devIdentity)
	}

	if auth.provider == nil {
		tlog.AuditDenied(c, "none", string(ReasonMisconfigured))
		return Deny(ReasonMisconfigured)
	}

	result := auth.provider.Verify(c)

	if !result.Authenticated {
		tlog.AuditDenied(c, auth.provider.Name(), string(result.Reason))
	}

	return result
}
