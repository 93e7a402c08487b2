package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

// RoleResolver looks up the roles attached to an identity in an external
// directory.
type RoleResolver interface {
	GetRoles(ctx context.Context, email string) ([]string, error)
}

type FederatedProviderConfig struct {
	CookieName  string
	Whitelist   []string
	AdminRoles  []string
	RoleTimeout time.Duration
}

// FederatedProvider admits identities established by the OAuth login flow.
// The allow-list and the role lookup are both enforced when available. A
// failed role lookup falls back to the allow-list, and with neither the
// request is denied.
type FederatedProvider struct {
	config   FederatedProviderConfig
	sessions *SessionService
	roles    RoleResolver
}

func NewFederatedProvider(config FederatedProviderConfig, sessions *SessionService, roles RoleResolver) *FederatedProvider {
	if config.RoleTimeout <= 0 {
		config.RoleTimeout = 5 * time.Second
	}
	return &FederatedProvider{
		config:   config,
		sessions: sessions,
		roles:    roles,
	}
}

func (fp *FederatedProvider) Name() string {
	return config.ProviderOAuth
}

// IsAllowed reports whether email passes the allow-list. Without an
// allow-list every identity passes this step.
func (fp *FederatedProvider) IsAllowed(email string) bool {
	if len(fp.config.Whitelist) == 0 {
		return true
	}
	return utils.InAllowList(fp.config.Whitelist, email)
}

func (fp *FederatedProvider) Verify(c *gin.Context) AuthResult {
	token, err := c.Cookie(fp.config.CookieName)

	if err != nil || token == "" {
		return Deny(ReasonNoToken)
	}

	session, ok := fp.sessions.GetSession(token)

	if !ok {
		return Deny(ReasonInvalidToken)
	}

	email := strings.TrimSpace(session.Email)

	if email == "" {
		return Deny(ReasonNoIdentity)
	}

	hasWhitelist := len(fp.config.Whitelist) > 0

	if hasWhitelist && !utils.InAllowList(fp.config.Whitelist, email) {
		return Deny(ReasonNotAllowed)
	}

	identity := Identity{
		Username: session.Username,
		Email:    email,
		Provider: config.ProviderOAuth,
	}

	if fp.roles != nil && len(fp.config.AdminRoles) > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), fp.config.RoleTimeout)
		defer cancel()

		roles, err := fp.roles.GetRoles(ctx, email)

		if err == nil {
			if HasAdminRole(roles, fp.config.AdminRoles) {
				return Allow(identity)
			}
			return Deny(ReasonRoleDenied)
		}

		tlog.App.Warn().Err(err).Str("email", email).Msg("Role lookup failed, falling back to allow-list")
	}

	if !hasWhitelist {
		return Deny(ReasonRoleUnavailable)
	}

	return Allow(identity)
}

// HasAdminRole compares roles case-insensitively.
func HasAdminRole(roles []string, adminRoles []string) bool {
	return slices.ContainsFunc(roles, func(role string) bool {
		return slices.ContainsFunc(adminRoles, func(admin string) bool {
			return strings.EqualFold(strings.TrimSpace(role), strings.TrimSpace(admin))
		})
	})
}
