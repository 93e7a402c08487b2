package middleware

import (
	"errors"
	"net/http"

	"github.com/sitekeep/adminauth/internal/service"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

type AuthMiddlewareConfig struct {
	CookieName   string
	CookieDomain string
	SecureCookie bool
}

// AuthMiddleware guards admin routes. Every denial looks the same to the
// client, the reason only reaches the audit log.
type AuthMiddleware struct {
	config AuthMiddlewareConfig
	auth   *service.AuthService
	policy *service.PolicyService
}

func NewAuthMiddleware(config AuthMiddlewareConfig, auth *service.AuthService, policy *service.PolicyService) *AuthMiddleware {
	return &AuthMiddleware{
		config: config,
		auth:   auth,
		policy: policy,
	}
}

func (m *AuthMiddleware) Init() error {
	return nil
}

func (m *AuthMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.auth.RequireAuth(c)

		if !result.Authenticated {
			c.AbortWithStatusJSON(401, gin.H{
				"status":  401,
				"message": "Unauthorized",
			})
			return
		}

		identity := result.Identity
		c.Set(identityKey, &identity)

		// slide the cookie with the session
		if token, err := c.Cookie(m.config.CookieName); err == nil && token != "" {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(m.config.CookieName, token, int(m.policy.Get().SessionTimeout().Seconds()), "/", m.config.CookieDomain, m.config.SecureCookie, true)
		}

		c.Next()
	}
}

func GetIdentity(c *gin.Context) (*service.Identity, error) {
	value, exists := c.Get(identityKey)

	if !exists {
		return nil, errors.New("no identity in request context")
	}

	identity, ok := value.(*service.Identity)

	if !ok {
		return nil, errors.New("invalid identity type in request context")
	}

	return identity, nil
}
