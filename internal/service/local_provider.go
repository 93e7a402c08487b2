package service

import (
	"errors"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

var ErrMissingUsername = errors.New("admin username is not configured")

type LocalProviderConfig struct {
	Username     string
	PasswordHash string
	Secret       string
	CookieName   string
}

// LocalProvider authenticates the single configured admin. The session token
// is a MAC over the credentials, so a matching cookie is proof on its own and
// the session store only tracks activity.
type LocalProvider struct {
	config   LocalProviderConfig
	sessions *SessionService
}

func NewLocalProvider(config LocalProviderConfig, sessions *SessionService) *LocalProvider {
	return &LocalProvider{
		config:   config,
		sessions: sessions,
	}
}

func (lp *LocalProvider) Name() string {
	return config.ProviderLocal
}

func (lp *LocalProvider) Username() string {
	return lp.config.Username
}

// Configured returns the first missing setting, if any.
func (lp *LocalProvider) Configured() error {
	if lp.config.Username == "" {
		return ErrMissingUsername
	}
	if lp.config.PasswordHash == "" {
		return utils.ErrMissingPasswordHash
	}
	if lp.config.Secret == "" {
		return utils.ErrMissingSecret
	}
	return nil
}

// CheckCredentials verifies a login. A configuration error is returned as
// such and never counts as a match.
func (lp *LocalProvider) CheckCredentials(username string, password string) (bool, error) {
	if err := lp.Configured(); err != nil {
		return false, err
	}

	usernameOK := utils.CompareTokens(username, lp.config.Username)
	// always hash so a wrong username costs the same as a wrong password
	passwordOK := utils.CheckPassword(lp.config.PasswordHash, password)

	return usernameOK && passwordOK, nil
}

// IssueToken derives the session token for the configured admin.
func (lp *LocalProvider) IssueToken() (string, error) {
	if err := lp.Configured(); err != nil {
		return "", err
	}
	return utils.DeriveToken(lp.config.Username, lp.config.PasswordHash, lp.config.Secret)
}

func (lp *LocalProvider) Verify(c *gin.Context) AuthResult {
	token, err := c.Cookie(lp.config.CookieName)

	if err != nil || token == "" {
		return Deny(ReasonNoToken)
	}

	expected, err := lp.IssueToken()

	if err != nil {
		tlog.App.Error().Err(err).Msg("Local provider is misconfigured, denying request")
		return Deny(ReasonMisconfigured)
	}

	if !utils.CompareTokens(token, expected) {
		return Deny(ReasonInvalidToken)
	}

	if !lp.sessions.IsValidSession(token) {
		tlog.App.Debug().Str("username", lp.config.Username).Msg("Valid token without a live session, recreating session")
		lp.sessions.CreateSession(lp.config.Username, token)
	}

	return Allow(Identity{
		Username: lp.config.Username,
		Provider: config.ProviderLocal,
	})
}
