package service

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/utils"

	"golang.org/x/oauth2"
)

type OAuthServiceConfig struct {
	ClientID           string
	ClientSecret       string
	Scopes             []string
	RedirectURL        string
	AuthURL            string
	TokenURL           string
	UserinfoURL        string
	InsecureSkipVerify bool
}

// OAuthService runs the authorization code flow with PKCE against a generic
// OAuth2 provider. State and verifier belong to the caller, so one service
// can serve concurrent logins.
type OAuthService struct {
	config     OAuthServiceConfig
	oauth      oauth2.Config
	httpClient *http.Client
}

func NewOAuthService(config OAuthServiceConfig) *OAuthService {
	return &OAuthService{
		config: config,
		oauth: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
		},
	}
}

func (oauth *OAuthService) Init() error {
	if oauth.config.ClientID == "" || oauth.config.AuthURL == "" || oauth.config.TokenURL == "" || oauth.config.UserinfoURL == "" {
		return fmt.Errorf("oauth client id, auth url, token url and userinfo url are required")
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: oauth.config.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}

	oauth.httpClient = &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}

	return nil
}

func (oauth *OAuthService) context(ctx context.Context) context.Context {
	if oauth.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, oauth.httpClient)
}

func (oauth *OAuthService) GenerateState() (string, error) {
	return utils.GenerateToken()
}

func (oauth *OAuthService) GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

func (oauth *OAuthService) GetAuthURL(state string, verifier string) string {
	return oauth.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (oauth *OAuthService) VerifyCode(ctx context.Context, code string, verifier string) (*oauth2.Token, error) {
	return oauth.oauth.Exchange(oauth.context(ctx), code, oauth2.VerifierOption(verifier))
}

func (oauth *OAuthService) Userinfo(ctx context.Context, token *oauth2.Token) (config.Claims, error) {
	var user config.Claims

	ctx = oauth.context(ctx)
	client := oauth.oauth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oauth.config.UserinfoURL, nil)
	if err != nil {
		return user, err
	}

	res, err := client.Do(req)
	if err != nil {
		return user, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return user, fmt.Errorf("request failed with status: %s", res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return user, err
	}

	err = json.Unmarshal(body, &user)
	if err != nil {
		return user, err
	}

	return user, nil
}
