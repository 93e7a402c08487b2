package config

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Cookie name templates

var SessionCookieName = "adminauth-session"
var CSRFCookieName = "adminauth-csrf"
var VerifierCookieName = "adminauth-verifier"

// Environment variable prefix used by the env loader

var DefaultNamePrefix = "ADMINAUTH_"

// Identity providers

const (
	ProviderLocal = "local"
	ProviderOAuth = "oauth"
	ProviderDev   = "dev"
)

// Lockout backends

const (
	LockoutBackendFile   = "file"
	LockoutBackendSQLite = "sqlite"
	LockoutBackendBolt   = "bbolt"
)

// Main app config

type Config struct {
	AppURL     string        `description:"The base URL where the admin panel is hosted."`
	Production bool          `description:"Production posture, disables the dev bypass and settings writes."`
	DevBypass  bool          `description:"Skip authentication entirely (ignored in production)."`
	ConfigFile string        `description:"Path to a YAML or TOML config file."`
	Server     ServerConfig  `description:"Server configuration."`
	Auth       AuthConfig    `description:"Authentication configuration."`
	Policy     PolicyConfig  `description:"Security policy defaults."`
	Lockout    LockoutConfig `description:"Persisted lockout store configuration."`
	OAuth      OAuthConfig   `description:"Federated OAuth provider configuration."`
	Ldap       LdapConfig    `description:"LDAP role lookup configuration."`
	Log        LogConfig     `description:"Logging configuration."`
}

type ServerConfig struct {
	Port           int      `description:"The port on which the server listens."`
	Address        string   `description:"The address on which the server listens."`
	SocketPath     string   `description:"Path to the Unix socket."`
	TrustedProxies []string `description:"Comma-separated list of trusted proxy addresses."`
}

type AuthConfig struct {
	Provider         string `description:"Active identity provider (local or oauth)."`
	Username         string `description:"Admin username for the local provider."`
	PasswordHash     string `description:"Admin password hash for the local provider."`
	PasswordHashFile string `description:"Path to a file containing the admin password hash."`
	Secret           string `description:"Server-side secret used to derive session tokens."`
	SecretFile       string `description:"Path to a file containing the server-side secret."`
	SecureCookie     bool   `description:"Set the Secure flag on session cookies."`
	CleanupInterval  int    `description:"Expired session cleanup interval in seconds."`
}

type PolicyConfig struct {
	SessionTimeout   int `description:"Session inactivity timeout in minutes (5-1440)."`
	MaxLoginAttempts int `description:"Failed attempts before lockout (3-10)."`
	LockoutDuration  int `description:"Lockout duration in minutes (5-120)."`
}

type LockoutConfig struct {
	Backend string `description:"Persisted lockout backend (file, sqlite or bbolt)."`
	Path    string `description:"Path of the lockout file or database."`
	Strict  bool   `description:"Treat an unreadable lockout store as locked instead of empty."`
}

type OAuthConfig struct {
	ClientID           string   `description:"OAuth client ID."`
	ClientSecret       string   `description:"OAuth client secret."`
	ClientSecretFile   string   `description:"Path to a file containing the OAuth client secret."`
	Scopes             []string `description:"OAuth scopes."`
	RedirectURL        string   `description:"OAuth redirect URL."`
	AuthURL            string   `description:"OAuth authorization URL."`
	TokenURL           string   `description:"OAuth token URL."`
	UserinfoURL        string   `description:"OAuth userinfo URL."`
	InsecureSkipVerify bool     `description:"Skip TLS verification for the OAuth server."`
	Whitelist          []string `description:"Comma-separated list of allowed admin emails."`
	AdminRoles         []string `description:"Roles that grant admin access."`
}

type LdapConfig struct {
	Address      string `description:"LDAP server address."`
	BindDN       string `description:"Bind DN for the LDAP service account."`
	BindPassword string `description:"Bind password for the LDAP service account."`
	BaseDN       string `description:"Base DN for searches."`
	Insecure     bool   `description:"Allow insecure LDAP connections."`
	SearchFilter string `description:"LDAP filter used to find a user by email."`
	RoleAttr     string `description:"LDAP attribute holding the user's role."`
}

type LogConfig struct {
	Level   string     `description:"Log level."`
	Json    bool       `description:"Enable JSON formatted logs."`
	Streams LogStreams `description:"Configuration for specific log streams."`
}

type LogStreams struct {
	HTTP  LogStreamConfig `description:"HTTP request logging."`
	App   LogStreamConfig `description:"Application logging."`
	Audit LogStreamConfig `description:"Audit logging."`
}

type LogStreamConfig struct {
	Enabled bool   `description:"Enable this log stream."`
	Level   string `description:"Log level for this stream. Use global if empty."`
}

// OAuth claims

type Claims struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// API queries

type UnauthorizedQuery struct {
	Username string `url:"username"`
	Reason   string `url:"reason,omitempty"`
}

// Defaults

func NewDefaultConfiguration() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    3000,
			Address: "0.0.0.0",
		},
		Auth: AuthConfig{
			Provider:        ProviderLocal,
			Username:        "admin",
			SecureCookie:    false,
			CleanupInterval: 300,
		},
		Policy: PolicyConfig{
			SessionTimeout:   60,
			MaxLoginAttempts: 5,
			LockoutDuration:  15,
		},
		Lockout: LockoutConfig{
			Backend: LockoutBackendFile,
			Path:    "./data/lockouts.json",
			Strict:  false,
		},
		OAuth: OAuthConfig{
			Scopes: []string{"openid", "email", "profile"},
		},
		Ldap: LdapConfig{
			Insecure:     false,
			SearchFilter: "(&(objectClass=person)(mail=%s))",
			RoleAttr:     "role",
		},
		Log: LogConfig{
			Level: "info",
			Json:  false,
			Streams: LogStreams{
				HTTP:  LogStreamConfig{Enabled: true},
				App:   LogStreamConfig{Enabled: true},
				Audit: LogStreamConfig{Enabled: true},
			},
		},
	}
}
