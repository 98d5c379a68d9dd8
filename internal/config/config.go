package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ErrMissingConfig is returned when a required setting is absent.
var ErrMissingConfig = errors.New("missing required configuration")

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("insta-auth version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	OAuth   OAuthConfig   `mapstructure:"oauth" yaml:"oauth"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Flow selects which Instagram authentication generation is used.
type Flow string

const (
	FlowBasicDisplay  Flow = "basic_display"
	FlowBusinessLogin Flow = "business_login"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port" yaml:"port"`
	Host         string        `mapstructure:"host" yaml:"host"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level" yaml:"level"`
	Format            string `mapstructure:"format" yaml:"format"`
	Color             bool   `mapstructure:"color" yaml:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace" yaml:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path" yaml:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file" yaml:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console" yaml:"disable_console"`
}

type OAuthConfig struct {
	Flow          Flow     `mapstructure:"flow" yaml:"flow"`
	ClientID      string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret  string   `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectPath  string   `mapstructure:"redirect_path" yaml:"redirect_path"`
	Scopes        []string `mapstructure:"scopes" yaml:"scopes"`
	GraphVersion  string   `mapstructure:"graph_version" yaml:"graph_version"`
	SignInPath    string   `mapstructure:"sign_in_path" yaml:"sign_in_path"`
	DashboardPath string   `mapstructure:"dashboard_path" yaml:"dashboard_path"`
	AllowOrigins  []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

type SessionConfig struct {
	Secret       string        `mapstructure:"secret" yaml:"secret"`
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CookieName   string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie" yaml:"secure_cookie"`
}

type WebhookConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	AppID       string `mapstructure:"app_id" yaml:"app_id"`
	VerifyToken string `mapstructure:"verify_token" yaml:"verify_token"`
	AppSecret   string `mapstructure:"app_secret" yaml:"app_secret"`
	CallbackURL string `mapstructure:"callback_url" yaml:"callback_url"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// RedirectURL is the exact callback URL sent in both the authorization
// request and the token exchange. The provider compares them byte for byte.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + c.OAuth.RedirectPath
}

// InitFlags initializes command line flags (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config file")
	fs.String("flow", string(FlowBasicDisplay), "Authentication flow (basic_display|business_login)")
	fs.Int("port", 3000, "HTTP listen port")
	fs.String("env-file", ".env", "Path to an optional dotenv file")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("oauth.flow", string(FlowBasicDisplay))
	v.SetDefault("oauth.redirect_path", "/api/auth/callback/instagram")
	v.SetDefault("oauth.graph_version", "v18.0")
	v.SetDefault("oauth.sign_in_path", "/")
	v.SetDefault("oauth.dashboard_path", "/dashboard")

	v.SetDefault("session.ttl", 30*24*time.Hour)
	v.SetDefault("session.cookie_name", "insta_auth.session")
	v.SetDefault("session.secure_cookie", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration from an optional dotenv file, an optional YAML
// file, environment variables prefixed with INSTA_AUTH and the given flags,
// and validates it. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	envFile := ".env"
	if fs != nil {
		if f := fs.Lookup("env-file"); f != nil && f.Value.String() != "" {
			envFile = f.Value.String()
		}
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	v.SetEnvPrefix("INSTA_AUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlag("oauth.flow", fs.Lookup("flow")); err != nil {
			return nil, err
		}
		if err := v.BindPFlag("server.port", fs.Lookup("port")); err != nil {
			return nil, err
		}
	}

	configFile := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/insta-auth")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// AutomaticEnv only resolves keys viper already knows about, so the
	// secrets without defaults are bound explicitly.
	for _, key := range []string{
		"server.base_url",
		"oauth.client_id",
		"oauth.client_secret",
		"oauth.scopes",
		"oauth.allow_origins",
		"session.secret",
		"webhook.enabled",
		"webhook.app_id",
		"webhook.verify_token",
		"webhook.app_secret",
		"webhook.callback_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every setting the sign-in flow depends on is present.
func (c *Config) Validate() error {
	switch c.OAuth.Flow {
	case FlowBasicDisplay, FlowBusinessLogin:
	default:
		return fmt.Errorf("unsupported oauth.flow %q, expected %s or %s", c.OAuth.Flow, FlowBasicDisplay, FlowBusinessLogin)
	}
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("%w: oauth.client_id is required, pass INSTA_AUTH_OAUTH_CLIENT_ID", ErrMissingConfig)
	}
	if c.OAuth.ClientSecret == "" {
		return fmt.Errorf("%w: oauth.client_secret is required, pass INSTA_AUTH_OAUTH_CLIENT_SECRET", ErrMissingConfig)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("%w: session.secret is required, pass INSTA_AUTH_SESSION_SECRET", ErrMissingConfig)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("%w: server.base_url is required, pass INSTA_AUTH_SERVER_BASE_URL", ErrMissingConfig)
	}
	if !strings.HasPrefix(c.OAuth.RedirectPath, "/") {
		return fmt.Errorf("oauth.redirect_path must start with '/', got %q", c.OAuth.RedirectPath)
	}
	if c.Webhook.Enabled {
		if c.Webhook.VerifyToken == "" {
			return fmt.Errorf("%w: webhook.verify_token is required when webhooks are enabled", ErrMissingConfig)
		}
		if c.Webhook.AppSecret == "" {
			return fmt.Errorf("%w: webhook.app_secret is required when webhooks are enabled", ErrMissingConfig)
		}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.OAuth.ClientSecret = mask(c.OAuth.ClientSecret)
	c.Session.Secret = mask(c.Session.Secret)
	c.Webhook.AppSecret = mask(c.Webhook.AppSecret)
	c.Webhook.VerifyToken = mask(c.Webhook.VerifyToken)
	return c
}
