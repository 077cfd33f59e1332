// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every setting name when read from the environment
const EnvPrefix = "SESSIONGATE"

// MinTokenSecretLength is the minimum HMAC secret size in bytes
const MinTokenSecretLength = 32

// Load loads the configuration from all sources and returns the merged result
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	Settings.PopulateViperDefaults(v)

	// Set up environment variable handling
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Load from config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// It's okay if the config file doesn't exist, but other errors should be reported
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for _, s := range Settings {
		if s.Required && strings.TrimSpace(v.GetString(s.Name)) == "" {
			return nil, fmt.Errorf("%s is required", s.Name)
		}
	}

	config := &Config{}
	var err error

	// Populate server configuration
	config.Server.Address = v.GetString("SERVER_ADDR")
	if config.Server.ShutdownTimeout, err = duration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}

	// Populate metrics configuration
	config.Metrics.Address = v.GetString("METRICS_ADDR")

	// Populate TLS configuration
	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")
	config.TLS.CAPath = v.GetString("TLS_CA_PATH")

	// Populate upstream configuration
	upstreamURL, err := url.Parse(v.GetString("UPSTREAM_URL"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	config.Upstream.URL = upstreamURL
	if config.Upstream.Timeout, err = duration(v, "UPSTREAM_TIMEOUT"); err != nil {
		return nil, err
	}

	// Populate gate configuration
	config.Auth.CookieName = v.GetString("AUTH_COOKIE_NAME")
	config.Auth.CookieSecure = v.GetBool("AUTH_COOKIE_SECURE")
	config.Auth.HeaderName = v.GetString("AUTH_HEADER_NAME")
	config.Auth.LoginPath = v.GetString("AUTH_LOGIN_PATH")
	config.Auth.LogoutPath = v.GetString("AUTH_LOGOUT_PATH")
	config.Auth.ExemptPaths = stringList(v, "AUTH_EXEMPT_PATHS")
	config.Auth.Verifier = strings.ToLower(v.GetString("AUTH_VERIFIER"))
	if config.Auth.VerifyTimeout, err = duration(v, "AUTH_VERIFY_TIMEOUT"); err != nil {
		return nil, err
	}

	// Signed token
	config.Auth.Token.Secret = v.GetString("AUTH_TOKEN_SECRET")
	config.Auth.Token.Issuer = v.GetString("AUTH_TOKEN_ISSUER")
	if config.Auth.Token.TTL, err = duration(v, "AUTH_TOKEN_TTL"); err != nil {
		return nil, err
	}

	// OIDC
	config.Auth.OIDC.Issuer = v.GetString("AUTH_OIDC_ISSUER")
	config.Auth.OIDC.ClientID = v.GetString("AUTH_OIDC_CLIENT_ID")
	config.Auth.OIDC.ClientSecret = v.GetString("AUTH_OIDC_CLIENT_SECRET")
	config.Auth.OIDC.RedirectURL = v.GetString("AUTH_OIDC_REDIRECT_URL")
	config.Auth.OIDC.Scopes = stringList(v, "AUTH_OIDC_SCOPES")
	config.Auth.OIDC.LoginEnabled = v.GetBool("AUTH_OIDC_LOGIN_ENABLED")

	// Populate observability configuration
	config.Observability.LogLevel = v.GetString("LOG_LEVEL")
	config.Observability.LogFormat = strings.ToLower(v.GetString("LOG_FORMAT"))

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// duration parses a duration setting
func duration(v *viper.Viper, name string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(name))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToLower(strings.ReplaceAll(name, "_", " ")), err)
	}
	return d, nil
}

// stringList reads a list setting. Environment values arrive as a single
// comma-separated string.
func stringList(v *viper.Viper, name string) []string {
	var out []string
	for _, item := range v.GetStringSlice(name) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Upstream.URL == nil || cfg.Upstream.URL.Scheme == "" || cfg.Upstream.URL.Host == "" {
		return fmt.Errorf("upstream URL must be absolute")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}

		// Check if certificate and key files exist
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	if err := validateAuthConfig(cfg); err != nil {
		return err
	}

	switch cfg.Observability.LogFormat {
	case "console", "json", "text":
	default:
		return fmt.Errorf("invalid log format: '%s'", cfg.Observability.LogFormat)
	}

	return nil
}

// validateAuthConfig validates the gate configuration
func validateAuthConfig(cfg *Config) error {
	if cfg.Auth.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}
	if !strings.HasPrefix(cfg.Auth.LoginPath, "/") {
		return fmt.Errorf("login path must start with '/': %q", cfg.Auth.LoginPath)
	}
	if !strings.HasPrefix(cfg.Auth.LogoutPath, "/") {
		return fmt.Errorf("logout path must start with '/': %q", cfg.Auth.LogoutPath)
	}
	for _, p := range cfg.Auth.ExemptPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("exempt path must start with '/': %q", p)
		}
	}
	if cfg.Auth.VerifyTimeout <= 0 {
		return fmt.Errorf("verify timeout must be positive")
	}

	switch cfg.Auth.Verifier {
	case VerifierToken, VerifierOIDC:
	default:
		return fmt.Errorf("unknown verifier %q (expected %q or %q)", cfg.Auth.Verifier, VerifierToken, VerifierOIDC)
	}

	// The signer is needed to verify tokens and to mint them after an OIDC login
	if cfg.Auth.Verifier == VerifierToken || cfg.Auth.OIDC.LoginEnabled {
		if cfg.Auth.Token.Secret == "" {
			return fmt.Errorf("AUTH_TOKEN_SECRET is required")
		}
		if len(cfg.Auth.Token.Secret) < MinTokenSecretLength {
			return fmt.Errorf("token secret must be at least %d bytes long", MinTokenSecretLength)
		}
		if cfg.Auth.Token.TTL <= 0 {
			return fmt.Errorf("token TTL must be positive")
		}
	}

	if cfg.OIDCRequired() {
		if cfg.Auth.OIDC.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is used")
		}
		if cfg.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is used")
		}
	}

	if cfg.Auth.OIDC.LoginEnabled {
		if cfg.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC login is enabled")
		}
		if cfg.Auth.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC login is enabled")
		}
	}

	return nil
}
