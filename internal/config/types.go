// internal/config/types.go
package config

import (
	"net/url"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration
	TLS struct {
		// Enabled indicates whether TLS is enabled
		Enabled bool
		// CertPath is the path to the TLS certificate
		CertPath string
		// KeyPath is the path to the TLS key
		KeyPath string
		// CAPath is the path to an additional CA bundle for client certificates
		CAPath string
	}

	// Upstream holds configuration for the protected application
	Upstream struct {
		// URL is the URL of the upstream application
		URL *url.URL
		// Timeout is the maximum time to wait for upstream response headers
		Timeout time.Duration
	}

	// Auth holds the login gate configuration
	Auth struct {
		// CookieName is the cookie carrying the session token
		CookieName string
		// CookieSecure marks cookies Secure even when the request arrived over plain HTTP
		CookieSecure bool
		// HeaderName is an optional header checked when the cookie is absent
		HeaderName string
		// LoginPath is where unauthenticated requests are redirected
		LoginPath string
		// LogoutPath clears the session cookie
		LogoutPath string
		// ExemptPaths are reachable without a session
		ExemptPaths []string
		// Verifier selects the verification capability ("token" or "oidc")
		Verifier string
		// VerifyTimeout bounds a single verification call
		VerifyTimeout time.Duration

		// Token holds the signed session token configuration
		Token struct {
			// Secret is the HMAC signing key
			Secret string
			// Issuer is written to and required in the iss claim
			Issuer string
			// TTL is the lifetime of issued tokens
			TTL time.Duration
		}

		// OIDC holds OIDC provider configuration
		OIDC struct {
			// Issuer is the OIDC issuer URL
			Issuer string
			// ClientID is the OIDC client ID
			ClientID string
			// ClientSecret is the OIDC client secret
			ClientSecret string
			// RedirectURL is the callback URL registered with the provider
			RedirectURL string
			// Scopes is a list of OIDC scopes to request
			Scopes []string
			// LoginEnabled makes the gate serve the login path through the provider
			LoginEnabled bool
		}
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
		// LogFormat is the log format (json, text, console)
		LogFormat string
	}
}

// Verifier kinds accepted in AUTH_VERIFIER
const (
	VerifierToken = "token"
	VerifierOIDC  = "oidc"
)

// OIDCRequired reports whether any component needs the OIDC provider settings
func (c *Config) OIDCRequired() bool {
	return c.Auth.Verifier == VerifierOIDC || c.Auth.OIDC.LoginEnabled
}
