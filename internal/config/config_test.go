package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(EnvPrefix+"_"+k, v)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			envVars: map[string]string{
				"UPSTREAM_URL":      "http://app.internal:8080",
				"AUTH_TOKEN_SECRET": testSecret,
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":8000", cfg.Server.Address)
				assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, ":9090", cfg.Metrics.Address)
				assert.Equal(t, "app.internal:8080", cfg.Upstream.URL.Host)
				assert.Equal(t, "auth_token", cfg.Auth.CookieName)
				assert.False(t, cfg.Auth.CookieSecure)
				assert.Equal(t, "/login", cfg.Auth.LoginPath)
				assert.Equal(t, "/logout", cfg.Auth.LogoutPath)
				assert.Equal(t, []string{"/login", "/register", "/forgot", "/reset"}, cfg.Auth.ExemptPaths)
				assert.Equal(t, VerifierToken, cfg.Auth.Verifier)
				assert.Equal(t, 5*time.Second, cfg.Auth.VerifyTimeout)
				assert.Equal(t, "sessiongate", cfg.Auth.Token.Issuer)
				assert.Equal(t, 24*time.Hour, cfg.Auth.Token.TTL)
				assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Auth.OIDC.Scopes)
				assert.False(t, cfg.Auth.OIDC.LoginEnabled)
				assert.Equal(t, "console", cfg.Observability.LogFormat)
				assert.False(t, cfg.OIDCRequired())
			},
		},
		{
			name: "environment overrides",
			envVars: map[string]string{
				"UPSTREAM_URL":       "https://app.example.com",
				"AUTH_TOKEN_SECRET":  testSecret,
				"AUTH_COOKIE_NAME":   "sid",
				"AUTH_COOKIE_SECURE": "true",
				"AUTH_HEADER_NAME":   "Authorization",
				"AUTH_EXEMPT_PATHS":  "/signin, /signup,/static",
				"AUTH_LOGIN_PATH":    "/signin",
				"AUTH_TOKEN_TTL":     "1h",
				"LOG_FORMAT":         "JSON",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sid", cfg.Auth.CookieName)
				assert.True(t, cfg.Auth.CookieSecure)
				assert.Equal(t, "Authorization", cfg.Auth.HeaderName)
				assert.Equal(t, []string{"/signin", "/signup", "/static"}, cfg.Auth.ExemptPaths)
				assert.Equal(t, "/signin", cfg.Auth.LoginPath)
				assert.Equal(t, time.Hour, cfg.Auth.Token.TTL)
				assert.Equal(t, "json", cfg.Observability.LogFormat)
			},
		},
		{
			name: "oidc verifier without token secret",
			envVars: map[string]string{
				"UPSTREAM_URL":        "http://app:8080",
				"AUTH_VERIFIER":       "oidc",
				"AUTH_OIDC_ISSUER":    "https://idp.example.com",
				"AUTH_OIDC_CLIENT_ID": "gate",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, VerifierOIDC, cfg.Auth.Verifier)
				assert.True(t, cfg.OIDCRequired())
			},
		},
		{
			name:    "missing upstream",
			envVars: map[string]string{"AUTH_TOKEN_SECRET": testSecret},
			wantErr: "UPSTREAM_URL is required",
		},
		{
			name:    "relative upstream",
			envVars: map[string]string{"UPSTREAM_URL": "/app", "AUTH_TOKEN_SECRET": testSecret},
			wantErr: "upstream URL must be absolute",
		},
		{
			name:    "missing token secret",
			envVars: map[string]string{"UPSTREAM_URL": "http://app:8080"},
			wantErr: "AUTH_TOKEN_SECRET is required",
		},
		{
			name:    "short token secret",
			envVars: map[string]string{"UPSTREAM_URL": "http://app:8080", "AUTH_TOKEN_SECRET": "short"},
			wantErr: "at least 32 bytes",
		},
		{
			name: "unknown verifier",
			envVars: map[string]string{
				"UPSTREAM_URL":      "http://app:8080",
				"AUTH_TOKEN_SECRET": testSecret,
				"AUTH_VERIFIER":     "ldap",
			},
			wantErr: "unknown verifier",
		},
		{
			name: "invalid duration",
			envVars: map[string]string{
				"UPSTREAM_URL":      "http://app:8080",
				"AUTH_TOKEN_SECRET": testSecret,
				"SHUTDOWN_TIMEOUT":  "soon",
			},
			wantErr: "invalid shutdown timeout",
		},
		{
			name: "relative exempt path",
			envVars: map[string]string{
				"UPSTREAM_URL":      "http://app:8080",
				"AUTH_TOKEN_SECRET": testSecret,
				"AUTH_EXEMPT_PATHS": "login",
			},
			wantErr: "exempt path must start with '/'",
		},
		{
			name: "oidc login without client secret",
			envVars: map[string]string{
				"UPSTREAM_URL":            "http://app:8080",
				"AUTH_TOKEN_SECRET":       testSecret,
				"AUTH_OIDC_LOGIN_ENABLED": "true",
				"AUTH_OIDC_ISSUER":        "https://idp.example.com",
				"AUTH_OIDC_CLIENT_ID":     "gate",
			},
			wantErr: "OIDC client secret is required",
		},
		{
			name: "oidc login without token secret",
			envVars: map[string]string{
				"UPSTREAM_URL":            "http://app:8080",
				"AUTH_VERIFIER":           "oidc",
				"AUTH_OIDC_LOGIN_ENABLED": "true",
				"AUTH_OIDC_ISSUER":        "https://idp.example.com",
				"AUTH_OIDC_CLIENT_ID":     "gate",
				"AUTH_OIDC_CLIENT_SECRET": "s3cret",
				"AUTH_OIDC_REDIRECT_URL":  "https://gate.example.com/oauth/callback",
			},
			wantErr: "AUTH_TOKEN_SECRET is required",
		},
		{
			name: "invalid log format",
			envVars: map[string]string{
				"UPSTREAM_URL":      "http://app:8080",
				"AUTH_TOKEN_SECRET": testSecret,
				"LOG_FORMAT":        "xml",
			},
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.envVars)

			cfg, err := Load("")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessiongate.yaml")
	content := []byte(`UPSTREAM_URL: http://app.internal:3000
AUTH_TOKEN_SECRET: ` + testSecret + `
AUTH_EXEMPT_PATHS:
  - /login
  - /healthcheck
LOG_LEVEL: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app.internal:3000", cfg.Upstream.URL.Host)
	assert.Equal(t, []string{"/login", "/healthcheck"}, cfg.Auth.ExemptPaths)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)

	// Environment wins over the file
	t.Setenv(EnvPrefix+"_LOG_LEVEL", "warn")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestLoadMissingConfigFile(t *testing.T) {
	setEnv(t, map[string]string{
		"UPSTREAM_URL":      "http://app:8080",
		"AUTH_TOKEN_SECRET": testSecret,
	})

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestSettingsPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Settings.Print(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(Settings)+1)
	assert.True(t, strings.HasPrefix(lines[0], "SETTING"))

	out := buf.String()
	assert.Regexp(t, `SESSIONGATE_AUTH_COOKIE_NAME\s+string\s+auth_token\s+`, out)
	assert.Regexp(t, `SESSIONGATE_UPSTREAM_URL\s+string\s+\(required\)`, out)
	assert.Regexp(t, `SESSIONGATE_AUTH_VERIFY_TIMEOUT\s+duration\s+5s`, out)
	assert.Contains(t, out, "Always mark cookies Secure")
}
