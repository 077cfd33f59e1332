// internal/config/settings.go
package config

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/viper"
)

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// Duration type for time.Duration settings
	Duration SettingType = "duration"
	// StringSlice type for string slice settings
	StringSlice SettingType = "stringSlice"
)

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
	// Required indicates whether the setting must be non-empty
	Required bool
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// Print writes a table of the settings with their environment names,
// types and defaults
func (sl SettingList) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SETTING\tTYPE\tDEFAULT\tDESCRIPTION")
	for _, s := range sl {
		def := fmt.Sprint(s.Default)
		if s.Required {
			def = "(required)"
		}
		fmt.Fprintf(tw, "%s_%s\t%s\t%s\t%s\n", EnvPrefix, s.Name, s.Type, def, s.Short)
	}
	return tw.Flush()
}

// Settings defines all application settings
var Settings = SettingList{
	// Server settings
	{
		Name:    "SERVER_ADDR",
		Short:   "Address on which the gate listens",
		Type:    String,
		Default: ":8000",
	},
	{
		Name:    "METRICS_ADDR",
		Short:   "Address on which the metrics server listens",
		Type:    String,
		Default: ":9090",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for graceful shutdown",
		Type:    Duration,
		Default: "30s",
	},

	// TLS settings
	{
		Name:    "TLS_ENABLED",
		Short:   "Enable TLS for the server",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to TLS certificate file",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to TLS key file",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_CA_PATH",
		Short:   "Path to TLS CA certificate file",
		Type:    String,
		Default: "",
	},

	// Upstream settings
	{
		Name:     "UPSTREAM_URL",
		Short:    "URL of the protected application",
		Type:     String,
		Default:  "",
		Required: true,
	},
	{
		Name:    "UPSTREAM_TIMEOUT",
		Short:   "Timeout for upstream response headers",
		Type:    Duration,
		Default: "30s",
	},

	// Gate
	{
		Name:    "AUTH_COOKIE_NAME",
		Short:   "Name of the session cookie carrying the signed token",
		Type:    String,
		Default: "auth_token",
	},
	{
		Name:    "AUTH_COOKIE_SECURE",
		Short:   "Always mark cookies Secure (TLS terminated in front of the gate)",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTH_HEADER_NAME",
		Short:   "Optional header read after the session cookie",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_LOGIN_PATH",
		Short:   "Redirect target for unauthenticated requests",
		Type:    String,
		Default: "/login",
	},
	{
		Name:    "AUTH_LOGOUT_PATH",
		Short:   "Path that clears the session cookie",
		Type:    String,
		Default: "/logout",
	},
	{
		Name:    "AUTH_EXEMPT_PATHS",
		Short:   "Paths reachable without a session",
		Type:    StringSlice,
		Default: []string{"/login", "/register", "/forgot", "/reset"},
	},
	{
		Name:    "AUTH_VERIFIER",
		Short:   "Verification capability (token, oidc)",
		Type:    String,
		Default: VerifierToken,
	},
	{
		Name:    "AUTH_VERIFY_TIMEOUT",
		Short:   "Upper bound for a single credential verification",
		Type:    Duration,
		Default: "5s",
	},

	// Gate: signed token
	{
		Name:    "AUTH_TOKEN_SECRET",
		Short:   "HMAC secret for session tokens (at least 32 bytes; required unless only OIDC ID tokens are accepted)",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_TOKEN_ISSUER",
		Short:   "Issuer claim of session tokens",
		Type:    String,
		Default: "sessiongate",
	},
	{
		Name:    "AUTH_TOKEN_TTL",
		Short:   "Lifetime of issued session tokens",
		Type:    Duration,
		Default: "24h",
	},

	// Gate: OIDC
	{
		Name:    "AUTH_OIDC_ISSUER",
		Short:   "OIDC issuer URL",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_CLIENT_ID",
		Short:   "OIDC client ID",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_CLIENT_SECRET",
		Short:   "OIDC client secret",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_REDIRECT_URL",
		Short:   "OIDC redirect URL",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_SCOPES",
		Short:   "OIDC scopes",
		Type:    StringSlice,
		Default: []string{"openid", "email", "profile"},
	},
	{
		Name:    "AUTH_OIDC_LOGIN_ENABLED",
		Short:   "Serve the login path through the OIDC provider",
		Type:    Bool,
		Default: false,
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
	},
	{
		Name:    "LOG_FORMAT",
		Short:   "Logging format (json, text, console)",
		Type:    String,
		Default: "console",
	},
}
