package oidc

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sessiongate/internal/auth"
	"sessiongate/internal/observability/logging"
	"sessiongate/internal/observability/metrics"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Temporary cookies used during the authorization code flow
const (
	stateCookie        = "oidc_state"
	codeVerifierCookie = "oidc_code_verifier"
	originCookie       = "oidc_origin_url"

	tempCookieTTL = 10 * time.Minute
)

// TokenIssuer mints the session token stored in the session cookie
type TokenIssuer interface {
	Issue(subject string) (string, error)
	TTL() time.Duration
}

// LoginConfig holds OIDC login configuration
type LoginConfig struct {
	// ClientID is the OIDC client ID
	ClientID string

	// ClientSecret is the OIDC client secret
	ClientSecret string

	// RedirectURL is the callback URL registered with the provider
	RedirectURL string

	// Scopes is a list of OIDC scopes to request
	Scopes []string

	// Cookie is the session cookie written after a successful login
	Cookie auth.SessionCookie
}

// Login serves the login path by delegating authentication to an OIDC
// provider and exchanging the result for a session token.
type Login struct {
	logger       *logging.Logger
	metrics      *metrics.Collector
	config       oauth2.Config
	verifier     *oidc.IDTokenVerifier
	issuer       TokenIssuer
	cookie       auth.SessionCookie
	callbackPath string
}

// NewLogin creates the login flow for provider
func NewLogin(provider *oidc.Provider, config LoginConfig, issuer TokenIssuer, logger *logging.Logger, metricsCollector *metrics.Collector) (*Login, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("OIDC login enabled but clientID or clientSecret not provided")
	}
	if config.RedirectURL == "" {
		return nil, fmt.Errorf("OIDC login enabled but no redirect URL provided")
	}
	if config.Cookie.Name == "" {
		return nil, fmt.Errorf("OIDC login requires a session cookie name")
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	oauthConfig := oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  config.RedirectURL,
		Scopes:       scopes,
	}

	return newLogin(oauthConfig, provider.Verifier(&oidc.Config{ClientID: config.ClientID}), issuer, config.Cookie, logger, metricsCollector), nil
}

func newLogin(oauthConfig oauth2.Config, verifier *oidc.IDTokenVerifier, issuer TokenIssuer, cookie auth.SessionCookie, logger *logging.Logger, metricsCollector *metrics.Collector) *Login {
	return &Login{
		logger:       logger.WithModule("auth.oidc"),
		metrics:      metricsCollector,
		config:       oauthConfig,
		verifier:     verifier,
		issuer:       issuer,
		cookie:       cookie,
		callbackPath: extractCallbackPath(oauthConfig.RedirectURL),
	}
}

// CallbackPath returns the path the provider redirects back to
func (l *Login) CallbackPath() string {
	return l.callbackPath
}

// ServeLogin starts the authorization code flow. Requests that already carry
// a verified session go straight to their origin.
func (l *Login) ServeLogin(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context(), l.logger)
	origin := localOrigin(r.URL.Query().Get("next"))

	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		logger.Debug("Already logged in, skipping OIDC flow", "subject", identity.Subject)
		http.Redirect(w, r, origin, http.StatusFound)
		return
	}

	state, err := randomString(16)
	if err != nil {
		logger.Error("Failed to generate state parameter", logging.Err(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	codeVerifier := oauth2.GenerateVerifier()

	// Store state, code verifier and origin in cookies
	l.setTempCookie(w, r, stateCookie, state)
	l.setTempCookie(w, r, codeVerifierCookie, codeVerifier)
	l.setTempCookie(w, r, originCookie, origin)

	// Generate authorization URL with PKCE
	authURL := l.config.AuthCodeURL(state, oauth2.S256ChallengeOption(codeVerifier))

	logger.Info("Redirecting to OIDC provider for authentication")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// ServeCallback completes the flow: it exchanges the code, verifies the ID
// token and writes a session token for its subject.
func (l *Login) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx, l.logger)

	// Verify the state parameter to prevent CSRF attacks
	state := r.URL.Query().Get("state")
	if state == "" {
		logger.Warn("No state parameter in callback")
		http.Error(w, "Invalid callback", http.StatusBadRequest)
		return
	}
	stateCookieValue, err := r.Cookie(stateCookie)
	if err != nil || stateCookieValue.Value != state {
		logger.Warn("State mismatch or cookie missing", "cookie_exists", err == nil)
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	codeVerifier, err := r.Cookie(codeVerifierCookie)
	if err != nil {
		logger.Warn("No code verifier cookie", logging.Err(err))
		http.Error(w, "Code verifier not found", http.StatusBadRequest)
		return
	}

	origin := "/"
	if c, err := r.Cookie(originCookie); err == nil {
		origin = localOrigin(c.Value)
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		logger.Warn("OIDC provider returned an error", "error", errParam, "description", r.URL.Query().Get("error_description"))
		l.metrics.RecordSessionIssued(ProviderName, false)
		http.Error(w, "Login failed", http.StatusUnauthorized)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Warn("No code parameter in callback")
		http.Error(w, "No code received", http.StatusBadRequest)
		return
	}

	// Exchange the code for tokens
	oauth2Token, err := l.config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier.Value))
	if err != nil {
		logger.Error("Failed to exchange token", logging.Err(err))
		l.metrics.RecordSessionIssued(ProviderName, false)
		http.Error(w, "Failed to exchange token", http.StatusBadGateway)
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		logger.Error("No ID token in OAuth2 token")
		l.metrics.RecordSessionIssued(ProviderName, false)
		http.Error(w, "No ID token in OAuth2 token", http.StatusBadGateway)
		return
	}

	idToken, err := l.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Error("Failed to verify ID token", logging.Err(err))
		l.metrics.RecordSessionIssued(ProviderName, false)
		http.Error(w, "Failed to verify ID token", http.StatusUnauthorized)
		return
	}

	sessionToken, err := l.issuer.Issue(idToken.Subject)
	if err != nil {
		logger.Error("Failed to issue session token", logging.Err(err))
		l.metrics.RecordSessionIssued(ProviderName, false)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	l.cookie.Set(w, r, sessionToken, l.issuer.TTL())
	l.clearTempCookies(w, r)

	logger.Info("Session issued", "subject", idToken.Subject)
	l.metrics.RecordSessionIssued(ProviderName, true)

	http.Redirect(w, r, origin, http.StatusSeeOther)
}

// setTempCookie sets a temporary cookie for the OIDC flow
func (l *Login) setTempCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   l.cookie.IsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tempCookieTTL.Seconds()),
	})
}

// clearTempCookies clears temporary cookies used in the OIDC flow
func (l *Login) clearTempCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{stateCookie, codeVerifierCookie, originCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   l.cookie.IsSecure(r),
			MaxAge:   -1,
		})
	}
}

// localOrigin returns target when it is a path on this host, "/" otherwise
func localOrigin(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return target
}

// extractCallbackPath extracts the path component from a URL
func extractCallbackPath(urlStr string) string {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Path == "" {
		return "/callback"
	}
	return parsedURL.Path
}

// randomString generates a random string of the specified length
func randomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}
