// internal/server/factory.go
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"sessiongate/internal/auth"
	"sessiongate/internal/auth/gate"
	"sessiongate/internal/auth/oidc"
	"sessiongate/internal/auth/token"
	"sessiongate/internal/config"
	"sessiongate/internal/observability"
	"sessiongate/internal/observability/logging"
	"sessiongate/internal/proxy/router"
	tlsconfig "sessiongate/internal/tls"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// NewFromConfig creates a new server from configuration. ctx bounds OIDC
// provider discovery.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	obs, err := observability.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		tlsSetup := &tlsconfig.Config{
			Logger:       logger,
			CertPath:     cfg.TLS.CertPath,
			KeyPath:      cfg.TLS.KeyPath,
			ClientCAPath: cfg.TLS.CAPath,
		}
		tlsCfg, err = tlsSetup.GetTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	var provider *gooidc.Provider
	if cfg.OIDCRequired() {
		provider, err = oidc.NewProvider(ctx, cfg.Auth.OIDC.Issuer)
		if err != nil {
			return nil, err
		}
		logger.Info("OIDC provider discovered", "issuer", logging.RedactStringURL(cfg.Auth.OIDC.Issuer))
	}

	handler, err := newHandler(cfg, provider, obs)
	if err != nil {
		return nil, err
	}

	serverConfig := Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		TLSConfig:       tlsCfg,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	return New(serverConfig, handler, obs.MetricsHandler(), logger), nil
}

// NewTokenSigner creates the session token signer from configuration
func NewTokenSigner(cfg *config.Config) (*token.Signer, error) {
	signer, err := token.New(token.Config{
		Secret: []byte(cfg.Auth.Token.Secret),
		Issuer: cfg.Auth.Token.Issuer,
		TTL:    cfg.Auth.Token.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	return signer, nil
}

// newHandler builds the chain observability -> router -> gate -> upstream.
// provider must be set when cfg.OIDCRequired() is true.
func newHandler(cfg *config.Config, provider *gooidc.Provider, obs *observability.Provider) (http.Handler, error) {
	logger := obs.Logger

	var signer *token.Signer
	if cfg.Auth.Verifier == config.VerifierToken || cfg.Auth.OIDC.LoginEnabled {
		var err error
		if signer, err = NewTokenSigner(cfg); err != nil {
			return nil, err
		}
	}

	verifier, err := newVerifier(cfg, provider, signer)
	if err != nil {
		return nil, err
	}

	cookie := auth.SessionCookie{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure}
	exempt := append([]string(nil), cfg.Auth.ExemptPaths...)

	var login router.LoginFlow
	if cfg.Auth.OIDC.LoginEnabled {
		flow, err := oidc.NewLogin(provider, oidc.LoginConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			RedirectURL:  cfg.Auth.OIDC.RedirectURL,
			Scopes:       cfg.Auth.OIDC.Scopes,
			Cookie:       cookie,
		}, signer, logger, obs.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC login: %w", err)
		}
		exempt = append(exempt, flow.CallbackPath())
		login = flow
	}

	g, err := gate.New(gate.Config{
		LoginPath:   cfg.Auth.LoginPath,
		ExemptPaths: exempt,
	}, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize login gate: %w", err)
	}

	mw := gate.NewMiddleware(g, gate.MiddlewareConfig{
		CookieName:    cfg.Auth.CookieName,
		HeaderName:    cfg.Auth.HeaderName,
		VerifyTimeout: cfg.Auth.VerifyTimeout,
	}, logger, obs.Metrics)

	logger.Info("Login gate configured",
		"verifier", cfg.Auth.Verifier,
		"login_path", g.LoginPath(),
		"exempt_paths", exempt,
		"oidc_login", login != nil,
		"upstream", logging.RedactURL(cfg.Upstream.URL),
	)

	proxyRouter := router.New(router.Config{
		UpstreamURL:     cfg.Upstream.URL,
		UpstreamTimeout: cfg.Upstream.Timeout,
		LoginPath:       g.LoginPath(),
		LogoutPath:      cfg.Auth.LogoutPath,
		Cookie:          cookie,
	}, mw.Handler, login, logger, obs.Metrics)

	return obs.Middleware(proxyRouter), nil
}

// newVerifier selects the verification capability. With OIDC verification
// and OIDC login both on, the session tokens minted by the login flow are
// accepted alongside ID tokens.
func newVerifier(cfg *config.Config, provider *gooidc.Provider, signer *token.Signer) (auth.Verifier, error) {
	switch cfg.Auth.Verifier {
	case config.VerifierToken:
		return signer, nil
	case config.VerifierOIDC:
		if provider == nil {
			return nil, fmt.Errorf("OIDC verifier requires a provider")
		}
		idTokens, err := oidc.NewVerifier(provider, cfg.Auth.OIDC.ClientID)
		if err != nil {
			return nil, err
		}
		if signer != nil {
			return auth.Chain{signer, idTokens}, nil
		}
		return idTokens, nil
	default:
		return nil, fmt.Errorf("unknown verifier: %s", cfg.Auth.Verifier)
	}
}
