package gate

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sessiongate/internal/auth"
	"sessiongate/internal/observability/logging"
	"sessiongate/internal/observability/metrics"
)

// MiddlewareConfig describes where the credential lives in a request
type MiddlewareConfig struct {
	// CookieName is the session cookie
	CookieName string

	// HeaderName is read after the cookie; a "Bearer " prefix is stripped
	HeaderName string

	// VerifyTimeout bounds the verification call, zero means no bound
	VerifyTimeout time.Duration
}

// Middleware hosts a Gate in an http.Handler chain
type Middleware struct {
	gate    *Gate
	config  MiddlewareConfig
	logger  *logging.Logger
	metrics *metrics.Collector
}

// NewMiddleware creates the gate middleware
func NewMiddleware(g *Gate, config MiddlewareConfig, logger *logging.Logger, metricsCollector *metrics.Collector) *Middleware {
	return &Middleware{
		gate:    g,
		config:  config,
		logger:  logger.WithModule("auth.gate"),
		metrics: metricsCollector,
	}
}

// Credentials extracts the session credentials present in the request,
// cookie first, then the configured header
func (m *Middleware) Credentials(r *http.Request) []Credential {
	var creds []Credential

	if cookie, err := r.Cookie(m.config.CookieName); err == nil && cookie.Value != "" {
		creds = append(creds, CredentialOf(cookie.Value))
	}

	if m.config.HeaderName != "" {
		value := r.Header.Get(m.config.HeaderName)
		if token, found := strings.CutPrefix(value, "Bearer "); found {
			value = token
		}
		if c := CredentialOf(strings.TrimSpace(value)); c.Present {
			creds = append(creds, c)
		}
	}

	return creds
}

// Handler returns an http.Handler that only lets requests through when the
// gate forwards them. Redirects answer 302 without calling next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx, m.logger)

		decision := m.evaluate(ctx, r)

		m.metrics.RecordGateDecision(decision.Outcome.String(), string(decision.Reason))

		attrs := []any{"path", r.URL.Path, "outcome", decision.Outcome.String(), "reason", string(decision.Reason)}
		if decision.Identity != nil {
			attrs = append(attrs, "subject", decision.Identity.Subject)
		}
		if decision.Err != nil {
			attrs = append(attrs, logging.Err(decision.Err))
		}
		logger.Debug("Gate decision", attrs...)

		if !decision.Forwarded() {
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, decision.Location, http.StatusFound)
			return
		}

		if decision.Identity != nil {
			r = r.WithContext(auth.ContextWithIdentity(ctx, decision.Identity))
		}
		next.ServeHTTP(w, r)
	})
}

// evaluate runs the gate with the verification timeout applied. Each
// credential is tried in turn so a stale cookie does not hide a valid header.
func (m *Middleware) evaluate(ctx context.Context, r *http.Request) Decision {
	if m.config.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.VerifyTimeout)
		defer cancel()
	}

	creds := m.Credentials(r)
	if len(creds) == 0 {
		return m.gate.Evaluate(ctx, NoCredential, r.URL.Path)
	}

	var decision Decision
	for _, c := range creds {
		decision = m.gate.Evaluate(ctx, c, r.URL.Path)
		if decision.Reason == ReasonAuthenticated {
			break
		}
	}
	return decision
}
