// internal/proxy/router/router.go
package router

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"sessiongate/internal/auth"
	"sessiongate/internal/httputils"
	"sessiongate/internal/observability/logging"
	"sessiongate/internal/observability/metrics"

	"github.com/gorilla/mux"
)

const (
	// HealthPath answers liveness checks outside the gate
	HealthPath = "/healthz"

	// ForwardedUserHeader carries the verified subject to the upstream
	ForwardedUserHeader = "X-Forwarded-User"
)

// LoginFlow serves the login path in front of the upstream
type LoginFlow interface {
	ServeLogin(w http.ResponseWriter, r *http.Request)
	ServeCallback(w http.ResponseWriter, r *http.Request)
	CallbackPath() string
}

// Router routes health checks directly and everything else through the gate
type Router struct {
	*mux.Router
	target      *httputil.ReverseProxy
	logger      *logging.Logger
	metrics     *metrics.Collector
	upstreamURL *url.URL
	config      Config
}

// Config holds router configuration
type Config struct {
	// UpstreamURL is the URL of the upstream application
	UpstreamURL *url.URL

	// UpstreamTimeout is the timeout for upstream response headers
	UpstreamTimeout time.Duration

	// LoginPath is served by the login flow when one is configured
	LoginPath string

	// LogoutPath clears the session cookie
	LogoutPath string

	// Cookie is the session cookie cleared on logout
	Cookie auth.SessionCookie
}

// New creates a new router. gate wraps every route except the health check;
// login may be nil, in which case the login path is proxied to the upstream.
func New(config Config, gate mux.MiddlewareFunc, login LoginFlow, logger *logging.Logger, metricsCollector *metrics.Collector) *Router {
	r := &Router{
		Router:      mux.NewRouter(),
		logger:      logger.WithModule("proxy.router"),
		metrics:     metricsCollector,
		upstreamURL: config.UpstreamURL,
		config:      config,
	}
	r.target = r.newReverseProxy()

	r.setupRoutes(gate, login)

	return r
}

func (r *Router) newReverseProxy() *httputil.ReverseProxy {
	upstream := r.upstreamURL
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()

			// Only the gate decides who the user is
			pr.Out.Header.Del(ForwardedUserHeader)
			if identity := auth.IdentityFromContext(pr.In.Context()); identity != nil {
				pr.Out.Header.Set(ForwardedUserHeader, identity.Subject)
			}
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: r.config.UpstreamTimeout,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			logger := logging.FromContext(req.Context(), r.logger)
			logger.Error("Upstream request failed",
				logging.Err(err),
				"upstream", logging.RedactURL(upstream),
				"path", req.URL.Path,
			)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
}

// setupRoutes registers the health check on the root router and the rest on
// a subrouter guarded by gate
func (r *Router) setupRoutes(gate mux.MiddlewareFunc, login LoginFlow) {
	r.Path(HealthPath).Methods(http.MethodGet, http.MethodHead).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	protected := r.NewRoute().Subrouter()
	protected.Use(gate)

	if login != nil {
		r.logger.Debug("Serving login through OIDC provider",
			"login_path", r.config.LoginPath,
			"callback_path", login.CallbackPath(),
		)
		protected.Path(r.config.LoginPath).Methods(http.MethodGet).HandlerFunc(login.ServeLogin)
		protected.Path(login.CallbackPath()).Methods(http.MethodGet).HandlerFunc(login.ServeCallback)
	}

	if r.config.LogoutPath != "" {
		// Logout changes state, so a cross-site GET must not trigger it
		protected.Path(r.config.LogoutPath).Methods(http.MethodPost).HandlerFunc(r.serveLogout)
		protected.Path(r.config.LogoutPath).HandlerFunc(methodNotAllowed(http.MethodPost))
	}

	protected.PathPrefix("/").Handler(http.HandlerFunc(r.serveUpstream))
}

// serveLogout clears the session cookie and sends the user back to login
func (r *Router) serveLogout(w http.ResponseWriter, req *http.Request) {
	logger := logging.FromContext(req.Context(), r.logger)

	if identity := auth.IdentityFromContext(req.Context()); identity != nil {
		logger.Info("Logging out", "subject", identity.Subject)
	}

	r.config.Cookie.Clear(w, req)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, req, r.config.LoginPath, http.StatusFound)
}

// methodNotAllowed answers 405 for a path owned by the gate
func methodNotAllowed(allowed string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", allowed)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// serveUpstream forwards the request to the upstream application
func (r *Router) serveUpstream(w http.ResponseWriter, req *http.Request) {
	logger := logging.FromContext(req.Context(), r.logger)
	logger.Debug("Forwarding to upstream", "method", req.Method, "path", req.URL.Path)

	startTime := time.Now()
	wrapper := httputils.NewResponseWriter(w)

	r.target.ServeHTTP(wrapper, req)

	r.metrics.RecordUpstreamRequest(req.Method, wrapper.StatusCode, time.Since(startTime))
}
