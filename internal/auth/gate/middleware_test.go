package gate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessiongate/internal/auth"
	"sessiongate/internal/observability/logging"
	"sessiongate/internal/observability/metrics"
)

func newTestMiddleware(t *testing.T, g *Gate, config MiddlewareConfig) *Middleware {
	t.Helper()
	logger, err := logging.New(io.Discard, "debug", "text")
	require.NoError(t, err)
	return NewMiddleware(g, config, logger, metrics.NewCollector())
}

// recordingHandler remembers whether it ran and which identity it saw
type recordingHandler struct {
	called   bool
	identity *auth.Identity
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.identity = auth.IdentityFromContext(r.Context())
	w.Header().Set("X-Upstream", "yes")
	w.WriteHeader(http.StatusTeapot)
	_, _ = w.Write([]byte("downstream body"))
}

func TestMiddlewareHandler(t *testing.T) {
	signer := newTestSigner(t)
	g := newTestGate(t, signer)
	m := newTestMiddleware(t, g, MiddlewareConfig{CookieName: "auth_token", VerifyTimeout: time.Second})

	alice, err := signer.Issue("alice")
	require.NoError(t, err)

	tests := []struct {
		name         string
		path         string
		cookie       string
		wantCalled   bool
		wantStatus   int
		wantLocation string
		wantSubject  string
	}{
		{name: "no cookie protected", path: "/dashboard", wantStatus: http.StatusFound, wantLocation: "/login"},
		{name: "no cookie exempt", path: "/login", wantCalled: true, wantStatus: http.StatusTeapot},
		{name: "valid cookie", path: "/dashboard", cookie: alice, wantCalled: true, wantStatus: http.StatusTeapot, wantSubject: "alice"},
		{name: "corrupted cookie exempt", path: "/reset", cookie: "corrupted", wantCalled: true, wantStatus: http.StatusTeapot},
		{name: "corrupted cookie protected", path: "/settings", cookie: "corrupted", wantStatus: http.StatusFound, wantLocation: "/login"},
		{name: "query string ignored", path: "/login?next=/dashboard", wantCalled: true, wantStatus: http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingHandler{}
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			m.Handler(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, next.called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))

			if tt.wantCalled {
				assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
				assert.Equal(t, "downstream body", rec.Body.String())
			} else {
				assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			}

			if tt.wantSubject == "" {
				assert.Nil(t, next.identity)
			} else {
				require.NotNil(t, next.identity)
				assert.Equal(t, tt.wantSubject, next.identity.Subject)
			}
		})
	}
}

func TestMiddlewareCredentials(t *testing.T) {
	signer := newTestSigner(t)
	g := newTestGate(t, signer)

	tests := []struct {
		name       string
		headerName string
		cookie     string
		header     string
		want       []Credential
	}{
		{name: "nothing"},
		{name: "cookie", cookie: "abc", want: []Credential{CredentialOf("abc")}},
		{name: "header ignored when not configured", header: "Bearer abc"},
		{name: "bearer header", headerName: "Authorization", header: "Bearer abc", want: []Credential{CredentialOf("abc")}},
		{name: "raw header", headerName: "X-Session", header: "abc", want: []Credential{CredentialOf("abc")}},
		{
			name:       "cookie before header",
			headerName: "Authorization",
			cookie:     "fromcookie",
			header:     "Bearer fromheader",
			want:       []Credential{CredentialOf("fromcookie"), CredentialOf("fromheader")},
		},
		{name: "empty bearer", headerName: "Authorization", header: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMiddleware(t, g, MiddlewareConfig{CookieName: "auth_token", HeaderName: tt.headerName})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(firstNonEmpty(tt.headerName, "Authorization"), tt.header)
			}

			assert.Equal(t, tt.want, m.Credentials(req))
		})
	}
}

func TestMiddlewareHeaderFallback(t *testing.T) {
	signer := newTestSigner(t)
	g := newTestGate(t, signer)
	m := newTestMiddleware(t, g, MiddlewareConfig{CookieName: "auth_token", HeaderName: "Authorization", VerifyTimeout: time.Second})

	alice, err := signer.Issue("alice")
	require.NoError(t, err)
	bob, err := signer.Issue("bob")
	require.NoError(t, err)

	tests := []struct {
		name        string
		cookie      string
		header      string
		wantCalled  bool
		wantSubject string
	}{
		{name: "stale cookie valid header", cookie: "stale", header: "Bearer " + alice, wantCalled: true, wantSubject: "alice"},
		{name: "valid cookie wins", cookie: alice, header: "Bearer " + bob, wantCalled: true, wantSubject: "alice"},
		{name: "valid cookie invalid header", cookie: bob, header: "Bearer garbage", wantCalled: true, wantSubject: "bob"},
		{name: "both invalid", cookie: "stale", header: "Bearer garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingHandler{}
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			m.Handler(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, next.called)
			if !tt.wantCalled {
				assert.Equal(t, http.StatusFound, rec.Code)
				assert.Equal(t, "/login", rec.Header().Get("Location"))
				return
			}
			require.NotNil(t, next.identity)
			assert.Equal(t, tt.wantSubject, next.identity.Subject)
		})
	}
}

func TestMiddlewareVerifyTimeout(t *testing.T) {
	slow := auth.VerifierFunc(func(ctx context.Context, _ string) (*auth.Identity, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	g := newTestGate(t, slow)
	m := newTestMiddleware(t, g, MiddlewareConfig{CookieName: "auth_token", VerifyTimeout: 10 * time.Millisecond})

	next := &recordingHandler{}
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "whatever"})
	rec := httptest.NewRecorder()

	m.Handler(next).ServeHTTP(rec, req)

	assert.False(t, next.called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
