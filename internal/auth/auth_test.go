package auth

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, IdentityFromContext(ctx))

	id := &Identity{Subject: "alice", Provider: "token"}
	ctx = ContextWithIdentity(ctx, id)
	assert.Same(t, id, IdentityFromContext(ctx))
}

func TestVerifierFunc(t *testing.T) {
	v := VerifierFunc(func(_ context.Context, credential string) (*Identity, error) {
		if credential != "ok" {
			return nil, ErrInvalidCredential
		}
		return &Identity{Subject: "alice"}, nil
	})

	id, err := v.Verify(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Subject)

	_, err = v.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestChain(t *testing.T) {
	only := func(want, subject string) Verifier {
		return VerifierFunc(func(_ context.Context, credential string) (*Identity, error) {
			if credential != want {
				return nil, ErrInvalidCredential
			}
			return &Identity{Subject: subject}, nil
		})
	}
	chain := Chain{only("first", "alice"), only("second", "bob")}

	id, err := chain.Verify(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Subject)

	id, err = chain.Verify(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Subject)

	id, err = chain.Verify(context.Background(), "third")
	assert.Nil(t, id)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = Chain{}.Verify(context.Background(), "first")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSessionCookies(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	overTLS := httptest.NewRequest(http.MethodGet, "/", nil)
	overTLS.TLS = &tls.ConnectionState{}

	t.Run("set over plain http", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SessionCookie{Name: "auth_token"}.Set(rec, plain, "tok", time.Hour)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "auth_token", cookies[0].Name)
		assert.Equal(t, "tok", cookies[0].Value)
		assert.Equal(t, 3600, cookies[0].MaxAge)
		assert.True(t, cookies[0].HttpOnly)
		assert.False(t, cookies[0].Secure)
	})

	t.Run("clear", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SessionCookie{Name: "auth_token"}.Clear(rec, plain)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "", cookies[0].Value)
		assert.Less(t, cookies[0].MaxAge, 0)
	})

	secure := []struct {
		name   string
		cookie SessionCookie
		req    *http.Request
		want   bool
	}{
		{name: "plain http", cookie: SessionCookie{Name: "auth_token"}, req: plain, want: false},
		{name: "tls", cookie: SessionCookie{Name: "auth_token"}, req: overTLS, want: true},
		{name: "forced behind terminating proxy", cookie: SessionCookie{Name: "auth_token", Secure: true}, req: plain, want: true},
	}
	for _, tt := range secure {
		t.Run("secure "+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cookie.IsSecure(tt.req))

			rec := httptest.NewRecorder()
			tt.cookie.Set(rec, tt.req, "tok", time.Hour)
			tt.cookie.Clear(rec, tt.req)
			for _, c := range rec.Result().Cookies() {
				assert.Equal(t, tt.want, c.Secure)
			}
		})
	}
}
