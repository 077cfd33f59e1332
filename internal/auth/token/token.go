// Package token issues and verifies the signed session tokens carried in the
// session cookie.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sessiongate/internal/auth"
)

// ProviderName is reported in identities produced by this package
const ProviderName = "token"

// MinSecretLength is the minimum HMAC key size in bytes
const MinSecretLength = 32

// Claims are the claims of a session token. The username is the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Config holds signer configuration
type Config struct {
	// Secret is the HMAC-SHA256 key
	Secret []byte

	// Issuer is written to and required in the iss claim
	Issuer string

	// TTL is the lifetime of issued tokens
	TTL time.Duration
}

// Signer issues session tokens and verifies them
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New creates a signer
func New(config Config) (*Signer, error) {
	if len(config.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes long", MinSecretLength)
	}
	if config.Issuer == "" {
		return nil, fmt.Errorf("token issuer is required")
	}
	if config.TTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive")
	}

	return &Signer{
		secret: config.Secret,
		issuer: config.Issuer,
		ttl:    config.TTL,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue returns a signed token for subject
func (s *Signer) Issue(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify implements auth.Verifier. Malformed, forged, expired and foreign
// tokens all fail with an error wrapping auth.ErrInvalidCredential.
func (s *Signer) Verify(_ context.Context, credential string) (*auth.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(credential, claims,
		func(_ *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidCredential, errors.New("token has no subject"))
	}

	identity := &auth.Identity{
		Subject:  claims.Subject,
		Provider: ProviderName,
		Attributes: map[string]interface{}{
			"expires_at": claims.ExpiresAt.Time,
		},
	}
	return identity, nil
}
