// internal/auth/types.go
package auth

import (
	"context"
	"errors"
)

// Identity represents an authenticated identity
type Identity struct {
	// Subject is the unique identifier for this identity (the username)
	Subject string

	// Provider is the verification capability that produced it (e.g., "token", "oidc")
	Provider string

	// Attributes contains additional identity information
	Attributes map[string]interface{}
}

// Verifier checks a credential and returns the identity it proves.
// Any non-nil error means the credential does not authenticate anyone.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface
type VerifierFunc func(ctx context.Context, credential string) (*Identity, error)

// Verify calls f(ctx, credential)
func (f VerifierFunc) Verify(ctx context.Context, credential string) (*Identity, error) {
	return f(ctx, credential)
}

// ErrInvalidCredential is returned by verifiers for credentials that do not verify
var ErrInvalidCredential = errors.New("invalid credential")

// Chain tries each verifier in order and returns the first identity produced
type Chain []Verifier

// Verify implements Verifier
func (c Chain) Verify(ctx context.Context, credential string) (*Identity, error) {
	errs := []error{ErrInvalidCredential}
	for _, v := range c {
		identity, err := v.Verify(ctx, credential)
		if err == nil && identity != nil {
			return identity, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}
