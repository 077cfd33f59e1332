// Package gate decides whether a request may reach the protected application
// based on its session credential and its path.
//
// The Gate itself is a pure decision function. Middleware adapts it to
// net/http: it extracts the credential, emits the redirect, logs and records
// metrics. A Gate is immutable after New and safe for concurrent use.
package gate

import (
	"context"
	"fmt"
	"strings"

	"sessiongate/internal/auth"
)

// DefaultLoginPath is the redirect target when Config.LoginPath is empty
const DefaultLoginPath = "/login"

// Outcome is the client-visible result of an evaluation
type Outcome int

const (
	// Forward lets the request through to the next handler
	Forward Outcome = iota
	// Redirect sends the client to the login page
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Forward:
		return "forward"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Reason records why a decision was made. It is for logs and metrics only
// and never changes what the client sees.
type Reason string

const (
	// ReasonAuthenticated means the credential verified
	ReasonAuthenticated Reason = "authenticated"
	// ReasonExempt means the path needs no session
	ReasonExempt Reason = "exempt"
	// ReasonMissing means no credential was sent
	ReasonMissing Reason = "missing"
	// ReasonInvalid means a credential was sent but did not verify
	ReasonInvalid Reason = "invalid"
)

// Credential is the raw session value extracted from a request
type Credential struct {
	Value   string
	Present bool
}

// NoCredential is the credential of a request that carried none
var NoCredential = Credential{}

// CredentialOf wraps a raw value; an empty value counts as absent
func CredentialOf(value string) Credential {
	return Credential{Value: value, Present: value != ""}
}

// Decision is the result of Gate.Evaluate
type Decision struct {
	Outcome Outcome
	// Location is the redirect target, set only when Outcome is Redirect
	Location string

	// Identity is the verified identity, if any
	Identity *auth.Identity
	Reason   Reason
	// Err is the verification error behind ReasonInvalid
	Err error
}

// Forwarded reports whether the request may proceed
func (d Decision) Forwarded() bool {
	return d.Outcome == Forward
}

// Config holds gate configuration
type Config struct {
	// LoginPath is the redirect target for unauthenticated requests
	LoginPath string

	// ExemptPaths are matched exactly against the request path
	ExemptPaths []string
}

// Gate is the login gate
type Gate struct {
	verifier  auth.Verifier
	loginPath string
	exempt    map[string]struct{}
}

// New creates a gate. The login path is always exempt so that the redirect
// target is reachable.
func New(config Config, verifier auth.Verifier) (*Gate, error) {
	if verifier == nil {
		return nil, fmt.Errorf("gate requires a verifier")
	}

	loginPath := config.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if !strings.HasPrefix(loginPath, "/") {
		return nil, fmt.Errorf("login path must start with '/': %q", loginPath)
	}

	exempt := make(map[string]struct{}, len(config.ExemptPaths)+1)
	for _, p := range config.ExemptPaths {
		exempt[p] = struct{}{}
	}
	exempt[loginPath] = struct{}{}

	return &Gate{
		verifier:  verifier,
		loginPath: loginPath,
		exempt:    exempt,
	}, nil
}

// LoginPath returns the redirect target
func (g *Gate) LoginPath() string {
	return g.loginPath
}

// IsExempt reports whether path is reachable without a session
func (g *Gate) IsExempt(path string) bool {
	_, ok := g.exempt[path]
	return ok
}

// Evaluate decides whether a request with the given credential and path may
// proceed. Verification failures are indistinguishable from an absent
// credential in the outcome.
func (g *Gate) Evaluate(ctx context.Context, credential Credential, path string) Decision {
	reason := ReasonMissing
	var verifyErr error

	if credential.Present {
		identity, err := g.verifier.Verify(ctx, credential.Value)
		if err == nil && identity != nil {
			return Decision{Outcome: Forward, Identity: identity, Reason: ReasonAuthenticated}
		}
		reason, verifyErr = ReasonInvalid, err
		if verifyErr == nil {
			verifyErr = auth.ErrInvalidCredential
		}
	}

	if g.IsExempt(path) {
		return Decision{Outcome: Forward, Reason: ReasonExempt, Err: verifyErr}
	}

	return Decision{Outcome: Redirect, Location: g.loginPath, Reason: reason, Err: verifyErr}
}
