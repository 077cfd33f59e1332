package oidc

import (
	"context"
	"encoding/json"
	"fmt"

	"sessiongate/internal/auth"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/exp/slices"
)

// ProviderName is reported in identities produced by this package
const ProviderName = "oidc"

// audiences helps unmarshall the audience claim which can be either a string or an array
type audiences []string

func (a *audiences) UnmarshalJSON(data []byte) error {
	// Try as a single string
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = []string{single}
		return nil
	}

	// Try as an array of strings
	var multiple []string
	if err := json.Unmarshal(data, &multiple); err == nil {
		*a = multiple
		return nil
	}

	return fmt.Errorf("invalid audience claim format")
}

// Verifier accepts OIDC ID tokens issued for the configured client as session credentials
type Verifier struct {
	verifier *oidc.IDTokenVerifier
	clientID string
}

// NewProvider discovers the OIDC provider at issuer
func NewProvider(ctx context.Context, issuer string) (*oidc.Provider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
	}
	return provider, nil
}

// NewVerifier creates a verifier for tokens from provider issued to clientID
func NewVerifier(provider *oidc.Provider, clientID string) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("OIDC verifier requires a client ID")
	}
	return newVerifier(provider.Verifier(verifierConfig(clientID)), clientID), nil
}

// verifierConfig skips go-oidc's audience check; Verify accepts azp as well
func verifierConfig(clientID string) *oidc.Config {
	return &oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: true,
	}
}

func newVerifier(v *oidc.IDTokenVerifier, clientID string) *Verifier {
	return &Verifier{verifier: v, clientID: clientID}
}

// Verify implements auth.Verifier
func (v *Verifier) Verify(ctx context.Context, credential string) (*auth.Identity, error) {
	idToken, err := v.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidCredential, err)
	}

	var claims struct {
		Subject string    `json:"sub"`
		Azp     string    `json:"azp,omitempty"`
		Aud     audiences `json:"aud,omitempty"`
		Email   string    `json:"email,omitempty"`
		Name    string    `json:"name,omitempty"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %w", auth.ErrInvalidCredential, err)
	}

	if claims.Azp != v.clientID && !slices.Contains(claims.Aud, v.clientID) {
		return nil, fmt.Errorf("%w: audience mismatch", auth.ErrInvalidCredential)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", auth.ErrInvalidCredential)
	}

	identity := &auth.Identity{
		Subject:  claims.Subject,
		Provider: ProviderName,
		Attributes: map[string]interface{}{
			"issuer": idToken.Issuer,
		},
	}
	if claims.Email != "" {
		identity.Attributes["email"] = claims.Email
	}
	if claims.Name != "" {
		identity.Attributes["name"] = claims.Name
	}
	return identity, nil
}
