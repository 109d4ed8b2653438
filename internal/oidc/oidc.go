package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/quillpad/blogsvc/internal/config"
	"github.com/quillpad/blogsvc/pkg/logger"
	"github.com/quillpad/blogsvc/pkg/middleware"
)

// Verifier checks ID tokens against a discovered OIDC provider.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer and verifies tokens issued to clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// Issuer is the Keycloak realm URL, or URL itself when no realm is set.
func Issuer(cfg config.KeycloakConfig) string {
	if cfg.Realm == "" {
		return cfg.URL
	}
	return strings.TrimRight(cfg.URL, "/") + "/realms/" + cfg.Realm
}

// NewFromConfig returns the verifier guarding write routes. It is nil, with
// no error, when neither Keycloak nor the insecure mode is configured.
func NewFromConfig(ctx context.Context, cfg config.KeycloakConfig) (middleware.Verifier, error) {
	if cfg.URL != "" && cfg.ClientID != "" {
		ver, err := NewVerifier(ctx, Issuer(cfg), cfg.ClientID)
		if err == nil {
			return ver, nil
		}
		if !cfg.AllowInsecureToken {
			return nil, err
		}
		logger.Warnf("OIDC discovery failed, falling back to insecure verifier: %v", err)
	}
	if cfg.AllowInsecureToken {
		logger.Warn("enabling insecure token verifier (integration mode)")
		return NewInsecureVerifier(), nil
	}
	return nil, nil
}
