// Package identity resolves the caller that requested a report. The
// principal only labels reports and audit entries; it grants nothing.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/rshade/costlens/internal/config"
)

// ErrUnauthenticated is returned when a credential cannot be verified.
var ErrUnauthenticated = errors.New("unauthenticated")

// Environment variables read by the static provider.
const (
	EnvUser  = "COSTLENS_USER"
	EnvEmail = "COSTLENS_EMAIL"
)

// Principal is an identified caller.
type Principal struct {
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

// String returns the best human label: name, then email, then subject.
func (p Principal) String() string {
	switch {
	case p.Name != "" && p.Email != "":
		return fmt.Sprintf("%s <%s>", p.Name, p.Email)
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return p.Subject
	}
}

// Provider verifies a credential.
type Provider interface {
	Identify(ctx context.Context, credential string) (Principal, error)
}

// Static returns a fixed principal. With a Token set, only that bearer
// credential is accepted.
type Static struct {
	Principal Principal
	Token     string
}

// NewStatic builds a static provider. Empty name and email fall back to
// COSTLENS_USER, COSTLENS_EMAIL and then the OS user.
func NewStatic(name, email, token string) *Static {
	if name == "" {
		name = os.Getenv(EnvUser)
	}
	if email == "" {
		email = os.Getenv(EnvEmail)
	}
	subject := name
	if subject == "" {
		if u, err := user.Current(); err == nil {
			subject = u.Username
			name = u.Username
		}
	}
	if subject == "" {
		subject = "anonymous"
	}
	return &Static{Principal: Principal{Subject: subject, Name: name, Email: email}, Token: token}
}

// Identify implements Provider.
func (s *Static) Identify(_ context.Context, credential string) (Principal, error) {
	if s.Token != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(s.Token)) != 1 {
		return Principal{}, ErrUnauthenticated
	}
	return s.Principal, nil
}

// OIDC verifies ID tokens issued by an OpenID Connect provider.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers the issuer's configuration.
func NewOIDC(ctx context.Context, issuer, clientID string) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider: %w", err)
	}
	return NewOIDCWithVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// NewOIDCWithVerifier wraps an existing verifier.
func NewOIDCWithVerifier(v *oidc.IDTokenVerifier) *OIDC {
	return &OIDC{verifier: v}
}

// Identify implements Provider.
func (o *OIDC) Identify(ctx context.Context, credential string) (Principal, error) {
	raw := strings.TrimSpace(credential)
	if raw == "" {
		return Principal{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	tok, err := o.verifier.Verify(ctx, raw)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	}
	if err = tok.Claims(&claims); err != nil {
		return Principal{}, fmt.Errorf("%w: parsing claims: %w", ErrUnauthenticated, err)
	}
	return Principal{Subject: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
}

// FromConfig builds the provider named by cfg.Kind.
func FromConfig(ctx context.Context, cfg config.IdentityConfig) (Provider, error) {
	switch cfg.Kind {
	case "", config.IdentityKindStatic:
		return NewStatic(cfg.Name, cfg.Email, cfg.Token), nil
	case config.IdentityKindOIDC:
		if cfg.Issuer == "" || cfg.ClientID == "" {
			return nil, errors.New("oidc identity needs issuer and client_id")
		}
		return NewOIDC(ctx, cfg.Issuer, cfg.ClientID)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidIdentity, cfg.Kind)
	}
}

type principalKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
