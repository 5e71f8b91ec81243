// Package auth establishes a caller session through either the federated
// identity flow or an extension wallet, returning the same session shape
// for both.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/observability"
)

type Method string

const (
	MethodFederated Method = "federated"
	MethodExtension Method = "extension"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodFederated, MethodExtension:
		return m, nil
	}
	return "", fmt.Errorf("unknown login method %q", s)
}

// Session is the result of a login. Principal is empty when the provider
// did not report one, which the extension path is allowed to do.
type Session struct {
	Actor     actor.Caller
	Principal string
	Method    Method
	// Expires is zero when the provider does not expose an expiry.
	Expires time.Time
}

// Provider is one login strategy.
type Provider interface {
	Method() Method
	Login(ctx context.Context) (*Session, error)
}

// Bridge dispatches logins to the configured providers.
type Bridge struct {
	providers map[Method]Provider
}

func NewBridge(providers ...Provider) *Bridge {
	b := &Bridge{providers: make(map[Method]Provider, len(providers))}
	for _, p := range providers {
		b.providers[p.Method()] = p
	}
	return b
}

// Login runs the provider for m. Provider errors are returned unchanged.
func (b *Bridge) Login(ctx context.Context, m Method) (*Session, error) {
	p, ok := b.providers[m]
	if !ok {
		return nil, fmt.Errorf("login method %q is not configured", m)
	}
	s, err := p.Login(ctx)
	if err != nil {
		observability.IncrementLogin(string(m), "failed")
		return nil, err
	}
	observability.IncrementLogin(string(m), "ok")
	return s, nil
}

func (b *Bridge) LoginWithFederatedIdentity(ctx context.Context) (*Session, error) {
	return b.Login(ctx, MethodFederated)
}

func (b *Bridge) LoginWithExtensionWallet(ctx context.Context) (*Session, error) {
	return b.Login(ctx, MethodExtension)
}

type logouter interface {
	Logout(ctx context.Context) error
}

// Logout ends the provider's own session when it keeps one. Wallets
// manage their sessions themselves, so for them this is a no-op.
func (b *Bridge) Logout(ctx context.Context, m Method) error {
	if lo, ok := b.providers[m].(logouter); ok {
		return lo.Logout(ctx)
	}
	return nil
}
