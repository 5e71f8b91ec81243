package auth

import (
	"context"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
	"github.com/ayo6706/twinvest-bridge/internal/identity"
)

// SessionClient is the persisted federation client. *AuthClient is the
// production implementation.
type SessionClient interface {
	IsAuthenticated() bool
	Login(ctx context.Context, identityProvider string) error
	Identity() identity.Identity
	Expiration() time.Time
	Logout(ctx context.Context) error
}

// FederatedProvider logs in through the identity federation and builds
// the actor with the Factory.
type FederatedProvider struct {
	client           SessionClient
	factory          *actor.Factory
	transport        func() config.Transport
	identityProvider string
	svc              *candid.Service
}

// NewFederatedProvider reads transport through the given function on
// every login so the environment is consulted at call time.
func NewFederatedProvider(client SessionClient, factory *actor.Factory, transport func() config.Transport, identityProvider string, svc *candid.Service) *FederatedProvider {
	if identityProvider == "" {
		identityProvider = config.DefaultIdentityProvider
	}
	return &FederatedProvider{
		client:           client,
		factory:          factory,
		transport:        transport,
		identityProvider: identityProvider,
		svc:              svc,
	}
}

func (p *FederatedProvider) Method() Method { return MethodFederated }

func (p *FederatedProvider) Login(ctx context.Context) (*Session, error) {
	tr := p.transport()
	if _, err := config.ResolveTransport(tr); err != nil {
		return nil, err
	}
	if !p.client.IsAuthenticated() {
		if err := p.client.Login(ctx, p.identityProvider); err != nil {
			return nil, err
		}
	}
	id := p.client.Identity()
	a, _, err := p.factory.Create(ctx, tr, p.svc, id)
	if err != nil {
		return nil, err
	}
	return &Session{
		Actor:     a,
		Principal: id.Sender().String(),
		Method:    MethodFederated,
		Expires:   p.client.Expiration(),
	}, nil
}

// Logout forgets the stored delegation.
func (p *FederatedProvider) Logout(ctx context.Context) error {
	return p.client.Logout(ctx)
}
