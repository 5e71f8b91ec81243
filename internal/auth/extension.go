package auth

import (
	"context"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
)

type ConnectRequest struct {
	Whitelist []string `json:"whitelist"`
	Host      string   `json:"host,omitempty"`
}

type CreateActorRequest struct {
	CanisterID string
	Interface  *candid.Service
}

// Wallet is the contract an extension wallet exposes.
type Wallet interface {
	IsConnected(ctx context.Context) (bool, error)
	RequestConnect(ctx context.Context, req ConnectRequest) (bool, error)
	// CreateActor returns a proxy that runs over the wallet's own
	// transport and session.
	CreateActor(ctx context.Context, req CreateActorRequest) (actor.Caller, error)
	// SessionPrincipal is the wallet's current principal, if it reports one.
	SessionPrincipal() (string, bool)
}

// Detector looks for a wallet. It is called on every login attempt.
type Detector func(ctx context.Context) (Wallet, bool)

// ExtensionProvider logs in through a wallet extension. The actor comes
// from the wallet, not from the Factory, so no trust bootstrap runs.
type ExtensionProvider struct {
	detect    Detector
	transport func() config.Transport
	svc       *candid.Service
}

func NewExtensionProvider(detect Detector, transport func() config.Transport, svc *candid.Service) *ExtensionProvider {
	return &ExtensionProvider{detect: detect, transport: transport, svc: svc}
}

func (p *ExtensionProvider) Method() Method { return MethodExtension }

func (p *ExtensionProvider) Login(ctx context.Context) (*Session, error) {
	wallet, ok := p.detect(ctx)
	if !ok || wallet == nil {
		return nil, ErrProviderUnavailable
	}
	ep, err := config.ResolveTransport(p.transport())
	if err != nil {
		return nil, err
	}
	canisterID := ep.Canister.String()

	connected, err := wallet.IsConnected(ctx)
	if err != nil {
		connected = false
	}
	if !connected {
		approved, err := wallet.RequestConnect(ctx, ConnectRequest{Whitelist: []string{canisterID}, Host: ep.Host})
		if err != nil || !approved {
			return nil, ErrConnectionRejected
		}
	}

	a, err := wallet.CreateActor(ctx, CreateActorRequest{CanisterID: canisterID, Interface: p.svc})
	if err != nil {
		return nil, err
	}
	s := &Session{Actor: a, Method: MethodExtension}
	if principal, ok := wallet.SessionPrincipal(); ok {
		s.Principal = principal
	}
	return s, nil
}
