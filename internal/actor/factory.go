package actor

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/agent"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
	"github.com/ayo6706/twinvest-bridge/internal/identity"
	"github.com/ayo6706/twinvest-bridge/internal/observability"
)

// Factory builds HTTP-backed actors. It keeps no per-actor state, so
// repeated calls yield independent actors.
type Factory struct {
	logger     *zap.Logger
	httpClient *http.Client
}

func NewFactory(logger *zap.Logger, httpClient *http.Client) *Factory {
	if logger == nil {
		logger = zap.L()
	}
	return &Factory{logger: logger, httpClient: httpClient}
}

// Create resolves transport, builds an agent for id (anonymous when nil),
// bootstraps trust on local hosts and binds svc to it. A configuration
// error is returned before any request is made.
func (f *Factory) Create(ctx context.Context, transport config.Transport, svc *candid.Service, id identity.Identity) (*Actor, *agent.Agent, error) {
	ep, err := config.ResolveTransport(transport)
	if err != nil {
		return nil, nil, err
	}
	if id == nil {
		id = identity.Anonymous{}
	}
	a, err := agent.New(agent.Config{
		Host:       ep.Host,
		Identity:   id,
		HTTPClient: f.httpClient,
		Logger:     f.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	if ep.IsLocal() {
		if _, err := a.FetchRootKey(ctx); err != nil {
			f.logger.Warn("root key fetch failed; certified replies from the local replica will fail verification",
				zap.String("host", ep.Host), zap.Error(err))
			observability.IncrementRootKeyFetch("failed")
		} else {
			observability.IncrementRootKeyFetch("ok")
		}
	}

	return New(a, ep.Canister, svc), a, nil
}
