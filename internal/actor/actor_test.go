package actor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/agent"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
	"github.com/ayo6706/twinvest-bridge/internal/identity"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
	"github.com/ayo6706/twinvest-bridge/internal/testutil/fakeic"
)

const canisterText = "ryjl3-tyaaa-aaaaa-aaaba-cai"

var counterService = candid.NewService(
	candid.QueryMethod("read", candid.Types(candid.Text), candid.Types(candid.Nat)),
	candid.UpdateMethod("bump", candid.Types(candid.Nat), candid.Types(candid.Bool)),
)

// recorder is an in-memory transport.
type recorder struct {
	queries, calls []string
	reply          []byte
	err            error
}

func (r *recorder) Query(_ context.Context, _ principal.Principal, method string, _ []byte) ([]byte, error) {
	r.queries = append(r.queries, method)
	return r.reply, r.err
}

func (r *recorder) Call(_ context.Context, _ principal.Principal, method string, _ []byte) ([]byte, error) {
	r.calls = append(r.calls, method)
	return r.reply, r.err
}

func TestInvokeRoutesByMutability(t *testing.T) {
	reply, err := candid.EncodeArgs(candid.Types(candid.Nat), []any{7})
	require.NoError(t, err)
	tr := &recorder{reply: reply}
	a := actor.New(tr, principal.MustDecode(canisterText), counterService)

	out, err := a.Invoke(context.Background(), "read", "key")
	require.NoError(t, err)
	n, err := candid.NatValue(out[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
	assert.Equal(t, []string{"read"}, tr.queries)
	assert.Empty(t, tr.calls)

	_, err = a.Invoke(context.Background(), "bump", 1)
	assert.ErrorIs(t, err, candid.ErrDecode)
	assert.Equal(t, []string{"bump"}, tr.calls)
}

func TestInvokeErrors(t *testing.T) {
	boom := errors.New("boom")
	tr := &recorder{err: boom}
	a := actor.New(tr, principal.MustDecode(canisterText), counterService)

	_, err := a.Invoke(context.Background(), "nope")
	assert.ErrorIs(t, err, actor.ErrUnknownMethod)

	_, err = a.Invoke(context.Background(), "read")
	assert.Error(t, err)
	assert.Empty(t, tr.queries)

	_, err = a.Invoke(context.Background(), "read", 5)
	assert.Error(t, err)
	assert.Empty(t, tr.queries)

	_, err = a.Invoke(context.Background(), "read", "x")
	assert.Same(t, boom, err)
}

func TestFactoryConfigErrorBeforeNetwork(t *testing.T) {
	replica := fakeic.Start(t)
	f := actor.NewFactory(nil, nil)

	_, _, err := f.Create(context.Background(), config.Transport{Host: replica.URL()}, counterService, nil)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.CanisterIDVar, cfgErr.Variable)
	assert.Zero(t, replica.Requests())
}

func TestFactoryBootstrapsTrustOnLocalHost(t *testing.T) {
	replica := fakeic.Start(t)
	f := actor.NewFactory(nil, nil)

	_, ag, err := f.Create(context.Background(), config.Transport{Host: replica.URL(), CanisterID: canisterText}, counterService, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), replica.StatusRequests())
	assert.Equal(t, replica.RootKey, ag.RootKey())
	assert.True(t, ag.Sender().IsAnonymous())
}

func TestFactorySwallowsBootstrapFailure(t *testing.T) {
	f := actor.NewFactory(nil, nil)
	a, ag, err := f.Create(context.Background(), config.Transport{Host: "http://127.0.0.1:1", CanisterID: canisterText}, counterService, nil)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, agent.MainnetRootKey(), ag.RootKey())
}

func TestFactorySkipsBootstrapOnRemoteHost(t *testing.T) {
	f := actor.NewFactory(nil, nil)
	_, ag, err := f.Create(context.Background(), config.Transport{Host: "https://icp-api.invalid", CanisterID: canisterText}, counterService, nil)
	require.NoError(t, err)
	assert.Equal(t, agent.MainnetRootKey(), ag.RootKey())
}

func TestFactoryIsIdempotent(t *testing.T) {
	replica := fakeic.Start(t)
	replica.Handle("bump", func(principal.Principal, []byte) ([]byte, error) {
		return candid.EncodeArgs(candid.Types(candid.Bool), []any{true})
	})
	id, err := identity.NewEd25519()
	require.NoError(t, err)
	f := actor.NewFactory(nil, nil)
	tr := config.Transport{Host: replica.URL(), CanisterID: canisterText}

	first, _, err := f.Create(context.Background(), tr, counterService, id)
	require.NoError(t, err)
	second, _, err := f.Create(context.Background(), tr, counterService, id)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	a, err := first.Encode("bump", 42)
	require.NoError(t, err)
	b, err := second.Encode("bump", 42)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, first.CanisterID().Equal(second.CanisterID()))

	out, err := second.Invoke(context.Background(), "bump", 42)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, out)
	assert.True(t, replica.Senders()[0].Equal(id.Sender()))
}
