package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
	"github.com/ayo6706/twinvest-bridge/internal/identity"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
	"github.com/ayo6706/twinvest-bridge/internal/testutil/fakeic"
	"github.com/ayo6706/twinvest-bridge/internal/twinvest"
)

const canisterText = "ryjl3-tyaaa-aaaaa-aaaba-cai"

func fixed(tr config.Transport) func() config.Transport {
	return func() config.Transport { return tr }
}

// wallet is a scripted extension that counts every interaction.
type wallet struct {
	connected    bool
	connectedErr error
	approve      bool
	connectErr   error
	principal    string

	isConnectedCalls int
	connectCalls     int
	createCalls      int
	lastConnect      auth.ConnectRequest
}

func (w *wallet) IsConnected(context.Context) (bool, error) {
	w.isConnectedCalls++
	return w.connected, w.connectedErr
}

func (w *wallet) RequestConnect(_ context.Context, req auth.ConnectRequest) (bool, error) {
	w.connectCalls++
	w.lastConnect = req
	return w.approve, w.connectErr
}

func (w *wallet) CreateActor(_ context.Context, req auth.CreateActorRequest) (actor.Caller, error) {
	w.createCalls++
	return actor.New(nil, principal.MustDecode(req.CanisterID), req.Interface), nil
}

func (w *wallet) SessionPrincipal() (string, bool) {
	return w.principal, w.principal != ""
}

func (w *wallet) touched() int { return w.isConnectedCalls + w.connectCalls + w.createCalls }

func present(w *wallet) auth.Detector {
	return func(context.Context) (auth.Wallet, bool) { return w, true }
}

func absent(context.Context) (auth.Wallet, bool) { return nil, false }

// mockIdentity reports a fixed principal and never signs.
type mockIdentity struct{ sender principal.Principal }

func (m mockIdentity) Sender() principal.Principal              { return m.sender }
func (m mockIdentity) PublicKey() []byte                        { return nil }
func (m mockIdentity) Sign([]byte) ([]byte, error)              { return nil, nil }
func (m mockIdentity) Delegations() []identity.SignedDelegation { return nil }

type mockClient struct {
	authenticated bool
	loginErr      error
	logins        int
	id            identity.Identity
}

func (m *mockClient) IsAuthenticated() bool { return m.authenticated }

func (m *mockClient) Login(context.Context, string) error {
	m.logins++
	if m.loginErr != nil {
		return m.loginErr
	}
	m.authenticated = true
	return nil
}

func (m *mockClient) Identity() identity.Identity { return m.id }
func (m *mockClient) Expiration() time.Time       { return time.Time{} }
func (m *mockClient) Logout(context.Context) error {
	m.authenticated = false
	return nil
}

func TestMissingCanisterFailsBothPathsBeforeNetwork(t *testing.T) {
	replica := fakeic.Start(t)
	tr := config.Transport{Host: replica.URL()}
	client := &mockClient{id: mockIdentity{principal.Management}}
	w := &wallet{approve: true}
	bridge := auth.NewBridge(
		auth.NewFederatedProvider(client, actor.NewFactory(nil, nil), fixed(tr), "", twinvest.Interface),
		auth.NewExtensionProvider(present(w), fixed(tr), twinvest.Interface),
	)

	for _, login := range []func(context.Context) (*auth.Session, error){bridge.LoginWithFederatedIdentity, bridge.LoginWithExtensionWallet} {
		s, err := login(context.Background())
		assert.Nil(t, s)
		var cfgErr *config.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "TWINVEST_CANISTER_ID")
	}
	assert.Zero(t, replica.Requests())
	assert.Zero(t, client.logins)
	assert.Zero(t, w.touched())
}

func TestFederatedLoginWithMockIdentity(t *testing.T) {
	replica := fakeic.Start(t)
	client := &mockClient{id: mockIdentity{principal.Management}}
	p := auth.NewFederatedProvider(client, actor.NewFactory(nil, nil), fixed(config.Transport{Host: replica.URL(), CanisterID: canisterText}), "", twinvest.Interface)

	s, err := auth.NewBridge(p).LoginWithFederatedIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaaaa-aa", s.Principal)
	assert.Equal(t, auth.MethodFederated, s.Method)
	assert.Equal(t, 1, client.logins)
	assert.Len(t, s.Actor.Interface().Names(), 16)
	for _, name := range s.Actor.Interface().Names() {
		_, ok := s.Actor.Interface().Lookup(name)
		assert.True(t, ok, name)
	}
	assert.Equal(t, int64(1), replica.StatusRequests(), "local host bootstraps trust")
}

func TestFederatedLoginSkipsRedirectWhenAuthenticated(t *testing.T) {
	replica := fakeic.Start(t)
	client := &mockClient{authenticated: true, id: mockIdentity{principal.Management}}
	p := auth.NewFederatedProvider(client, actor.NewFactory(nil, nil), fixed(config.Transport{Host: replica.URL(), CanisterID: canisterText}), "", twinvest.Interface)

	_, err := p.Login(context.Background())
	require.NoError(t, err)
	assert.Zero(t, client.logins)
}

func TestFederatedRejectionPropagatesVerbatim(t *testing.T) {
	cause := &auth.AuthorizationError{Reason: "UserInterrupt"}
	client := &mockClient{loginErr: cause}
	p := auth.NewFederatedProvider(client, actor.NewFactory(nil, nil), fixed(config.Transport{CanisterID: canisterText}), "", twinvest.Interface)

	s, err := auth.NewBridge(p).LoginWithFederatedIdentity(context.Background())
	assert.Nil(t, s)
	assert.Same(t, cause, err)
	assert.ErrorIs(t, err, auth.ErrAuthenticationRejected)
	assert.Equal(t, 1, client.logins, "no retry")
}

func TestFederatedPrincipalIsStable(t *testing.T) {
	replica := fakeic.Start(t)
	root, err := identity.NewEd25519()
	require.NoError(t, err)
	client, err := auth.NewAuthClient(context.Background(), auth.AuthClientConfig{Authorizer: &stubAuthorizer{root: root}})
	require.NoError(t, err)
	p := auth.NewFederatedProvider(client, actor.NewFactory(nil, nil), fixed(config.Transport{Host: replica.URL(), CanisterID: canisterText}), "", twinvest.Interface)

	first, err := p.Login(context.Background())
	require.NoError(t, err)
	second, err := p.Login(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first.Principal)
	assert.Equal(t, first.Principal, second.Principal)
	assert.Equal(t, root.Sender().String(), first.Principal)
	_, err = principal.Decode(first.Principal)
	assert.NoError(t, err)
}

func TestFederatedCallsAreSignedByDelegation(t *testing.T) {
	replica := fakeic.Start(t)
	replica.Handle(twinvest.MethodDeposit, func(principal.Principal, []byte) ([]byte, error) {
		return candid.EncodeArgs(candid.Types(candid.Bool), []any{true})
	})
	root, err := identity.NewEd25519()
	require.NoError(t, err)
	client, err := auth.NewAuthClient(context.Background(), auth.AuthClientConfig{Authorizer: &stubAuthorizer{root: root}})
	require.NoError(t, err)
	p := auth.NewFederatedProvider(client, actor.NewFactory(nil, nil), fixed(config.Transport{Host: replica.URL(), CanisterID: canisterText}), "", twinvest.Interface)

	s, err := p.Login(context.Background())
	require.NoError(t, err)
	ok, err := twinvest.NewClient(s.Actor).Deposit(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, replica.Senders()[0].Equal(root.Sender()))
	assert.False(t, s.Expires.IsZero())
}

func TestExtensionAbsent(t *testing.T) {
	w := &wallet{}
	detected := 0
	detect := func(ctx context.Context) (auth.Wallet, bool) {
		detected++
		return absent(ctx)
	}
	p := auth.NewExtensionProvider(detect, fixed(config.Transport{Host: "http://localhost:4943", CanisterID: canisterText}), twinvest.Interface)
	bridge := auth.NewBridge(p)

	for i := 0; i < 2; i++ {
		s, err := bridge.LoginWithExtensionWallet(context.Background())
		assert.Nil(t, s)
		assert.ErrorIs(t, err, auth.ErrProviderUnavailable)
		assert.Contains(t, err.Error(), "wallet not found")
	}
	assert.Equal(t, 2, detected, "detected on every attempt")
	assert.Zero(t, w.touched())
}

func TestExtensionConnectDeclined(t *testing.T) {
	for name, w := range map[string]*wallet{
		"declined": {approve: false},
		"errored":  {approve: true, connectErr: errors.New("popup closed")},
	} {
		t.Run(name, func(t *testing.T) {
			p := auth.NewExtensionProvider(present(w), fixed(config.Transport{CanisterID: canisterText}), twinvest.Interface)
			s, err := p.Login(context.Background())
			assert.Nil(t, s)
			assert.ErrorIs(t, err, auth.ErrConnectionRejected)
			assert.ErrorIs(t, err, auth.ErrAuthenticationRejected)
			assert.Zero(t, w.createCalls)
		})
	}
}

func TestExtensionConnectScopedToCanister(t *testing.T) {
	w := &wallet{connectedErr: errors.New("locked"), approve: true, principal: "2vxsx-fae"}
	p := auth.NewExtensionProvider(present(w), fixed(config.Transport{CanisterID: canisterText}), twinvest.Interface)

	s, err := p.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, w.connectCalls, "status query failure means not connected")
	assert.Equal(t, []string{canisterText}, w.lastConnect.Whitelist)
	assert.Equal(t, config.DefaultHost, w.lastConnect.Host)
	assert.Equal(t, "2vxsx-fae", s.Principal)
	assert.Equal(t, auth.MethodExtension, s.Method)
	assert.Len(t, s.Actor.Interface().Names(), 16)
}

func TestExtensionPrincipalIsOptional(t *testing.T) {
	w := &wallet{connected: true}
	p := auth.NewExtensionProvider(present(w), fixed(config.Transport{CanisterID: canisterText}), twinvest.Interface)

	s, err := p.Login(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Principal)
	assert.Zero(t, w.connectCalls)
	assert.Equal(t, 1, w.createCalls)
}

func TestBridgeUnknownMethodAndLogout(t *testing.T) {
	client := &mockClient{authenticated: true}
	bridge := auth.NewBridge(auth.NewFederatedProvider(client, actor.NewFactory(nil, nil), fixed(config.Transport{}), "", twinvest.Interface))

	_, err := bridge.Login(context.Background(), auth.MethodExtension)
	assert.Error(t, err)

	require.NoError(t, bridge.Logout(context.Background(), auth.MethodFederated))
	assert.False(t, client.authenticated)
	assert.NoError(t, bridge.Logout(context.Background(), auth.MethodExtension))

	m, err := auth.ParseMethod("extension")
	require.NoError(t, err)
	assert.Equal(t, auth.MethodExtension, m)
	_, err = auth.ParseMethod("sms")
	assert.Error(t, err)
}
