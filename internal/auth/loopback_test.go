package auth_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/identity"
)

func authorizeParams(t *testing.T, loginURL string) url.Values {
	t.Helper()
	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	frag := u.EscapedFragment()
	require.True(t, strings.HasPrefix(frag, "authorize?"), frag)
	params, err := url.ParseQuery(strings.TrimPrefix(frag, "authorize?"))
	require.NoError(t, err)
	return params
}

func postCallback(t *testing.T, redirect string, payload any) int {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(redirect, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoopbackAuthorizerDelivers(t *testing.T) {
	root, err := identity.NewEd25519()
	require.NoError(t, err)
	session, err := identity.NewEd25519()
	require.NoError(t, err)

	var forged int
	open := func(_ context.Context, loginURL string) error {
		params := authorizeParams(t, loginURL)
		assert.True(t, strings.HasPrefix(loginURL, "https://identity.example/"))
		assert.Equal(t, hex.EncodeToString(session.PublicKey()), params.Get("sessionPublicKey"))

		pub, err := hex.DecodeString(params.Get("sessionPublicKey"))
		require.NoError(t, err)
		sd, err := identity.SignDelegation(root, pub, time.Now().Add(time.Hour))
		require.NoError(t, err)
		chain := identity.DelegationChain{PublicKey: root.PublicKey(), Delegations: []identity.SignedDelegation{sd}}

		forged = postCallback(t, params.Get("redirect_uri"), map[string]any{"state": "forged", "delegation": chain})
		assert.Equal(t, http.StatusNoContent, postCallback(t, params.Get("redirect_uri"), map[string]any{"state": params.Get("state"), "delegation": chain}))
		return nil
	}

	a := auth.NewLoopbackAuthorizer("", open, 5*time.Second, nil)
	chain, err := a.Authorize(context.Background(), auth.AuthorizeRequest{
		IdentityProvider: "https://identity.example/",
		SessionPublicKey: session.PublicKey(),
		MaxTimeToLive:    time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, forged)
	assert.NoError(t, chain.Verify())
	_, err = identity.NewDelegated(session, chain)
	assert.NoError(t, err)
}

func TestLoopbackAuthorizerCancelled(t *testing.T) {
	open := func(_ context.Context, loginURL string) error {
		params := authorizeParams(t, loginURL)
		resp, err := http.Get(params.Get("redirect_uri") + "?state=" + url.QueryEscape(params.Get("state")))
		require.NoError(t, err)
		resp.Body.Close()
		return nil
	}
	a := auth.NewLoopbackAuthorizer("127.0.0.1:0", open, 5*time.Second, nil)
	_, err := a.Authorize(context.Background(), auth.AuthorizeRequest{IdentityProvider: "https://identity.ic0.app", SessionPublicKey: []byte{1}})

	var authErr *auth.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "UserInterrupt", authErr.Reason)
	assert.ErrorIs(t, err, auth.ErrAuthenticationRejected)
}

func TestLoopbackAuthorizerProviderError(t *testing.T) {
	open := func(_ context.Context, loginURL string) error {
		params := authorizeParams(t, loginURL)
		postCallback(t, params.Get("redirect_uri"), map[string]any{"state": params.Get("state"), "error": "delegation refused"})
		return nil
	}
	a := auth.NewLoopbackAuthorizer("", open, 5*time.Second, nil)
	_, err := a.Authorize(context.Background(), auth.AuthorizeRequest{IdentityProvider: "https://identity.ic0.app", SessionPublicKey: []byte{1}})
	assert.EqualError(t, err, "identity provider refused authorization: delegation refused")
}

func TestLoopbackAuthorizerTimesOut(t *testing.T) {
	a := auth.NewLoopbackAuthorizer("", func(context.Context, string) error { return nil }, 50*time.Millisecond, nil)
	_, err := a.Authorize(context.Background(), auth.AuthorizeRequest{IdentityProvider: "https://identity.ic0.app", SessionPublicKey: []byte{1}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopbackAuthorizerBadProviderURL(t *testing.T) {
	a := auth.NewLoopbackAuthorizer("", nil, time.Second, nil)
	_, err := a.Authorize(context.Background(), auth.AuthorizeRequest{IdentityProvider: "not a url", SessionPublicKey: []byte{1}})
	assert.Error(t, err)
}
