package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo6706/twinvest-bridge/internal/agent"
	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
	"github.com/ayo6706/twinvest-bridge/internal/domain"
	"github.com/ayo6706/twinvest-bridge/internal/twinvest"
)

// companionServer is a scripted wallet companion.
type companionServer struct {
	mu        sync.Mutex
	connected bool
	approve   bool
	principal string
	connects  []auth.ConnectRequest
	forwarded []string
}

func (c *companionServer) start(t *testing.T) string {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		st := map[string]any{"connected": c.connected}
		if c.connected {
			st["principal"] = c.principal
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	r.Post("/connect", func(w http.ResponseWriter, r *http.Request) {
		var req auth.ConnectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.connects = append(c.connects, req)
		c.connected = c.approve
		out := map[string]any{"approved": c.approve}
		if c.approve {
			out["principal"] = c.principal
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	r.Post("/canister/{id}/{kind}/{method}", func(w http.ResponseWriter, r *http.Request) {
		method := chi.URLParam(r, "method")
		c.mu.Lock()
		c.forwarded = append(c.forwarded, chi.URLParam(r, "kind")+":"+method)
		c.mu.Unlock()
		arg, _ := io.ReadAll(r.Body)
		if !bytes.HasPrefix(arg, []byte("DIDL")) {
			http.Error(w, "not candid", http.StatusBadRequest)
			return
		}
		switch method {
		case twinvest.MethodGetMyRole:
			out, _ := candid.EncodeArgs(candid.Types(candid.Opt(twinvest.Role)), []any{candid.Some(domain.RoleIssuer.Variant())})
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(out)
		case twinvest.MethodDeposit:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]any{"reject_code": 4, "reject_message": "deposits paused"})
		default:
			http.Error(w, "boom", http.StatusBadGateway)
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCompanionDetectorAbsent(t *testing.T) {
	_, ok := auth.CompanionDetector("", nil)(context.Background())
	assert.False(t, ok)
	_, ok = auth.CompanionDetector("http://127.0.0.1:1", nil)(context.Background())
	assert.False(t, ok)
}

func TestCompanionLoginAndForward(t *testing.T) {
	srv := &companionServer{approve: true, principal: "2vxsx-fae"}
	base := srv.start(t)
	p := auth.NewExtensionProvider(auth.CompanionDetector(base, nil), fixed(config.Transport{CanisterID: canisterText}), twinvest.Interface)

	s, err := auth.NewBridge(p).LoginWithExtensionWallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2vxsx-fae", s.Principal)
	require.Len(t, srv.connects, 1)
	assert.Equal(t, []string{canisterText}, srv.connects[0].Whitelist)

	client := twinvest.NewClient(s.Actor)
	role, ok, err := client.GetMyRole(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.RoleIssuer, role)

	_, err = client.Deposit(context.Background(), 10)
	var rej *agent.RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, uint64(4), rej.Code)
	assert.Equal(t, "deposits paused", rej.Message)

	_, err = client.GetDashboardMetrics(context.Background())
	var httpErr *agent.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)

	assert.Equal(t, []string{
		"query:" + twinvest.MethodGetMyRole,
		"call:" + twinvest.MethodDeposit,
		"query:" + twinvest.MethodGetDashboardMetrics,
	}, srv.forwarded)
}

func TestCompanionAlreadyConnectedSkipsConnect(t *testing.T) {
	srv := &companionServer{connected: true, principal: "aaaaa-aa"}
	base := srv.start(t)
	p := auth.NewExtensionProvider(auth.CompanionDetector(base, nil), fixed(config.Transport{CanisterID: canisterText}), twinvest.Interface)

	s, err := p.Login(context.Background())
	require.NoError(t, err)
	assert.Empty(t, srv.connects)
	assert.Equal(t, "aaaaa-aa", s.Principal)
}

func TestCompanionConnectDeclined(t *testing.T) {
	srv := &companionServer{approve: false}
	base := srv.start(t)
	p := auth.NewExtensionProvider(auth.CompanionDetector(base, nil), fixed(config.Transport{CanisterID: canisterText}), twinvest.Interface)

	_, err := p.Login(context.Background())
	assert.ErrorIs(t, err, auth.ErrConnectionRejected)
}
