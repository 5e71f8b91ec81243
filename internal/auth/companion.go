package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/agent"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// Companion talks to a wallet companion process over HTTP. The companion
// holds the wallet's keys and signs canister calls on its behalf; this
// client only forwards encoded arguments.
type Companion struct {
	base   string
	client *http.Client

	mu        sync.Mutex
	principal string
}

type companionStatus struct {
	Connected bool   `json:"connected"`
	Principal string `json:"principal,omitempty"`
}

type companionReject struct {
	Code    uint64 `json:"reject_code"`
	Message string `json:"reject_message"`
}

func NewCompanion(baseURL string, client *http.Client) *Companion {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Companion{base: strings.TrimRight(baseURL, "/"), client: client}
}

// CompanionDetector checks baseURL fresh on each call. An empty URL or an
// unreachable companion means no wallet is present.
func CompanionDetector(baseURL string, client *http.Client) Detector {
	return func(ctx context.Context) (Wallet, bool) {
		if strings.TrimSpace(baseURL) == "" {
			return nil, false
		}
		c := NewCompanion(baseURL, client)
		if _, err := c.status(ctx); err != nil {
			return nil, false
		}
		return c, true
	}
}

func (c *Companion) status(ctx context.Context) (companionStatus, error) {
	var st companionStatus
	resp, err := c.do(ctx, http.MethodGet, "/status", "", nil)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("wallet status returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode wallet status: %w", err)
	}
	c.mu.Lock()
	c.principal = st.Principal
	c.mu.Unlock()
	return st, nil
}

func (c *Companion) IsConnected(ctx context.Context) (bool, error) {
	st, err := c.status(ctx)
	return st.Connected, err
}

func (c *Companion) RequestConnect(ctx context.Context, req ConnectRequest) (bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return false, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/connect", "application/json", body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("wallet connect returned %d", resp.StatusCode)
	}
	var out struct {
		Approved  bool   `json:"approved"`
		Principal string `json:"principal,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode wallet connect: %w", err)
	}
	if out.Principal != "" {
		c.mu.Lock()
		c.principal = out.Principal
		c.mu.Unlock()
	}
	return out.Approved, nil
}

func (c *Companion) CreateActor(_ context.Context, req CreateActorRequest) (actor.Caller, error) {
	canister, err := principal.Decode(req.CanisterID)
	if err != nil {
		return nil, fmt.Errorf("canister id: %w", err)
	}
	return actor.New(companionTransport{c}, canister, req.Interface), nil
}

func (c *Companion) SessionPrincipal() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal, c.principal != ""
}

func (c *Companion) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.client.Do(req)
}

// companionTransport forwards encoded calls to the companion.
type companionTransport struct{ c *Companion }

func (t companionTransport) Query(ctx context.Context, canister principal.Principal, method string, arg []byte) ([]byte, error) {
	return t.forward(ctx, "query", canister, method, arg)
}

func (t companionTransport) Call(ctx context.Context, canister principal.Principal, method string, arg []byte) ([]byte, error) {
	return t.forward(ctx, "call", canister, method, arg)
}

func (t companionTransport) forward(ctx context.Context, kind string, canister principal.Principal, method string, arg []byte) ([]byte, error) {
	resp, err := t.c.do(ctx, http.MethodPost, "/canister/"+canister.String()+"/"+kind+"/"+method, "application/octet-stream", arg)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var rej companionReject
		if err := json.Unmarshal(body, &rej); err == nil {
			return nil, &agent.RejectError{Code: rej.Code, Message: rej.Message}
		}
	}
	return nil, &agent.HTTPError{Status: resp.StatusCode, Body: string(body)}
}
