// Package agent speaks the replica HTTP interface: it signs envelopes,
// submits queries and calls, and reads back certified call results.
package agent

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/identity"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

const (
	defaultIngressExpiry = 4 * time.Minute
	defaultPollInterval  = 250 * time.Millisecond
	maxPollInterval      = 2 * time.Second
	maxResponseBytes     = 4 << 20
)

var ErrCallDone = errors.New("request status is done; the reply is no longer available")

// RejectError is a canister or replica rejection.
type RejectError struct {
	Code      uint64
	Message   string
	ErrorCode string
}

func (e *RejectError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("call rejected (code %d, %s): %s", e.Code, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("call rejected (code %d): %s", e.Code, e.Message)
}

// HTTPError is an unexpected status from the replica.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("replica returned %d: %s", e.Status, e.Body)
}

type Config struct {
	Host     string
	Identity identity.Identity
	// RootKey is the DER-encoded key certificates must chain up to.
	// Defaults to the mainnet key; FetchRootKey replaces it.
	RootKey       []byte
	HTTPClient    *http.Client
	IngressExpiry time.Duration
	PollInterval  time.Duration
	Logger        *zap.Logger
}

// Agent sends requests to one replica host on behalf of one identity.
type Agent struct {
	host          *url.URL
	id            identity.Identity
	client        *http.Client
	ingressExpiry time.Duration
	pollInterval  time.Duration
	logger        *zap.Logger

	mu      sync.RWMutex
	rootKey []byte
}

// New validates the host and builds an agent. A nil identity is anonymous.
func New(cfg Config) (*Agent, error) {
	u, err := url.Parse(strings.TrimRight(cfg.Host, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse host: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("host %q must be an http or https URL", cfg.Host)
	}
	a := &Agent{
		host:          u,
		id:            cfg.Identity,
		client:        cfg.HTTPClient,
		ingressExpiry: cfg.IngressExpiry,
		pollInterval:  cfg.PollInterval,
		logger:        cfg.Logger,
		rootKey:       append([]byte(nil), cfg.RootKey...),
	}
	if len(a.rootKey) == 0 {
		a.rootKey = MainnetRootKey()
	}
	if a.id == nil {
		a.id = identity.Anonymous{}
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 30 * time.Second}
	}
	if a.ingressExpiry <= 0 {
		a.ingressExpiry = defaultIngressExpiry
	}
	if a.pollInterval <= 0 {
		a.pollInterval = defaultPollInterval
	}
	if a.logger == nil {
		a.logger = zap.L()
	}
	return a, nil
}

func (a *Agent) Host() string { return a.host.String() }

func (a *Agent) Sender() principal.Principal { return a.id.Sender() }

// RootKey returns the key certificates are verified against.
func (a *Agent) RootKey() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]byte(nil), a.rootKey...)
}

// FetchRootKey trusts the root key reported by the host. Only development
// replicas should be trusted this way.
func (a *Agent) FetchRootKey(ctx context.Context) ([]byte, error) {
	body, status, err := a.do(ctx, http.MethodGet, "/api/v2/status", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &HTTPError{Status: status, Body: string(body)}
	}
	var st statusResponse
	if err := Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if len(st.RootKey) == 0 {
		return nil, errors.New("status response has no root key")
	}
	a.mu.Lock()
	a.rootKey = st.RootKey
	a.mu.Unlock()
	return append([]byte(nil), st.RootKey...), nil
}

// Query runs a read-only method and returns the encoded reply.
func (a *Agent) Query(ctx context.Context, canister principal.Principal, method string, arg []byte) ([]byte, error) {
	content, err := a.content(RequestQuery, canister, method, arg)
	if err != nil {
		return nil, err
	}
	env, _, err := Sign(a.id, content)
	if err != nil {
		return nil, err
	}
	body, status, err := a.post(ctx, "/api/v2/canister/"+canister.String()+"/query", env)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &HTTPError{Status: status, Body: string(body)}
	}
	var resp queryResponse
	if err := Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	switch resp.Status {
	case "replied":
		if resp.Reply == nil {
			return nil, errors.New("query reply has no arg")
		}
		return resp.Reply.Arg, nil
	case "rejected":
		return nil, &RejectError{Code: resp.RejectCode, Message: resp.RejectMessage, ErrorCode: resp.ErrorCode}
	}
	return nil, fmt.Errorf("unexpected query status %q", resp.Status)
}

// Call submits a state-changing method and waits for its certified reply.
func (a *Agent) Call(ctx context.Context, canister principal.Principal, method string, arg []byte) ([]byte, error) {
	content, err := a.content(RequestCall, canister, method, arg)
	if err != nil {
		return nil, err
	}
	env, reqID, err := Sign(a.id, content)
	if err != nil {
		return nil, err
	}
	body, status, err := a.post(ctx, "/api/v3/canister/"+canister.String()+"/call", env)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		var resp callResponse
		if err := Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode call response: %w", err)
		}
		switch resp.Status {
		case "replied":
			cert, err := a.certificate(resp.Certificate, canister)
			if err != nil {
				return nil, err
			}
			out, done, err := requestResult(cert, reqID)
			if done {
				return out, err
			}
		case "non_replicated_rejection":
			return nil, &RejectError{Code: resp.RejectCode, Message: resp.RejectMessage, ErrorCode: resp.ErrorCode}
		default:
			return nil, fmt.Errorf("unexpected call status %q", resp.Status)
		}
	case http.StatusAccepted:
	default:
		return nil, &HTTPError{Status: status, Body: string(body)}
	}

	a.logger.Debug("polling request status", zap.String("method", method), zap.String("canister", canister.String()))
	return a.poll(ctx, canister, reqID)
}

func (a *Agent) poll(ctx context.Context, canister principal.Principal, reqID [32]byte) ([]byte, error) {
	wait := a.pollInterval
	for {
		cert, err := a.readState(ctx, canister, [][]byte{[]byte("request_status"), reqID[:]})
		if err != nil {
			return nil, err
		}
		out, done, err := requestResult(cert, reqID)
		if done {
			return out, err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, maxPollInterval)
	}
}

func (a *Agent) readState(ctx context.Context, canister principal.Principal, paths ...[][]byte) (*Certificate, error) {
	content, err := a.content(RequestReadState, canister, "", nil)
	if err != nil {
		return nil, err
	}
	content.CanisterID = nil
	content.Paths = paths
	env, _, err := Sign(a.id, content)
	if err != nil {
		return nil, err
	}
	body, status, err := a.post(ctx, "/api/v2/canister/"+canister.String()+"/read_state", env)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &HTTPError{Status: status, Body: string(body)}
	}
	var resp readStateResponse
	if err := Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode read_state response: %w", err)
	}
	return a.certificate(resp.Certificate, canister)
}

// certificate parses raw and checks it is signed under the agent's root key
// and fresh.
func (a *Agent) certificate(raw []byte, canister principal.Principal) (*Certificate, error) {
	cert, err := ParseCertificate(raw)
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	key := a.rootKey
	a.mu.RUnlock()
	if err := Verify(cert, canister, key); err != nil {
		return nil, err
	}
	if err := CheckFreshness(cert, time.Now()); err != nil {
		return nil, err
	}
	return cert, nil
}

// requestResult interprets the request status subtree of cert. done is
// false while the request is still in flight.
func requestResult(cert *Certificate, reqID [32]byte) (out []byte, done bool, err error) {
	prefix := [][]byte{[]byte("request_status"), reqID[:]}
	at := func(label string) ([]byte, bool) {
		return cert.Lookup(append(append([][]byte(nil), prefix...), []byte(label))...)
	}
	status, ok := at("status")
	if !ok {
		return nil, false, nil
	}
	switch string(status) {
	case "replied":
		reply, ok := at("reply")
		if !ok {
			return nil, true, errors.New("certificate has no reply")
		}
		return reply, true, nil
	case "rejected":
		rej := &RejectError{}
		if raw, ok := at("reject_code"); ok {
			if code, err := candid.ReadUleb(raw); err == nil {
				rej.Code = code
			}
		}
		if msg, ok := at("reject_message"); ok {
			rej.Message = string(msg)
		}
		if code, ok := at("error_code"); ok {
			rej.ErrorCode = string(code)
		}
		return nil, true, rej
	case "done":
		return nil, true, ErrCallDone
	}
	return nil, false, nil
}

func (a *Agent) content(kind string, canister principal.Principal, method string, arg []byte) (RequestContent, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return RequestContent{}, fmt.Errorf("nonce: %w", err)
	}
	return RequestContent{
		RequestType:   kind,
		Sender:        a.id.Sender().Bytes(),
		IngressExpiry: uint64(time.Now().Add(a.ingressExpiry).UnixNano()),
		Nonce:         nonce,
		CanisterID:    canister.Bytes(),
		MethodName:    method,
		Arg:           arg,
	}, nil
}

func (a *Agent) post(ctx context.Context, path string, env Envelope) ([]byte, int, error) {
	payload, err := Marshal(env)
	if err != nil {
		return nil, 0, fmt.Errorf("encode envelope: %w", err)
	}
	return a.do(ctx, http.MethodPost, path, payload)
}

func (a *Agent) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.host.String()+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/cbor")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
