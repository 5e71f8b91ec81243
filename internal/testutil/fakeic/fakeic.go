// Package fakeic is an in-process replica for tests. It verifies request
// signatures, dispatches to per-method handlers and signs call results
// with its own BLS root key.
package fakeic

import (
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/go-chi/chi/v5"

	"github.com/ayo6706/twinvest-bridge/internal/agent"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/identity"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// Handler answers one method. Returning an *agent.RejectError rejects it.
type Handler func(sender principal.Principal, arg []byte) ([]byte, error)

type Replica struct {
	// RootKey is the DER-encoded public key certificates are signed under.
	RootKey []byte
	// Async makes calls answer 202 so clients have to poll read_state.
	Async bool
	// TamperReplies rewrites certified replies after signing them.
	TamperReplies bool
	// CertifiedAt overrides the /time of certificates when set.
	CertifiedAt time.Time

	secret *big.Int

	mu       sync.Mutex
	handlers map[string]Handler
	results  map[[32]byte]result
	senders  []principal.Principal

	statusHits atomic.Int64
	queries    atomic.Int64
	calls      atomic.Int64
	readStates atomic.Int64

	server *httptest.Server
}

type result struct {
	reply []byte
	err   *agent.RejectError
}

// Start serves a replica for the lifetime of t.
func Start(t testing.TB) *Replica {
	t.Helper()
	secret, pub := newKeyPair(t)
	r := &Replica{
		RootKey:  agent.EncodeBLSPublicKey(pub),
		secret:   secret,
		handlers: map[string]Handler{},
		results:  map[[32]byte]result{},
	}
	r.server = httptest.NewServer(r.routes())
	t.Cleanup(r.server.Close)
	return r
}

func (r *Replica) URL() string { return r.server.URL }

// Handle registers h for method.
func (r *Replica) Handle(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Requests is the number of HTTP requests the replica has served.
func (r *Replica) Requests() int64 {
	return r.statusHits.Load() + r.queries.Load() + r.calls.Load() + r.readStates.Load()
}

func (r *Replica) StatusRequests() int64 { return r.statusHits.Load() }
func (r *Replica) Queries() int64        { return r.queries.Load() }
func (r *Replica) Calls() int64          { return r.calls.Load() }
func (r *Replica) ReadStates() int64     { return r.readStates.Load() }

// Senders lists the verified sender of every query and call, in order.
func (r *Replica) Senders() []principal.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]principal.Principal(nil), r.senders...)
}

func (r *Replica) routes() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/api/v2/status", r.status)
	mux.Post("/api/v2/canister/{canister}/query", r.query)
	mux.Post("/api/v3/canister/{canister}/call", r.call)
	mux.Post("/api/v2/canister/{canister}/read_state", r.readState)
	return mux
}

func (r *Replica) status(w http.ResponseWriter, _ *http.Request) {
	r.statusHits.Add(1)
	writeCBOR(w, http.StatusOK, map[string]any{"root_key": r.RootKey})
}

func (r *Replica) query(w http.ResponseWriter, req *http.Request) {
	r.queries.Add(1)
	env, _, ok := r.envelope(w, req, agent.RequestQuery)
	if !ok {
		return
	}
	res := r.dispatch(env)
	if res.err != nil {
		writeCBOR(w, http.StatusOK, map[string]any{
			"status":         "rejected",
			"reject_code":    res.err.Code,
			"reject_message": res.err.Message,
			"error_code":     res.err.ErrorCode,
		})
		return
	}
	writeCBOR(w, http.StatusOK, map[string]any{
		"status": "replied",
		"reply":  map[string]any{"arg": res.reply},
	})
}

func (r *Replica) call(w http.ResponseWriter, req *http.Request) {
	r.calls.Add(1)
	env, reqID, ok := r.envelope(w, req, agent.RequestCall)
	if !ok {
		return
	}
	res := r.dispatch(env)
	r.mu.Lock()
	r.results[reqID] = res
	r.mu.Unlock()

	if r.Async {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	cert := r.Certify(statusTree(reqID, res))
	if r.TamperReplies && res.err == nil {
		res.reply = append([]byte("forged:"), res.reply...)
		forged := r.Certify(statusTree(reqID, res))
		forged.Signature = cert.Signature
		cert = forged
	}
	raw, err := agent.Marshal(cert)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeCBOR(w, http.StatusOK, map[string]any{"status": "replied", "certificate": raw})
}

func (r *Replica) readState(w http.ResponseWriter, req *http.Request) {
	r.readStates.Add(1)
	env, _, ok := r.envelope(w, req, agent.RequestReadState)
	if !ok {
		return
	}
	var tree any = agent.EmptyTree()
	for _, path := range env.Content.Paths {
		if len(path) != 2 || string(path[0]) != "request_status" || len(path[1]) != 32 {
			continue
		}
		var id [32]byte
		copy(id[:], path[1])
		r.mu.Lock()
		res, found := r.results[id]
		r.mu.Unlock()
		if found {
			tree = statusTree(id, res)
		}
	}
	cert, err := agent.Marshal(r.Certify(tree))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeCBOR(w, http.StatusOK, map[string]any{"certificate": cert})
}

func (r *Replica) envelope(w http.ResponseWriter, req *http.Request, kind string) (agent.Envelope, [32]byte, bool) {
	var env agent.Envelope
	body, err := io.ReadAll(req.Body)
	if err == nil {
		err = agent.Unmarshal(body, &env)
	}
	if err != nil {
		http.Error(w, "malformed envelope: "+err.Error(), http.StatusBadRequest)
		return env, [32]byte{}, false
	}
	if env.Content.RequestType != kind {
		http.Error(w, "unexpected request type "+env.Content.RequestType, http.StatusBadRequest)
		return env, [32]byte{}, false
	}
	reqID, err := env.Content.ID()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return env, reqID, false
	}
	if err := authenticate(env, reqID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return env, reqID, false
	}
	return env, reqID, true
}

func authenticate(env agent.Envelope, reqID [32]byte) error {
	sender, err := principal.FromBytes(env.Content.Sender)
	if err != nil {
		return err
	}
	if env.SenderPubKey == nil {
		if !sender.IsAnonymous() {
			return errors.New("unsigned request from non-anonymous sender")
		}
		return nil
	}
	if !sender.Equal(principal.SelfAuthenticating(env.SenderPubKey)) {
		return errors.New("sender does not match public key")
	}
	signer := env.SenderPubKey
	if len(env.SenderDelegation) > 0 {
		chain := identity.DelegationChain{PublicKey: env.SenderPubKey, Delegations: env.SenderDelegation}
		if err := chain.Verify(); err != nil {
			return err
		}
		signer = env.SenderDelegation[len(env.SenderDelegation)-1].Delegation.PubKey
	}
	msg := append(append([]byte(nil), identity.RequestDomain...), reqID[:]...)
	return identity.VerifyEd25519(signer, msg, env.SenderSig)
}

func (r *Replica) dispatch(env agent.Envelope) result {
	sender, _ := principal.FromBytes(env.Content.Sender)
	r.mu.Lock()
	h, ok := r.handlers[env.Content.MethodName]
	r.senders = append(r.senders, sender)
	r.mu.Unlock()
	if !ok {
		return result{err: &agent.RejectError{Code: 3, Message: "method " + env.Content.MethodName + " not found", ErrorCode: "IC0536"}}
	}
	reply, err := h(sender, env.Content.Arg)
	if err != nil {
		var rej *agent.RejectError
		if !errors.As(err, &rej) {
			rej = &agent.RejectError{Code: 5, Message: err.Error(), ErrorCode: "IC0503"}
		}
		return result{err: rej}
	}
	return result{reply: reply}
}

func statusTree(reqID [32]byte, res result) any {
	var status any
	if res.err != nil {
		status = agent.Fork(
			agent.Fork(
				agent.Labeled([]byte("reject_code"), agent.Leaf(candid.AppendUleb(nil, res.err.Code))),
				agent.Labeled([]byte("reject_message"), agent.Leaf([]byte(res.err.Message))),
			),
			agent.Labeled([]byte("status"), agent.Leaf([]byte("rejected"))),
		)
	} else {
		status = agent.Fork(
			agent.Labeled([]byte("reply"), agent.Leaf(res.reply)),
			agent.Labeled([]byte("status"), agent.Leaf([]byte("replied"))),
		)
	}
	return agent.Labeled([]byte("request_status"), agent.Labeled(reqID[:], status))
}

// Certify adds a /time leaf to tree and signs the result with the root key.
func (r *Replica) Certify(tree any) agent.Certificate {
	at := r.CertifiedAt
	if at.IsZero() {
		at = time.Now()
	}
	full := agent.Fork(tree, agent.Labeled([]byte("time"), agent.Leaf(candid.AppendUleb(nil, uint64(at.UnixNano())))))
	return r.Sign(agent.Certificate{Tree: full})
}

// Sign sets the signature of cert over its current tree.
func (r *Replica) Sign(cert agent.Certificate) agent.Certificate {
	root, err := cert.RootHash()
	if err != nil {
		panic(err)
	}
	h, err := bls12381.HashToG1(agent.StateRootMessage(root), agent.SignatureDST)
	if err != nil {
		panic(err)
	}
	var sig bls12381.G1Affine
	sig.ScalarMultiplication(&h, r.secret)
	b := sig.Bytes()
	cert.Signature = b[:]
	return cert
}

func newKeyPair(t testing.TB) (*big.Int, []byte) {
	t.Helper()
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		t.Fatalf("generate root key: %v", err)
	}
	secret := sk.BigInt(new(big.Int))
	_, _, _, g2 := bls12381.Generators()
	var pub bls12381.G2Affine
	pub.ScalarMultiplication(&g2, secret)
	b := pub.Bytes()
	return secret, b[:]
}

func writeCBOR(w http.ResponseWriter, status int, v any) {
	body, err := agent.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(status)
	_, _ = w.Write(append([]byte{0xd9, 0xd9, 0xf7}, body...))
}
