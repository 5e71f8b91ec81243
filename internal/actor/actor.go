// Package actor binds a service descriptor to a transport, producing a
// proxy that encodes calls by name and decodes their replies.
package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/agent"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/observability"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

var ErrUnknownMethod = errors.New("method is not part of the service interface")

// Transport carries encoded arguments to a canister and returns the
// encoded reply.
type Transport interface {
	Query(ctx context.Context, canister principal.Principal, method string, arg []byte) ([]byte, error)
	Call(ctx context.Context, canister principal.Principal, method string, arg []byte) ([]byte, error)
}

// Caller is the handle consumers issue calls through, whichever provider
// produced it.
type Caller interface {
	Invoke(ctx context.Context, method string, args ...any) ([]any, error)
	Interface() *candid.Service
}

// Actor is a proxy for one canister. It holds no mutable state.
type Actor struct {
	transport Transport
	canister  principal.Principal
	svc       *candid.Service
}

func New(transport Transport, canister principal.Principal, svc *candid.Service) *Actor {
	return &Actor{transport: transport, canister: canister, svc: svc}
}

func (a *Actor) CanisterID() principal.Principal { return a.canister }

func (a *Actor) Interface() *candid.Service { return a.svc }

// Encode returns the wire arguments Invoke would send for method.
func (a *Actor) Encode(method string, args ...any) ([]byte, error) {
	fn, ok := a.svc.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if len(args) != len(fn.Args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", method, len(fn.Args), len(args))
	}
	return candid.EncodeArgs(fn.Args, args)
}

// Invoke calls method with positional args. Read methods go out as
// queries and write methods as calls. Transport and decode errors are
// returned unchanged.
func (a *Actor) Invoke(ctx context.Context, method string, args ...any) ([]any, error) {
	fn, ok := a.svc.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	arg, err := a.Encode(method, args...)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var reply []byte
	if fn.Query {
		reply, err = a.transport.Query(ctx, a.canister, method, arg)
	} else {
		reply, err = a.transport.Call(ctx, a.canister, method, arg)
	}
	if err != nil {
		observability.ObserveRemoteCall(method, kind(fn), outcome(err), time.Since(started))
		return nil, err
	}
	out, err := candid.DecodeArgs(fn.Results, reply)
	observability.ObserveRemoteCall(method, kind(fn), outcome(err), time.Since(started))
	return out, err
}

func kind(fn candid.Func) string {
	if fn.Query {
		return "query"
	}
	return "update"
}

func outcome(err error) string {
	var rej *agent.RejectError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rej):
		return "rejected"
	case errors.Is(err, candid.ErrDecode):
		return "decode_error"
	}
	return "error"
}
