package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trace follows one gateway request through the bridge. The trace id is
// known up front; the session, principal, provider and remote method are
// filled in by the middleware and handlers that learn them.
type Trace struct {
	ID string

	mu        sync.Mutex
	sessionID string
	principal string
	provider  string
	method    string
}

// bindSession records the bridge session the request is served under.
func (t *Trace) bindSession(sessionID, principal, provider string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID, t.principal, t.provider = sessionID, principal, provider
}

// SetMethod records the remote method the request invokes.
func (t *Trace) SetMethod(method string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.method = method
}

// Fields renders the trace for structured logs. Unknown parts are omitted.
func (t *Trace) Fields() []zap.Field {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fields := []zap.Field{zap.String("trace_id", t.ID)}
	for _, kv := range [][2]string{
		{"session_id", t.sessionID},
		{"principal", t.principal},
		{"provider", t.provider},
		{"remote_method", t.method},
	} {
		if kv[1] != "" {
			fields = append(fields, zap.String(kv[0], kv[1]))
		}
	}
	return fields
}

// TraceMiddleware starts a Trace for each request. An incoming X-Trace-ID or
// X-Request-ID is reused so browser logs can be correlated, and the id is
// echoed back in X-Trace-ID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = r.Header.Get("X-Request-ID")
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", traceID)
		tr := &Trace{ID: traceID}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceContextKey, tr)))
	})
}

// TraceFromContext returns the request's trace, nil outside TraceMiddleware.
// All Trace methods accept a nil receiver.
func TraceFromContext(ctx context.Context) *Trace {
	if ctx == nil {
		return nil
	}
	tr, _ := ctx.Value(traceContextKey).(*Trace)
	return tr
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if tr := TraceFromContext(ctx); tr != nil {
		return tr.ID
	}
	return ""
}
