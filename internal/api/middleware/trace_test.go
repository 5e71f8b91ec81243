package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/session"
)

func tracedChain(logger *zap.Logger, inner http.HandlerFunc) http.Handler {
	return TraceMiddleware(LoggingMiddleware(logger)(AuthMiddleware(inner)))
}

func TestRequestLogCarriesBridgeSession(t *testing.T) {
	SetJWTSecret(strings.Repeat("k", 32))
	SetJWTValidation("", "")
	core, logs := observer.New(zapcore.InfoLevel)

	id := uuid.New()
	token, err := IssueToken(session.Entry{
		ID:      id,
		Session: &auth.Session{Principal: "2vxsx-fae", Method: auth.MethodFederated},
		Created: time.Now(),
		Expires: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	h := tracedChain(zap.New(core), func(w http.ResponseWriter, r *http.Request) {
		TraceFromContext(r.Context()).SetMethod("deposit")
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/calls/deposit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Trace-ID"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["trace_id"])
	assert.Equal(t, id.String(), fields["session_id"])
	assert.Equal(t, "2vxsx-fae", fields["principal"])
	assert.Equal(t, "federated", fields["provider"])
	assert.Equal(t, "deposit", fields["remote_method"])
	assert.Equal(t, int64(http.StatusNoContent), fields["status"])
}

func TestRequestLogWithoutSession(t *testing.T) {
	SetJWTSecret(strings.Repeat("k", 32))
	core, logs := observer.New(zapcore.InfoLevel)

	h := tracedChain(zap.New(core), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	traceID := rec.Header().Get("X-Trace-ID")
	_, err := uuid.Parse(traceID)
	require.NoError(t, err, "a fresh trace id is generated")

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, traceID, fields["trace_id"])
	assert.NotContains(t, fields, "session_id")
	assert.NotContains(t, fields, "principal")
}

func TestTraceAcceptsNilReceiver(t *testing.T) {
	var tr *Trace
	tr.SetMethod("x")
	tr.bindSession("a", "b", "c")
	assert.Nil(t, tr.Fields())
	assert.Empty(t, TraceIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
