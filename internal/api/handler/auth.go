package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/api/middleware"
	"github.com/ayo6706/twinvest-bridge/internal/api/problem"
	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/session"
)

// Authenticator runs bridge logins. *auth.Bridge implements it.
type Authenticator interface {
	Login(ctx context.Context, m auth.Method) (*auth.Session, error)
	Logout(ctx context.Context, m auth.Method) error
}

type AuthHandler struct {
	bridge   Authenticator
	registry *session.Registry
	logger   *zap.Logger
}

func NewAuthHandler(bridge Authenticator, registry *session.Registry, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &AuthHandler{bridge: bridge, registry: registry, logger: logger}
}

type loginRequest struct {
	Method string `json:"method"`
}

type sessionResponse struct {
	Token     string    `json:"token,omitempty"`
	SessionID string    `json:"session_id"`
	Principal string    `json:"principal,omitempty"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSessionResponse(e session.Entry) sessionResponse {
	return sessionResponse{
		SessionID: e.ID.String(),
		Principal: e.Session.Principal,
		Method:    string(e.Session.Method),
		ExpiresAt: e.Expires.UTC(),
	}
}

// Login establishes a bridge session with the requested provider and
// returns a bearer token for it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, problem.InvalidRequest, "Invalid request body")
		return
	}
	method, err := auth.ParseMethod(req.Method)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, problem.InvalidRequest, err.Error())
		return
	}

	s, err := h.bridge.Login(r.Context(), method)
	if err != nil {
		h.logger.Warn("login failed", zap.String("method", string(method)), zap.Error(err))
		RespondBridgeError(w, r, err)
		return
	}

	entry := h.registry.Put(s)
	token, err := middleware.IssueToken(entry)
	if err != nil {
		h.registry.Delete(entry.ID)
		RespondError(w, r, http.StatusInternalServerError, "auth/misconfigured", "Failed to sign token")
		return
	}
	h.logger.Info("session established",
		zap.String("method", string(method)),
		zap.String("session_id", entry.ID.String()),
		zap.String("principal", s.Principal),
	)

	resp := toSessionResponse(entry)
	resp.Token = token
	RespondJSON(w, http.StatusOK, resp)
}

// Session describes the calling session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	entry, ok := middleware.EntryFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, problem.SessionExpired, "session expired or logged out")
		return
	}
	RespondJSON(w, http.StatusOK, toSessionResponse(entry))
}

// Logout drops the gateway session and ends the provider session where
// the provider keeps one.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	entry, ok := middleware.EntryFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, problem.SessionExpired, "session expired or logged out")
		return
	}
	h.registry.Delete(entry.ID)
	if err := h.bridge.Logout(r.Context(), entry.Session.Method); err != nil {
		h.logger.Error("provider logout failed", zap.String("session_id", entry.ID.String()), zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/logout-failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
