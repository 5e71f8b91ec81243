package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/identity"
)

const callbackPath = "/callback"

// Opener presents the login URL to the user, typically by launching a
// browser.
type Opener func(ctx context.Context, loginURL string) error

// LoopbackAuthorizer runs a federated login by sending the user to the
// identity provider with a redirect back to a short-lived local listener.
type LoopbackAuthorizer struct {
	addr    string
	open    Opener
	timeout time.Duration
	logger  *zap.Logger
}

func NewLoopbackAuthorizer(addr string, open Opener, timeout time.Duration, logger *zap.Logger) *LoopbackAuthorizer {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	if logger == nil {
		logger = zap.L()
	}
	if open == nil {
		open = func(_ context.Context, loginURL string) error {
			logger.Info("open this URL to log in", zap.String("url", loginURL))
			return nil
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &LoopbackAuthorizer{addr: addr, open: open, timeout: timeout, logger: logger}
}

type stateClaims struct {
	SessionKey string `json:"session_key"`
	jwt.RegisteredClaims
}

// callbackPayload is what the identity provider posts to the redirect.
type callbackPayload struct {
	State      string                    `json:"state"`
	Delegation *identity.DelegationChain `json:"delegation,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

type outcome struct {
	chain identity.DelegationChain
	err   error
}

func (l *LoopbackAuthorizer) Authorize(ctx context.Context, req AuthorizeRequest) (identity.DelegationChain, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return identity.DelegationChain{}, err
	}
	sessionKey := hex.EncodeToString(req.SessionPublicKey)
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		SessionKey: sessionKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(l.timeout)),
		},
	}).SignedString(secret)
	if err != nil {
		return identity.DelegationChain{}, fmt.Errorf("sign login state: %w", err)
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return identity.DelegationChain{}, fmt.Errorf("listen for login callback: %w", err)
	}
	done := make(chan outcome, 1)
	srv := &http.Server{
		Handler:           l.callbackRouter(secret, sessionKey, done),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("login callback server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	loginURL, err := authorizeURL(req, "http://"+ln.Addr().String()+callbackPath, state)
	if err != nil {
		return identity.DelegationChain{}, err
	}
	if err := l.open(ctx, loginURL); err != nil {
		return identity.DelegationChain{}, fmt.Errorf("open login page: %w", err)
	}

	select {
	case res := <-done:
		return res.chain, res.err
	case <-ctx.Done():
		return identity.DelegationChain{}, ctx.Err()
	}
}

func (l *LoopbackAuthorizer) callbackRouter(secret []byte, sessionKey string, done chan<- outcome) http.Handler {
	r := chi.NewRouter()
	// Cancelled logins come back as a plain redirect.
	r.Get(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		if !validState(req.URL.Query().Get("state"), secret, sessionKey) {
			http.Error(w, "invalid state", http.StatusForbidden)
			return
		}
		reason := req.URL.Query().Get("error")
		if reason == "" {
			reason = "UserInterrupt"
		}
		deliver(done, outcome{err: &AuthorizationError{Reason: reason}})
		_, _ = w.Write([]byte("Login cancelled. You can close this window."))
	})
	r.Post(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		var p callbackPayload
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(&p); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if !validState(p.State, secret, sessionKey) {
			http.Error(w, "invalid state", http.StatusForbidden)
			return
		}
		switch {
		case p.Error != "":
			deliver(done, outcome{err: &AuthorizationError{Reason: p.Error}})
		case p.Delegation == nil:
			deliver(done, outcome{err: &AuthorizationError{Reason: "missing delegation"}})
		default:
			deliver(done, outcome{chain: *p.Delegation})
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func deliver(done chan<- outcome, o outcome) {
	select {
	case done <- o:
	default:
	}
}

func validState(token string, secret []byte, sessionKey string) bool {
	claims := &stateClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return err == nil && parsed.Valid && claims.SessionKey == sessionKey
}

// authorizeURL builds the identity provider's authorize page address.
func authorizeURL(req AuthorizeRequest, redirect, state string) (string, error) {
	u, err := url.Parse(req.IdentityProvider)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid identity provider URL %q", req.IdentityProvider)
	}
	params := url.Values{}
	params.Set("sessionPublicKey", hex.EncodeToString(req.SessionPublicKey))
	params.Set("maxTimeToLive", strconv.FormatInt(req.MaxTimeToLive.Nanoseconds(), 10))
	params.Set("redirect_uri", redirect)
	params.Set("state", state)
	u.Fragment = ""
	return u.String() + "#authorize?" + params.Encode(), nil
}
