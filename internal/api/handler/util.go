package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/agent"
	"github.com/ayo6706/twinvest-bridge/internal/api/problem"
	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondBridgeError maps errors produced by the providers, the actor and
// the transport to problem responses. The message is passed through as is.
func RespondBridgeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr  *config.ConfigurationError
		rejErr  *agent.RejectError
		httpErr *agent.HTTPError
	)
	switch {
	case errors.As(err, &cfgErr):
		RespondError(w, r, http.StatusServiceUnavailable, problem.ConfigMissing, err.Error())
	case errors.Is(err, auth.ErrProviderUnavailable):
		RespondError(w, r, http.StatusServiceUnavailable, problem.ProviderUnavailable, err.Error())
	case errors.Is(err, auth.ErrAuthenticationRejected):
		RespondError(w, r, http.StatusUnauthorized, problem.AuthRejected, err.Error())
	case errors.Is(err, actor.ErrUnknownMethod):
		RespondError(w, r, http.StatusNotFound, problem.UnknownMethod, err.Error())
	case errors.As(err, &rejErr):
		problem.WriteDetails(w, r, problem.Details{
			Type:       problem.Type(problem.RemoteRejected),
			Status:     http.StatusUnprocessableEntity,
			Detail:     rejErr.Message,
			RejectCode: rejErr.Code,
			ErrorCode:  rejErr.ErrorCode,
		})
	case errors.Is(err, agent.ErrCertificate):
		RespondError(w, r, http.StatusBadGateway, problem.UntrustedReply, err.Error())
	case errors.As(err, &httpErr), errors.Is(err, candid.ErrDecode):
		RespondError(w, r, http.StatusBadGateway, problem.RemoteCallFailed, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(w, r, http.StatusGatewayTimeout, problem.RemoteCallFailed, err.Error())
	default:
		RespondError(w, r, http.StatusBadGateway, problem.RemoteCallFailed, err.Error())
	}
}
