package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayo6706/twinvest-bridge/internal/api/middleware"
	"github.com/ayo6706/twinvest-bridge/internal/api/problem"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
)

// CallHandler forwards JSON calls to the session's actor. Arguments and
// results are converted with the interface descriptor; nothing is
// validated beyond the declared types.
type CallHandler struct {
	svc *candid.Service
}

// NewCallHandler serves the descriptor listing from svc. Calls use the
// descriptor of the session's own actor.
func NewCallHandler(svc *candid.Service) *CallHandler {
	return &CallHandler{svc: svc}
}

type callRequest struct {
	Args []json.RawMessage `json:"args"`
}

type callResponse struct {
	Method  string `json:"method"`
	Query   bool   `json:"query"`
	Results []any  `json:"results"`
}

type operation struct {
	Name      string `json:"name"`
	Query     bool   `json:"query"`
	Signature string `json:"signature"`
}

// Interface lists the operations of the service descriptor.
func (h *CallHandler) Interface(w http.ResponseWriter, r *http.Request) {
	methods := h.svc.Methods()
	ops := make([]operation, len(methods))
	for i, m := range methods {
		ops[i] = operation{Name: m.Name, Query: m.Func.Query, Signature: m.Func.Signature()}
	}
	RespondJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func (h *CallHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	entry, ok := middleware.EntryFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, problem.SessionExpired, "session expired or logged out")
		return
	}
	caller := entry.Session.Actor
	name := chi.URLParam(r, "method")
	fn, ok := caller.Interface().Lookup(name)
	if !ok {
		RespondError(w, r, http.StatusNotFound, problem.UnknownMethod, fmt.Sprintf("unknown operation %q", name))
		return
	}
	middleware.TraceFromContext(r.Context()).SetMethod(name)

	var req callRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, problem.InvalidRequest, "Invalid request body")
		return
	}
	if len(req.Args) != len(fn.Args) {
		RespondError(w, r, http.StatusBadRequest, problem.InvalidArguments, fmt.Sprintf("%s takes %d arguments, got %d", name, len(fn.Args), len(req.Args)))
		return
	}
	args := make([]any, len(fn.Args))
	for i, t := range fn.Args {
		v, err := candid.FromJSON(t, req.Args[i])
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, problem.InvalidArguments, fmt.Sprintf("argument %d: %v", i, err))
			return
		}
		args[i] = v
	}

	results, err := caller.Invoke(r.Context(), name, args...)
	if err != nil {
		RespondBridgeError(w, r, err)
		return
	}
	if results == nil {
		results = []any{}
	}
	RespondJSON(w, http.StatusOK, callResponse{Method: name, Query: fn.Query, Results: results})
}
