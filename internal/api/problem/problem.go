package problem

import (
	"encoding/json"
	"net/http"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.twinvest.app/"

// Problem types reported by the gateway.
const (
	ConfigMissing       = "config/missing"
	ProviderUnavailable = "auth/provider-unavailable"
	AuthRejected        = "auth/rejected"
	SessionExpired      = "auth/session-expired"
	RemoteRejected      = "remote/rejected"
	RemoteCallFailed    = "remote/call-failed"
	UntrustedReply      = "remote/untrusted-reply"
	UnknownMethod       = "remote/unknown-method"
	InvalidArguments    = "request/invalid-arguments"
	InvalidRequest      = "request/invalid-body"
	InternalServerError = "internal-server-error"
)

// Details represents RFC 7807 Problem Details. Reject fields are set for
// remote rejections only.
type Details struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RequestID  string `json:"request_id"`
	RejectCode uint64 `json:"reject_code,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	WriteDetails(w, r, Details{Type: problemType, Title: title, Status: status, Detail: detail})
}

// WriteDetails fills instance and request id and sends d.
func WriteDetails(w http.ResponseWriter, r *http.Request, d Details) {
	if d.Title == "" {
		d.Title = http.StatusText(d.Status)
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get("X-Trace-ID")
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get("X-Trace-ID")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
