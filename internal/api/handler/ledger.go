package handler

import (
	"net/http"

	"github.com/ayo6706/twinvest-bridge/internal/api/middleware"
	"github.com/ayo6706/twinvest-bridge/internal/api/problem"
	"github.com/ayo6706/twinvest-bridge/internal/domain"
	"github.com/ayo6706/twinvest-bridge/internal/models"
	"github.com/ayo6706/twinvest-bridge/internal/twinvest"
)

// LedgerHandler serves typed views over the session actor for the
// dashboard pages. Values are passed through from the service.
type LedgerHandler struct{}

func NewLedgerHandler() *LedgerHandler { return &LedgerHandler{} }

func clientFor(w http.ResponseWriter, r *http.Request) (*twinvest.Client, bool) {
	entry, ok := middleware.EntryFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, problem.SessionExpired, "session expired or logged out")
		return nil, false
	}
	return twinvest.NewClient(entry.Session.Actor), true
}

type invoiceView struct {
	models.Invoice
	DiscountRate    string `json:"discount_rate"`
	FundingProgress string `json:"funding_progress"`
	Remaining       uint64 `json:"remaining"`
}

func toInvoiceView(inv models.Invoice) invoiceView {
	return invoiceView{
		Invoice:         inv,
		DiscountRate:    domain.FormatBasisPoints(inv.DiscountBps),
		FundingProgress: inv.FundingProgress().StringFixed(4),
		Remaining:       inv.Remaining(),
	}
}

// Profile reports the caller's role and KYC status.
func (h *LedgerHandler) Profile(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFor(w, r)
	if !ok {
		return
	}
	role, hasRole, err := client.GetMyRole(r.Context())
	if err != nil {
		RespondBridgeError(w, r, err)
		return
	}
	kyc, err := client.GetMyKYC(r.Context())
	if err != nil {
		RespondBridgeError(w, r, err)
		return
	}
	out := map[string]any{"kyc": kyc, "role": nil}
	if hasRole {
		out["role"] = role
	}
	RespondJSON(w, http.StatusOK, out)
}

func (h *LedgerHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFor(w, r)
	if !ok {
		return
	}
	invoices, err := client.ListInvoices(r.Context())
	if err != nil {
		RespondBridgeError(w, r, err)
		return
	}
	views := make([]invoiceView, len(invoices))
	for i, inv := range invoices {
		views[i] = toInvoiceView(inv)
	}
	RespondJSON(w, http.StatusOK, map[string]any{"invoices": views})
}

func (h *LedgerHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFor(w, r)
	if !ok {
		return
	}
	p, err := client.GetMyPortfolio(r.Context())
	if err != nil {
		RespondBridgeError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

func (h *LedgerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFor(w, r)
	if !ok {
		return
	}
	m, err := client.GetDashboardMetrics(r.Context())
	if err != nil {
		RespondBridgeError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}
