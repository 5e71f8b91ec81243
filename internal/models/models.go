package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayo6706/twinvest-bridge/internal/domain"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// Entities below are read-only snapshots returned by the ledger service.

type Position struct {
	InvoiceID uint64 `json:"invoice_id"`
	Amount    uint64 `json:"amount"`
}

type Portfolio struct {
	Owner         principal.Principal `json:"owner"`
	CashBalance   uint64              `json:"cash_balance"`
	TotalInvested uint64              `json:"total_invested"`
	Positions     []Position          `json:"positions"`
}

type InvoiceInvestor struct {
	Investor principal.Principal `json:"investor"`
	Amount   uint64              `json:"amount"`
}

type Invoice struct {
	ID           uint64               `json:"id"`
	Issuer       principal.Principal  `json:"issuer"`
	Amount       uint64               `json:"amount"`
	DiscountBps  uint64               `json:"discount_bps"`
	DueDate      time.Time            `json:"due_date"`
	FundedAmount uint64               `json:"funded_amount"`
	Status       domain.InvoiceStatus `json:"status"`
	Investors    []InvoiceInvestor    `json:"investors"`
	CreatedAt    time.Time            `json:"created_at"`
}

// DiscountRate is the discount as a fraction of face value.
func (i Invoice) DiscountRate() decimal.Decimal { return domain.RateFromBasisPoints(i.DiscountBps) }

// FundingProgress is the funded share of face value, capped at one.
func (i Invoice) FundingProgress() decimal.Decimal {
	return domain.FundingProgress(i.FundedAmount, i.Amount)
}

// Remaining is the face value still open for investment.
func (i Invoice) Remaining() uint64 {
	if i.FundedAmount >= i.Amount {
		return 0
	}
	return i.Amount - i.FundedAmount
}

type Transaction struct {
	ID          uint64                 `json:"id"`
	User        principal.Principal    `json:"user"`
	Timestamp   time.Time              `json:"timestamp"`
	Kind        domain.TransactionKind `json:"kind"`
	Amount      uint64                 `json:"amount"`
	InvoiceID   *uint64                `json:"invoice_id,omitempty"`
	Description string                 `json:"description"`
}

type Notification struct {
	ID        uint64                      `json:"id"`
	User      principal.Principal         `json:"user"`
	Message   string                      `json:"message"`
	CreatedAt time.Time                   `json:"created_at"`
	Category  domain.NotificationCategory `json:"category"`
	Read      bool                        `json:"read"`
}

type Metrics struct {
	ProcessedVolume uint64 `json:"processed_volume"`
	ActiveUsers     uint64 `json:"active_users"`
	OpenInvoices    uint64 `json:"open_invoices"`
	InvestorsCount  uint64 `json:"investors_count"`
}
