package domain

import "fmt"

// Role is the capability tag carried on a remote user record.
type Role string

const (
	RoleInvestor Role = "investor"
	RoleIssuer   Role = "issuer"
	RoleAdmin    Role = "admin"
)

// KycStatus is the verification state of a user. New users start unverified.
type KycStatus string

const (
	KycUnverified KycStatus = "unverified"
	KycPending    KycStatus = "pending"
	KycVerified   KycStatus = "verified"
	KycRejected   KycStatus = "rejected"
)

type InvoiceStatus string

const (
	InvoiceOpen      InvoiceStatus = "open"
	InvoiceFunded    InvoiceStatus = "funded"
	InvoiceRepaid    InvoiceStatus = "repaid"
	InvoiceDefaulted InvoiceStatus = "defaulted"
)

type TransactionKind string

const (
	TxDeposit    TransactionKind = "deposit"
	TxInvest     TransactionKind = "invest"
	TxPayout     TransactionKind = "payout"
	TxWithdrawal TransactionKind = "withdrawal"
)

type NotificationCategory string

const (
	NotifyInfo   NotificationCategory = "info"
	NotifyAction NotificationCategory = "action"
	NotifyAlert  NotificationCategory = "alert"
)

// ParseRole accepts the tag names used on the wire.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleInvestor, RoleIssuer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func ParseKycStatus(s string) (KycStatus, error) {
	switch k := KycStatus(s); k {
	case KycUnverified, KycPending, KycVerified, KycRejected:
		return k, nil
	}
	return "", fmt.Errorf("unknown kyc status %q", s)
}

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(s); st {
	case InvoiceOpen, InvoiceFunded, InvoiceRepaid, InvoiceDefaulted:
		return st, nil
	}
	return "", fmt.Errorf("unknown invoice status %q", s)
}

func ParseTransactionKind(s string) (TransactionKind, error) {
	switch k := TransactionKind(s); k {
	case TxDeposit, TxInvest, TxPayout, TxWithdrawal:
		return k, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

func ParseNotificationCategory(s string) (NotificationCategory, error) {
	switch c := NotificationCategory(s); c {
	case NotifyInfo, NotifyAction, NotifyAlert:
		return c, nil
	}
	return "", fmt.Errorf("unknown notification category %q", s)
}

// CanTransition reports whether an invoice may move from one status to
// another. Transitions only run forward: open -> funded -> repaid|defaulted.
// The service enforces this; callers use it to interpret snapshots.
func CanTransition(from, to InvoiceStatus) bool {
	switch from {
	case InvoiceOpen:
		return to == InvoiceFunded
	case InvoiceFunded:
		return to == InvoiceRepaid || to == InvoiceDefaulted
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceRepaid || s == InvoiceDefaulted
}
