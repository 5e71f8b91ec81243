// Package twinvest holds the interface of the invoice-financing ledger
// service and a typed client over it.
package twinvest

import (
	c "github.com/ayo6706/twinvest-bridge/internal/candid"
)

// Types must stay identical to the service's published interface.
var (
	Role = c.Variant(
		c.F("investor", c.Null),
		c.F("issuer", c.Null),
		c.F("admin", c.Null),
	)
	KycStatus = c.Variant(
		c.F("unverified", c.Null),
		c.F("pending", c.Null),
		c.F("verified", c.Null),
		c.F("rejected", c.Null),
	)
	NotificationCategory = c.Variant(
		c.F("info", c.Null),
		c.F("action", c.Null),
		c.F("alert", c.Null),
	)
	TransactionType = c.Variant(
		c.F("deposit", c.Null),
		c.F("invest", c.Null),
		c.F("payout", c.Null),
		c.F("withdrawal", c.Null),
	)
	InvoiceStatus = c.Variant(
		c.F("open", c.Null),
		c.F("funded", c.Null),
		c.F("repaid", c.Null),
		c.F("defaulted", c.Null),
	)
	Transaction = c.Record(
		c.F("id", c.Nat),
		c.F("user", c.Principal),
		c.F("timestamp", c.Int),
		c.F("kind", TransactionType),
		c.F("amount", c.Nat),
		c.F("invoiceId", c.Opt(c.Nat)),
		c.F("description", c.Text),
	)
	Portfolio = c.Record(
		c.F("owner", c.Principal),
		c.F("cashBalance", c.Nat),
		c.F("totalInvested", c.Nat),
		c.F("positions", c.Vec(c.Tuple(c.Nat, c.Nat))),
	)
	Invoice = c.Record(
		c.F("id", c.Nat),
		c.F("issuer", c.Principal),
		c.F("amount", c.Nat),
		c.F("discountBps", c.Nat),
		c.F("dueDate", c.Int),
		c.F("fundedAmount", c.Nat),
		c.F("status", InvoiceStatus),
		c.F("investors", c.Vec(c.Tuple(c.Principal, c.Nat))),
		c.F("createdAt", c.Int),
	)
	Metrics = c.Record(
		c.F("processedVolume", c.Nat),
		c.F("activeUsers", c.Nat),
		c.F("openInvoices", c.Nat),
		c.F("investorsCount", c.Nat),
	)
	Notification = c.Record(
		c.F("id", c.Nat),
		c.F("user", c.Principal),
		c.F("message", c.Text),
		c.F("createdAt", c.Int),
		c.F("category", NotificationCategory),
		c.F("read", c.Bool),
	)
)

// Operation names.
const (
	MethodSetMyRole            = "set_my_role"
	MethodGetMyRole            = "get_my_role"
	MethodSubmitMyKYC          = "submit_my_kyc"
	MethodGetMyKYC             = "get_my_kyc"
	MethodAdminSetKYC          = "admin_set_kyc"
	MethodGetMyPortfolio       = "get_my_portfolio"
	MethodListMyTransactions   = "list_my_transactions"
	MethodDeposit              = "deposit"
	MethodCreateInvoice        = "create_invoice"
	MethodListInvoices         = "list_invoices"
	MethodGetInvoice           = "get_invoice"
	MethodInvestInInvoice      = "invest_in_invoice"
	MethodPushNotification     = "push_notification"
	MethodListMyNotifications  = "list_my_notifications"
	MethodMarkNotificationRead = "mark_notification_read"
	MethodGetDashboardMetrics  = "get_dashboard_metrics"
)

// Interface is the service descriptor consumed by actors and wallets.
var Interface = c.NewService(
	// identity and roles
	c.UpdateMethod(MethodSetMyRole, c.Types(Role), nil),
	c.QueryMethod(MethodGetMyRole, nil, c.Types(c.Opt(Role))),
	// kyc
	c.UpdateMethod(MethodSubmitMyKYC, nil, nil),
	c.QueryMethod(MethodGetMyKYC, nil, c.Types(KycStatus)),
	c.UpdateMethod(MethodAdminSetKYC, c.Types(c.Principal, KycStatus), c.Types(c.Bool)),
	// portfolio and transactions
	c.QueryMethod(MethodGetMyPortfolio, nil, c.Types(Portfolio)),
	c.QueryMethod(MethodListMyTransactions, nil, c.Types(c.Vec(Transaction))),
	c.UpdateMethod(MethodDeposit, c.Types(c.Nat), c.Types(c.Bool)),
	// marketplace
	c.UpdateMethod(MethodCreateInvoice, c.Types(c.Nat, c.Nat, c.Int), c.Types(c.Nat)),
	c.QueryMethod(MethodListInvoices, nil, c.Types(c.Vec(Invoice))),
	c.QueryMethod(MethodGetInvoice, c.Types(c.Nat), c.Types(c.Opt(Invoice))),
	c.UpdateMethod(MethodInvestInInvoice, c.Types(c.Nat, c.Nat), c.Types(c.Bool)),
	// notifications
	c.UpdateMethod(MethodPushNotification, c.Types(c.Principal, c.Text, NotificationCategory), c.Types(c.Opt(c.Nat))),
	c.QueryMethod(MethodListMyNotifications, nil, c.Types(c.Vec(Notification))),
	c.UpdateMethod(MethodMarkNotificationRead, c.Types(c.Nat), c.Types(c.Bool)),
	// analytics
	c.QueryMethod(MethodGetDashboardMetrics, nil, c.Types(Metrics)),
)
