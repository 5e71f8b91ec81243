package twinvest

import (
	"fmt"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/domain"
	"github.com/ayo6706/twinvest-bridge/internal/models"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// record reads typed fields out of a decoded record, keeping the first
// error.
type record struct {
	v   candid.RecordValue
	err error
}

func asRecord(v any) *record {
	rec, ok := v.(candid.RecordValue)
	if !ok {
		return &record{err: fmt.Errorf("expected record, got %T", v)}
	}
	return &record{v: rec}
}

func (r *record) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("field %s: %w", name, err)
	}
}

func (r *record) nat(name string) uint64 {
	if r.err != nil {
		return 0
	}
	n, err := candid.NatValue(r.v[name])
	if err != nil {
		r.fail(name, err)
	}
	return n
}

// time reads an int field holding nanoseconds since the epoch.
func (r *record) time(name string) time.Time {
	if r.err != nil {
		return time.Time{}
	}
	ns, err := candid.IntValue(r.v[name])
	if err != nil {
		r.fail(name, err)
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (r *record) principal(name string) principal.Principal {
	if r.err != nil {
		return principal.Principal{}
	}
	p, ok := r.v[name].(principal.Principal)
	if !ok {
		r.fail(name, fmt.Errorf("expected principal, got %T", r.v[name]))
	}
	return p
}

func (r *record) text(name string) string {
	if r.err != nil {
		return ""
	}
	s, ok := r.v[name].(string)
	if !ok {
		r.fail(name, fmt.Errorf("expected text, got %T", r.v[name]))
	}
	return s
}

func (r *record) bool(name string) bool {
	if r.err != nil {
		return false
	}
	b, ok := r.v[name].(bool)
	if !ok {
		r.fail(name, fmt.Errorf("expected bool, got %T", r.v[name]))
	}
	return b
}

func (r *record) tag(name string) string {
	if r.err != nil {
		return ""
	}
	v, ok := r.v[name].(candid.VariantValue)
	if !ok {
		r.fail(name, fmt.Errorf("expected variant, got %T", r.v[name]))
	}
	return v.Tag
}

func (r *record) optNat(name string) *uint64 {
	if r.err != nil {
		return nil
	}
	o, ok := r.v[name].(candid.Option)
	if !ok {
		r.fail(name, fmt.Errorf("expected opt, got %T", r.v[name]))
		return nil
	}
	if !o.Valid {
		return nil
	}
	n, err := candid.NatValue(o.Value)
	if err != nil {
		r.fail(name, err)
		return nil
	}
	return &n
}

// pairs reads a vec of two-element tuples.
func (r *record) pairs(name string) [][]any {
	if r.err != nil {
		return nil
	}
	items, ok := r.v[name].([]any)
	if !ok {
		r.fail(name, fmt.Errorf("expected vec, got %T", r.v[name]))
		return nil
	}
	out := make([][]any, 0, len(items))
	for i, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			r.fail(name, fmt.Errorf("element %d is not a pair", i))
			return nil
		}
		out = append(out, pair)
	}
	return out
}

func toPortfolio(v any) (models.Portfolio, error) {
	r := asRecord(v)
	p := models.Portfolio{
		Owner:         r.principal("owner"),
		CashBalance:   r.nat("cashBalance"),
		TotalInvested: r.nat("totalInvested"),
		Positions:     []models.Position{},
	}
	for _, pair := range r.pairs("positions") {
		id, err := candid.NatValue(pair[0])
		if err != nil {
			return models.Portfolio{}, fmt.Errorf("positions: %w", err)
		}
		amount, err := candid.NatValue(pair[1])
		if err != nil {
			return models.Portfolio{}, fmt.Errorf("positions: %w", err)
		}
		p.Positions = append(p.Positions, models.Position{InvoiceID: id, Amount: amount})
	}
	return p, r.err
}

func toInvoice(v any) (models.Invoice, error) {
	r := asRecord(v)
	inv := models.Invoice{
		ID:           r.nat("id"),
		Issuer:       r.principal("issuer"),
		Amount:       r.nat("amount"),
		DiscountBps:  r.nat("discountBps"),
		DueDate:      r.time("dueDate"),
		FundedAmount: r.nat("fundedAmount"),
		Investors:    []models.InvoiceInvestor{},
		CreatedAt:    r.time("createdAt"),
	}
	if tag := r.tag("status"); r.err == nil {
		status, err := domain.ParseInvoiceStatus(tag)
		if err != nil {
			return models.Invoice{}, err
		}
		inv.Status = status
	}
	for _, pair := range r.pairs("investors") {
		who, ok := pair[0].(principal.Principal)
		if !ok {
			return models.Invoice{}, fmt.Errorf("investors: expected principal, got %T", pair[0])
		}
		amount, err := candid.NatValue(pair[1])
		if err != nil {
			return models.Invoice{}, fmt.Errorf("investors: %w", err)
		}
		inv.Investors = append(inv.Investors, models.InvoiceInvestor{Investor: who, Amount: amount})
	}
	return inv, r.err
}

func toTransaction(v any) (models.Transaction, error) {
	r := asRecord(v)
	tx := models.Transaction{
		ID:          r.nat("id"),
		User:        r.principal("user"),
		Timestamp:   r.time("timestamp"),
		Amount:      r.nat("amount"),
		InvoiceID:   r.optNat("invoiceId"),
		Description: r.text("description"),
	}
	if tag := r.tag("kind"); r.err == nil {
		kind, err := domain.ParseTransactionKind(tag)
		if err != nil {
			return models.Transaction{}, err
		}
		tx.Kind = kind
	}
	return tx, r.err
}

func toNotification(v any) (models.Notification, error) {
	r := asRecord(v)
	n := models.Notification{
		ID:        r.nat("id"),
		User:      r.principal("user"),
		Message:   r.text("message"),
		CreatedAt: r.time("createdAt"),
		Read:      r.bool("read"),
	}
	if tag := r.tag("category"); r.err == nil {
		cat, err := domain.ParseNotificationCategory(tag)
		if err != nil {
			return models.Notification{}, err
		}
		n.Category = cat
	}
	return n, r.err
}

func toMetrics(v any) (models.Metrics, error) {
	r := asRecord(v)
	m := models.Metrics{
		ProcessedVolume: r.nat("processedVolume"),
		ActiveUsers:     r.nat("activeUsers"),
		OpenInvoices:    r.nat("openInvoices"),
		InvestorsCount:  r.nat("investorsCount"),
	}
	return m, r.err
}

func toList[T any](v any, conv func(any) (T, error)) ([]T, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected vec, got %T", v)
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		x, err := conv(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, x)
	}
	return out, nil
}
