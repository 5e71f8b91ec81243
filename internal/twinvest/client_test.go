package twinvest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/domain"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
	"github.com/ayo6706/twinvest-bridge/internal/twinvest"
)

var canister = principal.MustDecode("ryjl3-tyaaa-aaaaa-aaaba-cai")

// sample builds a value of any shape used by the interface.
func sample(t *candid.Type) any {
	switch t.Kind {
	case candid.KindBool:
		return true
	case candid.KindNat:
		return uint64(3)
	case candid.KindInt:
		return int64(1_700_000_000_000_000_000)
	case candid.KindText:
		return "hello"
	case candid.KindPrincipal:
		return principal.Anonymous
	case candid.KindOpt:
		return candid.Some(sample(t.Elem))
	case candid.KindVec:
		return []any{sample(t.Elem)}
	case candid.KindRecord:
		if t.Tuple {
			items := make([]any, len(t.Fields))
			for i, f := range t.Fields {
				items[i] = sample(f.Type)
			}
			return items
		}
		rec := candid.RecordValue{}
		for _, f := range t.Fields {
			rec[f.Name] = sample(f.Type)
		}
		return rec
	case candid.KindVariant:
		return candid.VariantValue{Tag: t.Fields[0].Name, Value: sample(t.Fields[0].Type)}
	}
	return nil
}

// ledger answers every method with sample results after checking that the
// arguments decode against the declared shape.
type ledger struct {
	svc      *candid.Service
	override map[string][]any
	seen     map[string][]any
}

func newLedger() *ledger {
	return &ledger{svc: twinvest.Interface, override: map[string][]any{}, seen: map[string][]any{}}
}

func (l *ledger) reply(method string, arg []byte) ([]byte, error) {
	fn, ok := l.svc.Lookup(method)
	if !ok {
		return nil, errors.New("unknown method")
	}
	args, err := candid.DecodeArgs(fn.Args, arg)
	if err != nil {
		return nil, err
	}
	l.seen[method] = args
	results, ok := l.override[method]
	if !ok {
		results = make([]any, len(fn.Results))
		for i, rt := range fn.Results {
			results[i] = sample(rt)
		}
	}
	return candid.EncodeArgs(fn.Results, results)
}

func (l *ledger) Query(_ context.Context, _ principal.Principal, method string, arg []byte) ([]byte, error) {
	if fn, _ := l.svc.Lookup(method); !fn.Query {
		return nil, errors.New("update method sent as query")
	}
	return l.reply(method, arg)
}

func (l *ledger) Call(_ context.Context, _ principal.Principal, method string, arg []byte) ([]byte, error) {
	if fn, _ := l.svc.Lookup(method); fn.Query {
		return nil, errors.New("query method sent as update")
	}
	return l.reply(method, arg)
}

func newClient(l *ledger) *twinvest.Client {
	return twinvest.NewClient(actor.New(l, canister, twinvest.Interface))
}

func TestInterfaceDeclaresEveryOperation(t *testing.T) {
	want := map[string]bool{
		"set_my_role": false, "get_my_role": true,
		"submit_my_kyc": false, "get_my_kyc": true, "admin_set_kyc": false,
		"get_my_portfolio": true, "list_my_transactions": true, "deposit": false,
		"create_invoice": false, "list_invoices": true, "get_invoice": true, "invest_in_invoice": false,
		"push_notification": false, "list_my_notifications": true, "mark_notification_read": false,
		"get_dashboard_metrics": true,
	}
	assert.Len(t, twinvest.Interface.Names(), len(want))
	for name, query := range want {
		fn, ok := twinvest.Interface.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, query, fn.Query, name)
	}
}

func TestEveryReadRoundTrips(t *testing.T) {
	a := actor.New(newLedger(), canister, twinvest.Interface)
	for _, m := range twinvest.Interface.Methods() {
		if !m.Func.Query {
			continue
		}
		args := make([]any, len(m.Func.Args))
		for i, at := range m.Func.Args {
			args[i] = sample(at)
		}
		out, err := a.Invoke(context.Background(), m.Name, args...)
		require.NoError(t, err, m.Name)
		assert.Len(t, out, len(m.Func.Results), m.Name)
	}
}

func TestTypedReads(t *testing.T) {
	c := newClient(newLedger())
	ctx := context.Background()

	role, ok, err := c.GetMyRole(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, role)

	kyc, err := c.GetMyKYC(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, kyc)

	p, err := c.GetMyPortfolio(ctx)
	require.NoError(t, err)
	assert.True(t, p.Owner.IsAnonymous())
	assert.Equal(t, uint64(3), p.CashBalance)
	require.Len(t, p.Positions, 1)
	assert.Equal(t, uint64(3), p.Positions[0].InvoiceID)

	txs, err := c.ListMyTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].InvoiceID)
	assert.Equal(t, "hello", txs[0].Description)
	assert.Equal(t, int64(1_700_000_000_000_000_000), txs[0].Timestamp.UnixNano())

	invoices, err := c.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Len(t, invoices[0].Investors, 1)

	inv, err := c.GetInvoice(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, uint64(3), inv.DiscountBps)

	notes, err := c.ListMyNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Read)

	m, err := c.GetDashboardMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.InvestorsCount)
}

func TestTypedWritesForwardArguments(t *testing.T) {
	l := newLedger()
	c := newClient(l)
	ctx := context.Background()
	user := principal.MustDecode("aaaaa-aa")

	require.NoError(t, c.SetMyRole(ctx, domain.RoleIssuer))
	assert.Equal(t, []any{candid.Tag("issuer")}, l.seen[twinvest.MethodSetMyRole])

	require.NoError(t, c.SubmitMyKYC(ctx))

	ok, err := c.AdminSetKYC(ctx, user, domain.KycVerified)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, candid.Tag("verified"), l.seen[twinvest.MethodAdminSetKYC][1])

	l.override[twinvest.MethodDeposit] = []any{false}
	ok, err = c.Deposit(ctx, 500)
	require.NoError(t, err)
	assert.False(t, ok, "false is a soft failure returned as data")

	l.override[twinvest.MethodCreateInvoice] = []any{uint64(41)}
	due := time.Unix(1_800_000_000, 0)
	id, err := c.CreateInvoice(ctx, 10_000, 525, due)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), id)
	dueArg, err := candid.IntValue(l.seen[twinvest.MethodCreateInvoice][2])
	require.NoError(t, err)
	assert.Equal(t, due.UnixNano(), dueArg)

	ok, err = c.InvestInInvoice(ctx, 41, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	l.override[twinvest.MethodPushNotification] = []any{candid.None()}
	_, ok, err = c.PushNotification(ctx, user, "pay up", domain.NotifyAlert)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.MarkNotificationRead(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAbsentResults(t *testing.T) {
	l := newLedger()
	l.override[twinvest.MethodGetMyRole] = []any{candid.None()}
	l.override[twinvest.MethodGetInvoice] = []any{candid.None()}
	c := newClient(l)

	_, ok, err := c.GetMyRole(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	inv, err := c.GetInvoice(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, inv)
}

func TestRemoteFailurePropagatesUnchanged(t *testing.T) {
	boom := errors.New("replica unavailable")
	c := twinvest.NewClient(actor.New(failing{boom}, canister, twinvest.Interface))
	_, err := c.ListInvoices(context.Background())
	assert.Same(t, boom, err)
}

type failing struct{ err error }

func (f failing) Query(context.Context, principal.Principal, string, []byte) ([]byte, error) {
	return nil, f.err
}

func (f failing) Call(context.Context, principal.Principal, string, []byte) ([]byte, error) {
	return nil, f.err
}
