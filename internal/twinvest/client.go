package twinvest

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/domain"
	"github.com/ayo6706/twinvest-bridge/internal/models"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// Client is a typed view over a Caller bound to Interface. Boolean results
// are the service's soft success flags and are returned as data.
type Client struct {
	caller actor.Caller
}

func NewClient(caller actor.Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) invoke(ctx context.Context, method string, args ...any) ([]any, error) {
	return c.caller.Invoke(ctx, method, args...)
}

func (c *Client) one(ctx context.Context, method string, args ...any) (any, error) {
	out, err := c.invoke(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", candid.ErrDecode, method, len(out))
	}
	return out[0], nil
}

func (c *Client) flag(ctx context.Context, method string, args ...any) (bool, error) {
	v, err := c.one(ctx, method, args...)
	if err != nil {
		return false, err
	}
	ok, isBool := v.(bool)
	if !isBool {
		return false, shapeErr(method, fmt.Errorf("expected bool, got %T", v))
	}
	return ok, nil
}

func shapeErr(method string, err error) error {
	return fmt.Errorf("%w: %s: %v", candid.ErrDecode, method, err)
}

func (c *Client) SetMyRole(ctx context.Context, role domain.Role) error {
	_, err := c.invoke(ctx, MethodSetMyRole, role.Variant())
	return err
}

// GetMyRole returns ok=false when no role has been assigned.
func (c *Client) GetMyRole(ctx context.Context) (domain.Role, bool, error) {
	v, err := c.one(ctx, MethodGetMyRole)
	if err != nil {
		return "", false, err
	}
	role, ok := domain.RoleFromVariant(v)
	return role, ok, nil
}

func (c *Client) SubmitMyKYC(ctx context.Context) error {
	_, err := c.invoke(ctx, MethodSubmitMyKYC)
	return err
}

func (c *Client) GetMyKYC(ctx context.Context) (domain.KycStatus, error) {
	v, err := c.one(ctx, MethodGetMyKYC)
	if err != nil {
		return "", err
	}
	tag, ok := v.(candid.VariantValue)
	if !ok {
		return "", shapeErr(MethodGetMyKYC, fmt.Errorf("expected variant, got %T", v))
	}
	status, err := domain.ParseKycStatus(tag.Tag)
	if err != nil {
		return "", shapeErr(MethodGetMyKYC, err)
	}
	return status, nil
}

func (c *Client) AdminSetKYC(ctx context.Context, user principal.Principal, status domain.KycStatus) (bool, error) {
	return c.flag(ctx, MethodAdminSetKYC, user, candid.Tag(string(status)))
}

func (c *Client) GetMyPortfolio(ctx context.Context) (models.Portfolio, error) {
	v, err := c.one(ctx, MethodGetMyPortfolio)
	if err != nil {
		return models.Portfolio{}, err
	}
	p, err := toPortfolio(v)
	if err != nil {
		return models.Portfolio{}, shapeErr(MethodGetMyPortfolio, err)
	}
	return p, nil
}

func (c *Client) ListMyTransactions(ctx context.Context) ([]models.Transaction, error) {
	v, err := c.one(ctx, MethodListMyTransactions)
	if err != nil {
		return nil, err
	}
	txs, err := toList(v, toTransaction)
	if err != nil {
		return nil, shapeErr(MethodListMyTransactions, err)
	}
	return txs, nil
}

func (c *Client) Deposit(ctx context.Context, amount uint64) (bool, error) {
	return c.flag(ctx, MethodDeposit, amount)
}

// CreateInvoice returns the id assigned by the service.
func (c *Client) CreateInvoice(ctx context.Context, amount, discountBps uint64, due time.Time) (uint64, error) {
	v, err := c.one(ctx, MethodCreateInvoice, amount, discountBps, due.UnixNano())
	if err != nil {
		return 0, err
	}
	id, err := candid.NatValue(v)
	if err != nil {
		return 0, shapeErr(MethodCreateInvoice, err)
	}
	return id, nil
}

func (c *Client) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	v, err := c.one(ctx, MethodListInvoices)
	if err != nil {
		return nil, err
	}
	invoices, err := toList(v, toInvoice)
	if err != nil {
		return nil, shapeErr(MethodListInvoices, err)
	}
	return invoices, nil
}

// GetInvoice returns nil when the service has no invoice with that id.
func (c *Client) GetInvoice(ctx context.Context, id uint64) (*models.Invoice, error) {
	v, err := c.one(ctx, MethodGetInvoice, id)
	if err != nil {
		return nil, err
	}
	o, ok := v.(candid.Option)
	if !ok {
		return nil, shapeErr(MethodGetInvoice, fmt.Errorf("expected opt, got %T", v))
	}
	if !o.Valid {
		return nil, nil
	}
	inv, err := toInvoice(o.Value)
	if err != nil {
		return nil, shapeErr(MethodGetInvoice, err)
	}
	return &inv, nil
}

func (c *Client) InvestInInvoice(ctx context.Context, invoiceID, amount uint64) (bool, error) {
	return c.flag(ctx, MethodInvestInInvoice, invoiceID, amount)
}

// PushNotification returns ok=false when the service declined to create
// the notification.
func (c *Client) PushNotification(ctx context.Context, user principal.Principal, message string, category domain.NotificationCategory) (uint64, bool, error) {
	v, err := c.one(ctx, MethodPushNotification, user, message, candid.Tag(string(category)))
	if err != nil {
		return 0, false, err
	}
	o, ok := v.(candid.Option)
	if !ok {
		return 0, false, shapeErr(MethodPushNotification, fmt.Errorf("expected opt, got %T", v))
	}
	if !o.Valid {
		return 0, false, nil
	}
	id, err := candid.NatValue(o.Value)
	if err != nil {
		return 0, false, shapeErr(MethodPushNotification, err)
	}
	return id, true, nil
}

func (c *Client) ListMyNotifications(ctx context.Context) ([]models.Notification, error) {
	v, err := c.one(ctx, MethodListMyNotifications)
	if err != nil {
		return nil, err
	}
	items, err := toList(v, toNotification)
	if err != nil {
		return nil, shapeErr(MethodListMyNotifications, err)
	}
	return items, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id uint64) (bool, error) {
	return c.flag(ctx, MethodMarkNotificationRead, id)
}

func (c *Client) GetDashboardMetrics(ctx context.Context) (models.Metrics, error) {
	v, err := c.one(ctx, MethodGetDashboardMetrics)
	if err != nil {
		return models.Metrics{}, err
	}
	m, err := toMetrics(v)
	if err != nil {
		return models.Metrics{}, shapeErr(MethodGetDashboardMetrics, err)
	}
	return m, nil
}
