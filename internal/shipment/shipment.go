// Package shipment mirrors confirmed orders to the external logistics
// provider and relays cancellations and label fetches.
package shipment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config holds provider credentials and connection settings.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	// TokenTTL is how long a cached auth token is reused. It is kept
	// shorter than the provider's actual token lifetime to tolerate clock
	// skew and early invalidation.
	TokenTTL time.Duration
}

// Order is the shipment-facing projection of a local order.
type Order struct {
	OrderID     string
	ShipmentRef string
	Customer    string
	Phone       string
	Email       string
	Address     string
	City        string
	State       string
	PostalCode  string
	Total       decimal.Decimal
	Lines       []Line
}

// Line is one shippable order line.
type Line struct {
	Name     string
	Quantity int
	UnitsKg  decimal.Decimal
}

// Placeholder package dimensions: jewelry ships in one standard box.
const (
	packageLengthCm = 10
	packageWidthCm  = 10
	packageHeightCm = 5
)

// token is the cached provider auth token with its refresh deadline.
// Explicitly scoped state, injected via the Client; never a package global.
type token struct {
	value     string
	refreshAt time.Time
}

// Client talks to the logistics provider.
type Client struct {
	cfg    Config
	client *http.Client
	tracer trace.Tracer
	now    func() time.Time

	mu  sync.Mutex
	tok token
}

// NewClient creates a provider client. The HTTP client should carry a
// bounded timeout; a timed-out push is treated like any failed push.
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Client{
		cfg:    cfg,
		client: client,
		tracer: otel.Tracer("github.com/aurumlabs/aurum/internal/shipment"),
		now:    time.Now,
	}
}

// authToken returns the cached token, refreshing it when past its deadline.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok.value != "" && c.now().Before(c.tok.refreshAt) {
		return c.tok.value, nil
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.cfg.Email,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal login request")
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/v1/external/auth/login", "", body, &out); err != nil {
		return "", errors.Wrap(err, "provider login")
	}
	if out.Token == "" {
		return "", errors.New("provider login: empty token")
	}

	c.tok = token{value: out.Token, refreshAt: c.now().Add(c.cfg.TokenTTL)}
	return c.tok.value, nil
}

// Push creates a provider-side order. Idempotent: an order that already
// carries a remote shipment reference returns that reference without a new
// push.
func (c *Client) Push(ctx context.Context, o Order) (string, error) {
	if o.ShipmentRef != "" {
		return o.ShipmentRef, nil
	}

	ctx, span := c.tracer.Start(ctx, "shipment.Push",
		trace.WithAttributes(attribute.String("order_id", o.OrderID)))
	defer span.End()

	tok, err := c.authToken(ctx)
	if err != nil {
		return "", err
	}

	first, last := splitName(o.Customer)
	items := make([]map[string]any, len(o.Lines))
	weight := decimal.Zero
	for i, line := range o.Lines {
		items[i] = map[string]any{
			"name":  line.Name,
			"units": line.Quantity,
		}
		weight = weight.Add(line.UnitsKg.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	body, err := json.Marshal(map[string]any{
		"order_id":              o.OrderID,
		"order_date":            c.now().Format("2006-01-02 15:04"),
		"billing_customer_name": first,
		"billing_last_name":     last,
		"billing_address":       o.Address,
		"billing_city":          o.City,
		"billing_state":         o.State,
		"billing_pincode":       o.PostalCode,
		"billing_phone":         o.Phone,
		"billing_email":         o.Email,
		"shipping_is_billing":   true,
		"order_items":           items,
		"sub_total":             o.Total.InexactFloat64(),
		"length":                packageLengthCm,
		"breadth":               packageWidthCm,
		"height":                packageHeightCm,
		"weight":                weight.InexactFloat64(),
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal push request")
	}

	var out struct {
		OrderID json.Number `json:"order_id"`
	}
	if err := c.post(ctx, "/v1/external/orders/create/adhoc", tok, body, &out); err != nil {
		return "", errors.Wrap(err, "push order")
	}
	return out.OrderID.String(), nil
}

// Cancel mirrors a local cancellation to the provider. Errors propagate to
// the caller.
func (c *Client) Cancel(ctx context.Context, remoteOrderID string) error {
	ctx, span := c.tracer.Start(ctx, "shipment.Cancel",
		trace.WithAttributes(attribute.String("remote_order_id", remoteOrderID)))
	defer span.End()

	tok, err := c.authToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"ids": []string{remoteOrderID},
	})
	if err != nil {
		return errors.Wrap(err, "marshal cancel request")
	}

	if err := c.post(ctx, "/v1/external/orders/cancel", tok, body, nil); err != nil {
		return errors.Wrap(err, "cancel remote order")
	}
	return nil
}

// FetchLabel returns the label download URL for a shipment. Errors
// propagate to the caller.
func (c *Client) FetchLabel(ctx context.Context, shipmentID string) (string, error) {
	tok, err := c.authToken(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"shipment_id": []string{shipmentID},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal label request")
	}

	var out struct {
		LabelURL string `json:"label_url"`
	}
	if err := c.post(ctx, "/v1/external/courier/generate/label", tok, body, &out); err != nil {
		return "", errors.Wrap(err, "fetch label")
	}
	return out.LabelURL, nil
}

func (c *Client) post(ctx context.Context, path, tok string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// splitName splits a full name into the provider's first/last fields. A
// single-word name leaves the last name empty.
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	i := strings.LastIndexByte(full, ' ')
	if i < 0 {
		return full, ""
	}
	return strings.TrimSpace(full[:i]), full[i+1:]
}
