package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
)

// RazorpayConfig holds API credentials for the order-plus-signature protocol.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
}

// Razorpay implements the order + signature protocol: a remote order is
// created for the amount in minor units, and the client-side payment is
// verified by recomputing an HMAC-SHA256 over "orderID|paymentID".
type Razorpay struct {
	cfg    RazorpayConfig
	client *http.Client
}

// NewRazorpay creates the adapter. The HTTP client should carry a bounded
// timeout; a timed-out call is never treated as confirmed.
func NewRazorpay(cfg RazorpayConfig, client *http.Client) *Razorpay {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	return &Razorpay{cfg: cfg, client: client}
}

var _ Gateway = (*Razorpay)(nil)

// Initiate creates a provider-side order and returns its id for the client
// checkout widget.
func (g *Razorpay) Initiate(ctx context.Context, o OrderInfo) (*Session, error) {
	body, err := json.Marshal(map[string]any{
		"amount":   minorUnits(o.Amount),
		"currency": o.Currency,
		"receipt":  o.OrderID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal order request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build order request")
	}
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "create remote order")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("create remote order: status %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&created); err != nil {
		return nil, errors.Wrap(err, "decode order response")
	}

	return &Session{
		Method:    MethodRazorpay,
		Reference: created.ID,
		Fields: map[string]string{
			"key":      g.cfg.KeyID,
			"order_id": created.ID,
		},
	}, nil
}

// VerifySignature checks the client-supplied signature against
// HMAC-SHA256(secret, remoteOrderID + "|" + paymentID). Pure: identical
// inputs always verify identically. A mismatch returns
// ErrSignatureMismatch and nothing else happens.
func (g *Razorpay) VerifySignature(remoteOrderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, []byte(g.cfg.KeySecret))
	mac.Write([]byte(remoteOrderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
