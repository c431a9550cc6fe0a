package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

// PhonePeConfig holds merchant credentials for the checksum protocol.
type PhonePeConfig struct {
	MerchantID  string
	SaltKey     string
	SaltIndex   string
	BaseURL     string
	RedirectURL string
	CallbackURL string
}

const phonePePayPath = "/pg/v1/pay"

// PhonePe implements the checksum + base64-payload protocol: the JSON
// request rides base64-encoded under a SHA256 checksum salted with the
// merchant key and suffixed with the salt index.
type PhonePe struct {
	cfg    PhonePeConfig
	client *http.Client
	now    func() time.Time
}

// NewPhonePe creates the adapter.
func NewPhonePe(cfg PhonePeConfig, client *http.Client) *PhonePe {
	return &PhonePe{cfg: cfg, client: client, now: time.Now}
}

var _ Gateway = (*PhonePe)(nil)

// TransactionID derives the merchant transaction id for an order:
// MT<epoch-ms>_<last 6 of order id>.
func (g *PhonePe) TransactionID(orderID string) string {
	tail := orderID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return fmt.Sprintf("MT%d_%s", g.now().UnixMilli(), tail)
}

// Initiate posts the pay request and returns the generated transaction id,
// which the caller persists on the order for later status polls.
func (g *PhonePe) Initiate(ctx context.Context, o OrderInfo) (*Session, error) {
	txnID := g.TransactionID(o.OrderID)

	payload, err := json.Marshal(map[string]any{
		"merchantId":            g.cfg.MerchantID,
		"merchantTransactionId": txnID,
		"merchantUserId":        o.Email,
		"amount":                minorUnits(o.Amount),
		"redirectUrl":           g.cfg.RedirectURL,
		"redirectMode":          "POST",
		"callbackUrl":           g.cfg.CallbackURL,
		"mobileNumber":          o.Phone,
		"paymentInstrument":     map[string]string{"type": "PAY_PAGE"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal pay request")
	}

	b64 := base64.StdEncoding.EncodeToString(payload)
	checksum := g.Checksum(b64 + phonePePayPath)

	body, err := json.Marshal(map[string]string{"request": b64})
	if err != nil {
		return nil, errors.Wrap(err, "marshal request envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+phonePePayPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build pay request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", checksum)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "post pay request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("pay request: status %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			InstrumentResponse struct {
				RedirectInfo struct {
					URL string `json:"url"`
				} `json:"redirectInfo"`
			} `json:"instrumentResponse"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode pay response")
	}

	return &Session{
		Method:      MethodPhonePe,
		Reference:   txnID,
		RedirectURL: out.Data.InstrumentResponse.RedirectInfo.URL,
	}, nil
}

// Checksum computes SHA256(input + saltKey) hex, suffixed with
// "###" + saltIndex.
func (g *PhonePe) Checksum(input string) string {
	sum := sha256.Sum256([]byte(input + g.cfg.SaltKey))
	return hex.EncodeToString(sum[:]) + "###" + g.cfg.SaltIndex
}

// CallbackPayload is the decoded body of a PhonePe server-to-server
// callback.
type CallbackPayload struct {
	Code string `json:"code"`
	Data struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
	} `json:"data"`
}

// DecodeCallback decodes the base64 "response" field of a callback. Success
// means code PAYMENT_SUCCESS; everything else, including a decode failure,
// is a failed payment.
func (g *PhonePe) DecodeCallback(responseB64 string) (*CallbackPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(responseB64)
	if err != nil {
		return nil, errors.Wrap(err, "decode callback body")
	}
	var payload CallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(err, "unmarshal callback body")
	}
	return &payload, nil
}

// Succeeded reports whether the callback marks the payment as completed.
func (p *CallbackPayload) Succeeded() bool {
	return p.Code == "PAYMENT_SUCCESS"
}

// Status polls the transaction state. The checksum covers the status path
// string rather than a payload.
func (g *PhonePe) Status(ctx context.Context, txnID string) (string, error) {
	path := fmt.Sprintf("/pg/v1/status/%s/%s", g.cfg.MerchantID, txnID)
	checksum := g.Checksum(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return "", errors.Wrap(err, "build status request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", checksum)
	req.Header.Set("X-MERCHANT-ID", g.cfg.MerchantID)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "poll status")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("poll status: status %d", resp.StatusCode)
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode status response")
	}
	return out.Code, nil
}
