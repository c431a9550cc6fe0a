// Package payment holds the gateway adapters. Three mutually incompatible
// provider protocols coexist; each adapter builds outbound payment requests
// and verifies inbound confirmations for one of them.
//
// Verification is side-effect free: a failed check mutates nothing and
// reports an explicit error. Working keys, secrets and salts never appear in
// logs or responses.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method tags the gateway an order pays through.
type Method string

const (
	MethodCCAvenue Method = "ccavenue"
	MethodRazorpay Method = "razorpay"
	MethodPhonePe  Method = "phonepe"
	MethodCOD      Method = "cod"
)

// ErrSignatureMismatch is returned when a gateway confirmation fails
// cryptographic verification.
var ErrSignatureMismatch = errors.New("invalid payment signature")

// OrderInfo is the gateway-facing projection of an order. Adapters never see
// the order aggregate itself.
type OrderInfo struct {
	OrderID      string
	Amount       decimal.Decimal
	Currency     string
	CustomerName string
	Email        string
	Phone        string
	Address      string
	City         string
	State        string
	PostalCode   string
}

// Session is the material a client needs to complete payment with the
// provider: a redirect target plus provider-specific form fields, and the
// provider-side reference to persist on the order.
type Session struct {
	Method      Method
	Reference   string
	RedirectURL string
	Fields      map[string]string
}

// Confirmation is the unified result of a verified gateway callback,
// regardless of which protocol produced it.
type Confirmation struct {
	OrderID    string
	Reference  string
	Method     Method
	Amount     decimal.Decimal
	Success    bool
	VerifiedAt time.Time
}

// Gateway creates a provider-side payment session for an order.
type Gateway interface {
	Initiate(ctx context.Context, o OrderInfo) (*Session, error)
}

// minorUnits converts a decimal currency amount to integer minor units
// (paise): amount * 100, rounded to drop sub-paisa noise.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
