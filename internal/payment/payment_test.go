package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCCAvenue_EncryptDecryptRoundTrip(t *testing.T) {
	g := NewCCAvenue(CCAvenueConfig{WorkingKey: "8A57C3E1F09B4D26A4E8C1D57B3F0A92"})

	tests := []string{
		"merchant_id=M1&order_id=ord-1&amount=44547.50&currency=INR",
		"a",
		strings.Repeat("x", 16),  // exact block multiple still round-trips
		strings.Repeat("q", 255), //
	}

	for _, plain := range tests {
		enc, err := g.Encrypt(plain)
		require.NoError(t, err)
		assert.NotEqual(t, plain, enc)

		dec, err := g.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plain, dec)
	}
}

func TestCCAvenue_DecryptRejectsGarbage(t *testing.T) {
	g := NewCCAvenue(CCAvenueConfig{WorkingKey: "key"})

	_, err := g.Decrypt("not-hex")
	assert.Error(t, err)

	_, err = g.Decrypt(hex.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestCCAvenue_HandleCallback(t *testing.T) {
	g := NewCCAvenue(CCAvenueConfig{WorkingKey: "wk"})

	tests := []struct {
		name        string
		orderStatus string
		wantSuccess bool
	}{
		{"success status confirms", "Success", true},
		{"failure status fails", "Failure", false},
		{"aborted status fails", "Aborted", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := g.Encrypt("order_id=ord-9&order_status=" + tt.orderStatus)
			require.NoError(t, err)

			res, err := g.HandleCallback(enc)
			require.NoError(t, err)
			assert.Equal(t, "ord-9", res.OrderID)
			assert.Equal(t, tt.wantSuccess, res.Success)
		})
	}
}

func TestCCAvenue_InitiateBuildsEncryptedForm(t *testing.T) {
	g := NewCCAvenue(CCAvenueConfig{
		MerchantID: "M1",
		AccessCode: "AC1",
		WorkingKey: "wk",
		GatewayURL: "https://secure.example/transaction",
	})

	sess, err := g.Initiate(context.Background(), OrderInfo{
		OrderID:  "ord-1",
		Amount:   decimal.RequireFromString("44547.5"),
		Currency: "INR",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://secure.example/transaction", sess.RedirectURL)
	assert.Equal(t, "AC1", sess.Fields["access_code"])

	plain, err := g.Decrypt(sess.Fields["encRequest"])
	require.NoError(t, err)
	assert.Contains(t, plain, "order_id=ord-1")
	assert.Contains(t, plain, "amount=44547.50")
}

func TestRazorpay_VerifySignature(t *testing.T) {
	g := NewRazorpay(RazorpayConfig{KeySecret: "S"}, http.DefaultClient)

	sign := func(secret, orderID, paymentID string) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(orderID + "|" + paymentID))
		return hex.EncodeToString(mac.Sum(nil))
	}

	good := sign("S", "order_abc123", "pay_1")
	require.NoError(t, g.VerifySignature("order_abc123", "pay_1", good))
	// Deterministic: same inputs verify again.
	require.NoError(t, g.VerifySignature("order_abc123", "pay_1", good))

	tests := []struct {
		name string
		sig  string
	}{
		{"signature from wrong secret", sign("X", "order_abc123", "pay_1")},
		{"signature over wrong payment id", sign("S", "order_abc123", "pay_2")},
		{"signature over wrong order id", sign("S", "order_abc124", "pay_1")},
		{"garbage signature", "deadbeef"},
		{"empty signature", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.VerifySignature("order_abc123", "pay_1", tt.sig)
			assert.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}
}

func TestRazorpay_InitiateCreatesMinorUnitOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "kid", user)
		assert.Equal(t, "S", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"order_remote9"}`))
	}))
	defer srv.Close()

	g := NewRazorpay(RazorpayConfig{KeyID: "kid", KeySecret: "S", BaseURL: srv.URL}, srv.Client())

	sess, err := g.Initiate(context.Background(), OrderInfo{
		OrderID:  "ord-1",
		Amount:   decimal.RequireFromString("56000"),
		Currency: "INR",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_remote9", sess.Reference)
	assert.EqualValues(t, 5600000, got["amount"])
	assert.Equal(t, "ord-1", got["receipt"])
}

func TestPhonePe_TransactionIDShape(t *testing.T) {
	g := NewPhonePe(PhonePeConfig{}, http.DefaultClient)
	g.now = func() time.Time { return time.UnixMilli(1700000000000) }

	assert.Equal(t, "MT1700000000000_abc123", g.TransactionID("9f3e-77aa-abc123"))
	assert.Equal(t, "MT1700000000000_ab12", g.TransactionID("ab12"))
}

func TestPhonePe_ChecksumShape(t *testing.T) {
	g := NewPhonePe(PhonePeConfig{SaltKey: "salt", SaltIndex: "1"}, http.DefaultClient)

	payload := "eyJmb28iOiJiYXIifQ=="
	sum := sha256.Sum256([]byte(payload + "/pg/v1/pay" + "salt"))
	want := hex.EncodeToString(sum[:]) + "###1"

	assert.Equal(t, want, g.Checksum(payload+"/pg/v1/pay"))
}

func TestPhonePe_InitiateSendsVerifiedEnvelope(t *testing.T) {
	cfg := PhonePeConfig{MerchantID: "MID", SaltKey: "salt", SaltIndex: "1"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pg/v1/pay", r.URL.Path)

		var envelope struct {
			Request string `json:"request"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))

		sum := sha256.Sum256([]byte(envelope.Request + "/pg/v1/pay" + "salt"))
		assert.Equal(t, hex.EncodeToString(sum[:])+"###1", r.Header.Get("X-VERIFY"))

		_, _ = w.Write([]byte(`{"data":{"instrumentResponse":{"redirectInfo":{"url":"https://pay.example/x"}}}}`))
	}))
	defer srv.Close()
	cfg.BaseURL = srv.URL

	g := NewPhonePe(cfg, srv.Client())
	sess, err := g.Initiate(context.Background(), OrderInfo{
		OrderID: "ord-42abcd",
		Amount:  decimal.NewFromInt(1000),
		Phone:   "9999999999",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.Reference, "MT"))
	assert.True(t, strings.HasSuffix(sess.Reference, "_42abcd"))
	assert.Equal(t, "https://pay.example/x", sess.RedirectURL)
}

func TestPhonePe_DecodeCallback(t *testing.T) {
	g := NewPhonePe(PhonePeConfig{}, http.DefaultClient)

	body := `{"code":"PAYMENT_SUCCESS","data":{"merchantTransactionId":"MT1_x","amount":100000}}`
	b64 := base64Encode(body)

	payload, err := g.DecodeCallback(b64)
	require.NoError(t, err)
	assert.True(t, payload.Succeeded())
	assert.Equal(t, "MT1_x", payload.Data.MerchantTransactionID)

	failed := base64Encode(`{"code":"PAYMENT_ERROR","data":{}}`)
	payload, err = g.DecodeCallback(failed)
	require.NoError(t, err)
	assert.False(t, payload.Succeeded())

	_, err = g.DecodeCallback("%%%not-base64%%%")
	assert.Error(t, err)
}

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
