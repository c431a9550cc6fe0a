package payment

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/hex"
	"net/url"

	"github.com/go-faster/errors"
)

// CCAvenueConfig holds the merchant credentials and URLs for the encrypted
// redirect-form protocol.
type CCAvenueConfig struct {
	MerchantID  string
	AccessCode  string
	WorkingKey  string
	GatewayURL  string
	RedirectURL string
	CancelURL   string
}

// CCAvenue implements the block-cipher redirect-form protocol: the request
// is a query string encrypted with AES-128-CBC, the key being the MD5 digest
// of the merchant's working key, with a fixed 16-byte IV.
type CCAvenue struct {
	cfg CCAvenueConfig
	key []byte
}

// NewCCAvenue creates the adapter, deriving the cipher key once.
func NewCCAvenue(cfg CCAvenueConfig) *CCAvenue {
	sum := md5.Sum([]byte(cfg.WorkingKey))
	return &CCAvenue{cfg: cfg, key: sum[:]}
}

var _ Gateway = (*CCAvenue)(nil)

// ccavenueIV is the protocol's fixed initialization vector, bytes 0x00..0x0f.
var ccavenueIV = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// Initiate builds the billing query string, encrypts it, and returns the
// form fields the browser posts to the gateway.
func (g *CCAvenue) Initiate(_ context.Context, o OrderInfo) (*Session, error) {
	v := url.Values{}
	v.Set("merchant_id", g.cfg.MerchantID)
	v.Set("order_id", o.OrderID)
	v.Set("currency", o.Currency)
	v.Set("amount", o.Amount.StringFixed(2))
	v.Set("billing_name", o.CustomerName)
	v.Set("billing_email", o.Email)
	v.Set("billing_tel", o.Phone)
	v.Set("billing_address", o.Address)
	v.Set("billing_city", o.City)
	v.Set("billing_state", o.State)
	v.Set("billing_zip", o.PostalCode)
	v.Set("redirect_url", g.cfg.RedirectURL)
	v.Set("cancel_url", g.cfg.CancelURL)

	enc, err := g.Encrypt(v.Encode())
	if err != nil {
		return nil, errors.Wrap(err, "encrypt payment request")
	}

	return &Session{
		Method:      MethodCCAvenue,
		Reference:   o.OrderID,
		RedirectURL: g.cfg.GatewayURL,
		Fields: map[string]string{
			"encRequest":  enc,
			"access_code": g.cfg.AccessCode,
		},
	}, nil
}

// CallbackResult is the decoded merchant post-back.
type CallbackResult struct {
	OrderID string
	Success bool
	Params  url.Values
}

// HandleCallback decrypts the encResp blob the gateway posts back and reads
// the order outcome. Anything other than order_status "Success" is a failed
// payment; the caller still redirects the browser either way.
func (g *CCAvenue) HandleCallback(encResp string) (*CallbackResult, error) {
	plain, err := g.Decrypt(encResp)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt payment response")
	}

	params, err := url.ParseQuery(plain)
	if err != nil {
		return nil, errors.Wrap(err, "parse payment response")
	}

	return &CallbackResult{
		OrderID: params.Get("order_id"),
		Success: params.Get("order_status") == "Success",
		Params:  params,
	}, nil
}

// Encrypt AES-128-CBC encrypts plain with the derived key and fixed IV,
// returning hex ciphertext.
func (g *CCAvenue) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(g.key)
	if err != nil {
		return "", errors.Wrap(err, "create cipher")
	}

	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, ccavenueIV).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (g *CCAvenue) Decrypt(encHex string) (string, error) {
	raw, err := hex.DecodeString(encHex)
	if err != nil {
		return "", errors.Wrap(err, "decode ciphertext")
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a whole number of blocks")
	}

	block, err := aes.NewCipher(g.key)
	if err != nil {
		return "", errors.Wrap(err, "create cipher")
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, ccavenueIV).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	pad := make([]byte, n)
	for i := range pad {
		pad[i] = byte(n)
	}
	return append(b, pad...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
