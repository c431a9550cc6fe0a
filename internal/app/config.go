package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (AURUM_ prefix), flags, or YAML config files.
type Config struct {
	Addr             string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL      string `usage:"PostgreSQL connection URL (AURUM_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	CreditNotePrefix string `default:"AUR" usage:"Prefix for cancellation credit note ids" flag:"credit-note-prefix"`

	Kafka     KafkaConfig
	Payment   PaymentConfig
	Shipment  ShipmentConfig
	Sweeper   SweeperConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// KafkaConfig selects the notification transport. With no brokers the
// service falls back to log-only notifications.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses; empty disables Kafka notifications"`
}

// PaymentConfig carries per-gateway credentials. Secrets arrive via
// environment only and are never logged.
type PaymentConfig struct {
	SuccessURL string `default:"/payment/success" usage:"Browser landing page after successful payment" flag:"payment-success-url"`
	FailureURL string `default:"/payment/failure" usage:"Browser landing page after failed payment" flag:"payment-failure-url"`

	CCAvenue CCAvenueConfig
	Razorpay RazorpayConfig
	PhonePe  PhonePeConfig
}

// CCAvenueConfig holds the encrypted redirect-form gateway credentials.
type CCAvenueConfig struct {
	MerchantID  string `usage:"CCAvenue merchant id"`
	AccessCode  string `usage:"CCAvenue access code"`
	WorkingKey  string `usage:"CCAvenue working key (cipher key material)"`
	GatewayURL  string `default:"https://secure.ccavenue.com/transaction/transaction.do?command=initiateTransaction" usage:"CCAvenue transaction endpoint"`
	RedirectURL string `usage:"Absolute URL of the ccavenue callback endpoint"`
	CancelURL   string `usage:"Absolute URL the gateway redirects to on user cancel"`
}

// RazorpayConfig holds the order-plus-signature gateway credentials.
type RazorpayConfig struct {
	KeyID     string `usage:"Razorpay key id"`
	KeySecret string `usage:"Razorpay key secret (HMAC signing key)"`
	BaseURL   string `default:"https://api.razorpay.com" usage:"Razorpay API base URL"`
}

// PhonePeConfig holds the checksum-protocol gateway credentials.
type PhonePeConfig struct {
	MerchantID  string `usage:"PhonePe merchant id"`
	SaltKey     string `usage:"PhonePe salt key (checksum material)"`
	SaltIndex   string `default:"1" usage:"PhonePe salt index"`
	BaseURL     string `default:"https://api.phonepe.com/apis/hermes" usage:"PhonePe API base URL"`
	RedirectURL string `usage:"Browser redirect target after PhonePe payment"`
	CallbackURL string `usage:"Absolute URL of the phonepe callback endpoint"`
}

// ShipmentConfig holds logistics provider credentials.
type ShipmentConfig struct {
	BaseURL  string        `usage:"Logistics provider API base URL"`
	Email    string        `usage:"Provider account email"`
	Password string        `usage:"Provider account password"`
	TokenTTL time.Duration `default:"24h" usage:"How long a provider auth token is reused" flag:"shipment-token-ttl"`
}

// SweeperConfig controls the abandoned-cart reminder loop.
type SweeperConfig struct {
	Interval  time.Duration `default:"10m" usage:"How often the idle cart scan runs" flag:"sweeper-interval"`
	IdleAfter time.Duration `default:"24h" usage:"Cart idle age before a reminder is due" flag:"sweeper-idle-after"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "AURUM",
		Files:     []string{"config.yaml", "/etc/aurum/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set AURUM_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the application's AURUM_-
// prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
