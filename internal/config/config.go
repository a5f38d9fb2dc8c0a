package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "WINESTORE"

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"

	ProviderFake        = "fake"
	ProviderFlutterwave = "flutterwave"

	ModeCard     = "card"
	ModeHosted   = "hosted"
	ModeTransfer = "transfer"
)

type Config struct {
	Service     ServiceConfig     `mapstructure:"service"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Log         LogConfig         `mapstructure:"log"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Mongo       MongoConfig       `mapstructure:"mongo"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Flutterwave FlutterwaveConfig `mapstructure:"flutterwave"`
	Checkout    CheckoutConfig    `mapstructure:"checkout"`
	Delivery    DeliveryConfig    `mapstructure:"delivery"`
}

type ServiceConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type PaymentConfig struct {
	Provider             string        `mapstructure:"provider"`
	Mode                 string        `mapstructure:"mode"`
	Currency             string        `mapstructure:"currency"`
	ProviderTimeout      time.Duration `mapstructure:"provider_timeout"`
	ReverifyInterval     time.Duration `mapstructure:"reverify_interval"`
	ReverifyMaxAttempts  int           `mapstructure:"reverify_max_attempts"`
	ReverifyPollInterval time.Duration `mapstructure:"reverify_poll_interval"`
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	RedirectURL          string        `mapstructure:"redirect_url"`
	WebhookSecret        string        `mapstructure:"webhook_secret"`
}

type FlutterwaveConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	SecretKey     string `mapstructure:"secret_key"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

type CheckoutConfig struct {
	CartClearRetries int           `mapstructure:"cart_clear_retries"`
	CartClearBackoff time.Duration `mapstructure:"cart_clear_backoff"`
}

type DeliveryConfig struct {
	Options []DeliveryOption `mapstructure:"options"`
}

type DeliveryOption struct {
	ID    string `mapstructure:"id"`
	Type  string `mapstructure:"type"`
	Text  string `mapstructure:"text"`
	Price int64  `mapstructure:"price"`
}

// Load reads configuration from defaults, an optional YAML file and WINESTORE_* environment
// variables, in increasing precedence. A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "winestore")
	v.SetDefault("service.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("storage.driver", StorageMemory)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "winestore")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "winestore")

	v.SetDefault("payment.provider", ProviderFake)
	v.SetDefault("payment.mode", ModeCard)
	v.SetDefault("payment.currency", "NGN")
	v.SetDefault("payment.provider_timeout", 15*time.Second)
	v.SetDefault("payment.reverify_interval", 10*time.Minute)
	v.SetDefault("payment.reverify_max_attempts", 12)
	v.SetDefault("payment.reverify_poll_interval", 5*time.Second)
	v.SetDefault("payment.session_ttl", 15*time.Minute)
	v.SetDefault("payment.redirect_url", "http://localhost:8080/payments/redirect")
	v.SetDefault("payment.webhook_secret", "")

	v.SetDefault("flutterwave.base_url", "https://api.flutterwave.com")
	v.SetDefault("flutterwave.secret_key", "")
	v.SetDefault("flutterwave.encryption_key", "")

	v.SetDefault("checkout.cart_clear_retries", 3)
	v.SetDefault("checkout.cart_clear_backoff", time.Second)

	v.SetDefault("delivery.options", []map[string]any{
		{"id": "standard", "type": "delivery", "text": "Doorstep delivery in 3-5 days", "price": 250000},
		{"id": "pickup", "type": "pickup", "text": "Pick up at the store", "price": 0},
	})
}

// Validate rejects configurations the process cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageMongo:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	switch c.Payment.Provider {
	case ProviderFake, ProviderFlutterwave:
	default:
		errs = append(errs, fmt.Errorf("payment.provider %q is not supported", c.Payment.Provider))
	}
	switch c.Payment.Mode {
	case ModeCard, ModeHosted, ModeTransfer:
	default:
		errs = append(errs, fmt.Errorf("payment.mode %q is not supported", c.Payment.Mode))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret is required"))
	}
	if c.Payment.ProviderTimeout <= 0 || c.Payment.ReverifyInterval <= 0 || c.Payment.ReverifyPollInterval <= 0 {
		errs = append(errs, errors.New("payment timeouts and intervals must be positive"))
	}
	if c.Payment.SessionTTL <= 0 {
		errs = append(errs, errors.New("payment.session_ttl must be positive"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http.shutdown_timeout must be positive"))
	}
	if c.Payment.Provider == ProviderFlutterwave && c.Flutterwave.SecretKey == "" {
		errs = append(errs, errors.New("flutterwave.secret_key is required"))
	}
	ids := make(map[string]struct{}, len(c.Delivery.Options))
	for _, o := range c.Delivery.Options {
		if o.ID == "" || o.Price < 0 {
			errs = append(errs, fmt.Errorf("delivery option %q is invalid", o.ID))
		}
		if _, dup := ids[o.ID]; dup {
			errs = append(errs, fmt.Errorf("delivery option %q is duplicated", o.ID))
		}
		ids[o.ID] = struct{}{}
	}
	return errors.Join(errs...)
}

// DeliveryFee returns the price of the named delivery option.
func (c DeliveryConfig) DeliveryFee(id string) (int64, bool) {
	for _, o := range c.Options {
		if o.ID == id {
			return o.Price, true
		}
	}
	return 0, false
}
