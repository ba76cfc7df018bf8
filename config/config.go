package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultPort             = "3000"
	DefaultBackendURL       = "https://cpms-stg.evnet.xyz"
	DefaultBackendTimeout   = 15
	DefaultPollInterval     = 13 * time.Second
	DefaultFinalizeDwell    = 2 * time.Second
	DefaultFormTTL          = 30 * time.Minute
	DefaultLedgerDir        = "./data/authorizations"
	DefaultAuthorizationTTL = 120 * time.Second
	defaultConfigPathEnv    = "CONFIG_FILE"

	PaymentModeElements = "elements"
	PaymentModeRedirect = "redirect"

	LedgerDriverCSV      = "csv"
	LedgerDriverPostgres = "postgres"
	LedgerDriverNone     = "none"
)

// HTTPConfig controls the listening socket and the externally visible base URL.
// SelfSignedTLS serves HTTPS with a generated localhost certificate, which
// Stripe.js needs when testing without a tunnel.
type HTTPConfig struct {
	Port          string `yaml:"port" env:"HTTP_PORT"`
	PublicURL     string `yaml:"publicUrl" env:"PUBLIC_URL"`
	SelfSignedTLS bool   `yaml:"selfSignedTls" env:"HTTP_SELF_SIGNED_TLS"`
}

// BackendConfig points at the charging backend.
type BackendConfig struct {
	BaseURL        string `yaml:"baseUrl" env:"BACKEND_API_URL"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"BACKEND_TIMEOUT_SECONDS"`
}

// StripeConfig holds the payment provider keys.
type StripeConfig struct {
	SecretKey     string `yaml:"secretKey" env:"STRIPE_SECRET_KEY"`
	PublicKey     string `yaml:"publicKey" env:"STRIPE_PUBLIC_KEY"`
	WebhookSecret string `yaml:"webhookSecret" env:"STRIPE_WEBHOOK_SECRET"`
}

// PaymentConfig selects how the authorization handle is obtained.
// "elements" renders an embedded card form bound to a client secret,
// "redirect" sends the guest to a hosted page returned by the backend.
type PaymentConfig struct {
	Mode            string `yaml:"mode" env:"PAYMENT_MODE"`
	FormTTLMinutes  int    `yaml:"formTtlMinutes" env:"PAYMENT_FORM_TTL_MINUTES"`
	CacheTTLSeconds int    `yaml:"cacheTtlSeconds" env:"PAYMENT_CACHE_TTL_SECONDS"`
}

// SessionConfig tunes the live session page.
type SessionConfig struct {
	PollIntervalSeconds int `yaml:"pollIntervalSeconds" env:"SESSION_POLL_INTERVAL_SECONDS"`
	FinalizeDwellMillis int `yaml:"finalizeDwellMillis" env:"SESSION_FINALIZE_DWELL_MILLIS"`
}

// OperatorConfig protects the operator pages (QR code printing).
// Operator pages are disabled when PasswordHash is empty.
type OperatorConfig struct {
	PasswordHash string `yaml:"passwordHash" env:"OPERATOR_PASSWORD_HASH"`
	JWTSecret    string `yaml:"jwtSecret" env:"OPERATOR_JWT_SECRET"`
}

// RedisConfig enables the shared authorization cache. Empty Addr keeps it in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
}

// LedgerConfig selects where authorization records are kept.
type LedgerConfig struct {
	Driver string `yaml:"driver" env:"LEDGER_DRIVER"`
	Dir    string `yaml:"dir" env:"LEDGER_DIR"`
	DSN    string `yaml:"dsn" env:"LEDGER_DSN"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// AppConfig represents the application configuration
type AppConfig struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Backend  BackendConfig  `yaml:"backend"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Payment  PaymentConfig  `yaml:"payment"`
	Session  SessionConfig  `yaml:"session"`
	Operator OperatorConfig `yaml:"operator"`
	Redis    RedisConfig    `yaml:"redis"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns a configuration populated with fallback values.
func Default() *AppConfig {
	return &AppConfig{
		HTTP:    HTTPConfig{Port: DefaultPort},
		Backend: BackendConfig{BaseURL: DefaultBackendURL, TimeoutSeconds: DefaultBackendTimeout},
		Payment: PaymentConfig{
			Mode:            PaymentModeRedirect,
			FormTTLMinutes:  int(DefaultFormTTL / time.Minute),
			CacheTTLSeconds: int(DefaultAuthorizationTTL / time.Second),
		},
		Session: SessionConfig{
			PollIntervalSeconds: int(DefaultPollInterval / time.Second),
			FinalizeDwellMillis: int(DefaultFinalizeDwell / time.Millisecond),
		},
		Ledger: LedgerConfig{Driver: LedgerDriverCSV, Dir: DefaultLedgerDir},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// CONFIG_FILE when path is empty) and environment overrides, then validates it.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(defaultConfigPathEnv)
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := populateFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}

	return nil
}

// Validate reports every problem in the configuration at once.
func (c *AppConfig) Validate() error {
	var result *multierror.Error

	u, err := url.Parse(strings.TrimSpace(c.Backend.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("backend.baseUrl must be an absolute http(s) URL, got %q", c.Backend.BaseURL))
	}

	if c.HTTP.PublicURL != "" {
		if p, err := url.Parse(c.HTTP.PublicURL); err != nil || p.Scheme == "" || p.Host == "" {
			result = multierror.Append(result, fmt.Errorf("http.publicUrl must be an absolute URL, got %q", c.HTTP.PublicURL))
		}
	}

	switch c.Payment.Mode {
	case PaymentModeRedirect:
	case PaymentModeElements:
		if strings.TrimSpace(c.Stripe.SecretKey) == "" {
			result = multierror.Append(result, errors.New("stripe.secretKey is required in elements mode"))
		}
		if strings.TrimSpace(c.Stripe.PublicKey) == "" {
			result = multierror.Append(result, errors.New("stripe.publicKey is required in elements mode"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("payment.mode must be %q or %q, got %q", PaymentModeElements, PaymentModeRedirect, c.Payment.Mode))
	}

	if c.Session.PollIntervalSeconds <= 0 {
		result = multierror.Append(result, errors.New("session.pollIntervalSeconds must be positive"))
	}
	if c.Session.FinalizeDwellMillis < 0 {
		result = multierror.Append(result, errors.New("session.finalizeDwellMillis must not be negative"))
	}

	switch c.Ledger.Driver {
	case LedgerDriverNone:
	case LedgerDriverCSV:
		if strings.TrimSpace(c.Ledger.Dir) == "" {
			result = multierror.Append(result, errors.New("ledger.dir is required for the csv driver"))
		}
	case LedgerDriverPostgres:
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			result = multierror.Append(result, errors.New("ledger.dsn is required for the postgres driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("ledger.driver %q is not supported", c.Ledger.Driver))
	}

	if c.Operator.PasswordHash != "" && len(c.Operator.JWTSecret) < 16 {
		result = multierror.Append(result, errors.New("operator.jwtSecret must be at least 16 characters when operator pages are enabled"))
	}

	return result.ErrorOrNil()
}

// HTTPAddress returns :port style.
func (c *AppConfig) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = DefaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// BackendTimeout returns the outbound HTTP client timeout.
func (c *AppConfig) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return DefaultBackendTimeout * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *AppConfig) PollInterval() time.Duration {
	if c.Session.PollIntervalSeconds <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.Session.PollIntervalSeconds) * time.Second
}

func (c *AppConfig) FinalizeDwell() time.Duration {
	if c.Session.FinalizeDwellMillis < 0 {
		return DefaultFinalizeDwell
	}
	return time.Duration(c.Session.FinalizeDwellMillis) * time.Millisecond
}

func (c *AppConfig) FormTTL() time.Duration {
	if c.Payment.FormTTLMinutes <= 0 {
		return DefaultFormTTL
	}
	return time.Duration(c.Payment.FormTTLMinutes) * time.Minute
}

func (c *AppConfig) AuthorizationCacheTTL() time.Duration {
	if c.Payment.CacheTTLSeconds <= 0 {
		return DefaultAuthorizationTTL
	}
	return time.Duration(c.Payment.CacheTTLSeconds) * time.Second
}

// OperatorEnabled reports whether the operator pages should be served.
func (c *AppConfig) OperatorEnabled() bool {
	return strings.TrimSpace(c.Operator.PasswordHash) != ""
}

func populateFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldVal := v.Field(i)
		fieldType := t.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		rawKey := fieldType.Tag.Get("env")
		if rawKey == "-" {
			continue
		}

		var envKey string
		if rawKey != "" {
			envKey = normalizeKey("", rawKey)
		} else {
			envKey = normalizeKey(prefix, fieldType.Name)
		}

		if fieldVal.Kind() == reflect.Struct {
			if err := populateFromEnv(fieldVal, envKey); err != nil {
				return err
			}
			continue
		}

		if val, ok := os.LookupEnv(envKey); ok {
			if err := assign(fieldVal, val); err != nil {
				return fmt.Errorf("config: parse %s: %w", envKey, err)
			}
		}
	}
	return nil
}

func normalizeKey(prefix, key string) string {
	key = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

func assign(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type().String())
	}
	return nil
}
