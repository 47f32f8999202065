package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/report"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	Redis        RedisConfig
	SMTP         SMTPConfig
	Mail         MailConfig
	Stock        StockConfig
	Summary      SummaryConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig enables idempotent order placement when Addr is set.
type RedisConfig struct {
	Addr           string        `default:"" usage:"Redis address, empty disables Idempotency-Key support"`
	Password       string        `default:"" usage:"Redis password"`
	DB             int           `default:"0" usage:"Redis database"`
	IdempotencyTTL time.Duration `default:"24h" usage:"How long an Idempotency-Key is remembered" flag:"idempotency-ttl"`
}

// SMTPConfig configures outgoing mail. Messages are only logged when Host is
// empty.
type SMTPConfig struct {
	Host     string `default:"" usage:"SMTP relay host"`
	Port     int    `default:"587" usage:"SMTP relay port"`
	Username string `default:"" usage:"SMTP username"`
	Password string `default:"" usage:"SMTP password"`
	From     string `default:"noreply@storefront.local" usage:"Sender address"`
}

// MailConfig tunes the notification queue.
type MailConfig struct {
	QueueSize int    `default:"256" usage:"Pending email queue size"`
	Workers   int    `default:"2" usage:"Concurrent email senders"`
	Currency  string `default:"Rp" usage:"Currency prefix in emails"`
}

// StockConfig controls inventory alerts.
type StockConfig struct {
	LowThreshold int `default:"10" usage:"Stock level below which sellers are alerted" flag:"low-stock-threshold"`
}

// SummaryConfig controls the weekly seller sales summary.
type SummaryConfig struct {
	Enabled     bool   `default:"true" usage:"Send weekly summaries in the background"`
	Schedule    string `default:"0 0 * * 0" usage:"Cron expression of the summary run, evaluated in Location"`
	Concurrency int    `default:"4" usage:"Sellers processed at once"`
	Location    string `default:"UTC" usage:"Time zone of dashboards and summaries"`
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

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "STOREFRONT"
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	loader := aconfig.LoaderFor(&cfg, base)
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if c.APIKeyPepper == "" {
		return errors.New("API key pepper is required: set STOREFRONT_API_KEY_PEPPER")
	}
	if _, err := c.Summary.location(); err != nil {
		return err
	}
	if _, err := report.ParseSchedule(c.Summary.Schedule); err != nil {
		return errors.Wrap(err, "summary schedule")
	}
	return nil
}

func (c SummaryConfig) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "summary location %q", c.Location)
	}
	return loc, nil
}

// applyPlatformDefaults maps DATABASE_URL and PORT, as set by hosting
// platforms, onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
