package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPSecure   bool   `envconfig:"SMTP_SECURE" default:"false"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`

	SenderName    string `envconfig:"SENDER_NAME" default:"Release Notes"`
	SenderAddress string `envconfig:"SENDER_ADDRESS" default:"announcements@localhost"`

	// ----------------------------
	// Site
	// ----------------------------
	SiteName string `envconfig:"SITE_NAME" default:"Release Notes"`
	// SiteURL is the public base URL used to build absolute unsubscribe links.
	SiteURL string `envconfig:"SITE_URL" default:"http://localhost:3000"`

	// ----------------------------
	// Dispatch
	// ----------------------------
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"15"`
	MessageDelay time.Duration `envconfig:"MESSAGE_DELAY" default:"5s"`
	BatchDelay   time.Duration `envconfig:"BATCH_DELAY" default:"60s"`

	ActiveInterval time.Duration `envconfig:"ACTIVE_INTERVAL" default:"5s"`
	IdleInterval   time.Duration `envconfig:"IDLE_INTERVAL" default:"30s"`

	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"60s"`
	RetryMaxDelay  time.Duration `envconfig:"RETRY_MAX_DELAY" default:"30m"`

	HistoryLimit int `envconfig:"HISTORY_LIMIT" default:"100"`

	// RecipientErrorCodes are the relay response signatures treated as
	// per-recipient failures; anything else pauses the whole job.
	RecipientErrorCodes []string `envconfig:"RECIPIENT_ERROR_CODES" default:"RCPT_TO_FAILED,INVALID_RECIPIENT,USER_NOT_FOUND,MAILBOX_FULL,DOMAIN_NOT_FOUND,550,551,552,553"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
