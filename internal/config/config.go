package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is loaded once at process start and passed through constructors.
// It is never mutated after New returns.
type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Delivery *deliveryConfig
	Blob     *blobConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"inspections"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"INSPECTION_API_ADDRESS" default:":3443"`
	MetricsAddress  string `envconfig:"INSPECTION_API_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string `envconfig:"INSPECTION_API_BASE_URL" default:"https://localhost:3443"`
	LogLevel        string `envconfig:"INSPECTION_API_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"INSPECTION_API_MIGRATIONS_FOLDER" default:""`
}

type deliveryConfig struct {
	Channel       string        `envconfig:"INSPECTION_API_MAIL_CHANNEL" default:""`
	MaxRetries    int           `envconfig:"INSPECTION_API_DELIVERY_MAX_RETRIES" default:"3"`
	BatchSize     int           `envconfig:"INSPECTION_API_DELIVERY_BATCH_SIZE" default:"10"`
	Interval      time.Duration `envconfig:"INSPECTION_API_DELIVERY_INTERVAL" default:"30s"`
	SendTimeout   time.Duration `envconfig:"INSPECTION_API_DELIVERY_SEND_TIMEOUT" default:"5s"`
	FromAddress   string        `envconfig:"INSPECTION_API_MAIL_FROM" default:""`
	FromName      string        `envconfig:"INSPECTION_API_MAIL_FROM_NAME" default:""`
	SmtpHost      string        `envconfig:"INSPECTION_API_SMTP_HOST" default:""`
	SmtpPort      string        `envconfig:"INSPECTION_API_SMTP_PORT" default:"587"`
	SmtpUser      string        `envconfig:"INSPECTION_API_SMTP_USER" default:""`
	SmtpPassword  string        `envconfig:"INSPECTION_API_SMTP_PASS" default:""`
	SendgridKey   string        `envconfig:"INSPECTION_API_SENDGRID_API_KEY" default:""`
	SendgridUrl   string        `envconfig:"INSPECTION_API_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
}

type blobConfig struct {
	Endpoint  string `envconfig:"INSPECTION_API_BLOB_ENDPOINT" default:""`
	Bucket    string `envconfig:"INSPECTION_API_BLOB_BUCKET" default:"inspection-reports"`
	AccessKey string `envconfig:"INSPECTION_API_BLOB_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"INSPECTION_API_BLOB_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"INSPECTION_API_BLOB_USE_SSL" default:"false"`
}

func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefault returns a configuration suitable for tests: an in-process shared
// sqlite database and delivery defaults matching production.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: "file::memory:?cache=shared",
		},
		Service: &svcConfig{
			Address:  "localhost:0",
			LogLevel: "info",
		},
		Delivery: &deliveryConfig{
			MaxRetries:  3,
			BatchSize:   10,
			Interval:    30 * time.Second,
			SendTimeout: 5 * time.Second,
		},
		Blob: &blobConfig{},
	}
}
