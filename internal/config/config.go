package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

var singleConfig *Config = nil

type Config struct {
	Prism    *PrismConfig
	Exporter *ExporterConfig
	Export   *ExportConfig
	Pricing  *PricingConfig

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:""`
}

// PrismConfig is the remote inventory endpoint.
type PrismConfig struct {
	Host               string        `envconfig:"NUTANIX_HOST" validate:"required"`
	Port               int           `envconfig:"NUTANIX_PORT" default:"9440" validate:"gt=0,lte=65535"`
	Username           string        `envconfig:"NUTANIX_USERNAME" default:"admin"`
	Password           string        `envconfig:"NUTANIX_PASSWORD" validate:"required"`
	InsecureSkipVerify bool          `envconfig:"NUTANIX_INSECURE_TLS" default:"true"`
	Timeout            time.Duration `envconfig:"NUTANIX_TIMEOUT" default:"30s"`
	PageSize           int           `envconfig:"NUTANIX_PAGE_SIZE" default:"500" validate:"gt=0"`
}

// ExporterConfig drives the continuous metrics exporter.
type ExporterConfig struct {
	Port           int           `envconfig:"EXPORTER_PORT" default:"9090" validate:"gt=0,lte=65535"`
	ScrapeInterval time.Duration `envconfig:"SCRAPE_INTERVAL" default:"60s" validate:"gte=1s"`
}

// ExportConfig drives the daily billing export.
type ExportConfig struct {
	AccountID           string `envconfig:"ACCOUNT_ID" default:"123456"`
	AppID               string `envconfig:"APP_ID" default:""`
	Dir                 string `envconfig:"EXPORT_DIR" default:"/data/exports"`
	Time                string `envconfig:"EXPORT_TIME" default:"01:00" validate:"datetime=15:04"`
	RunNow              bool   `envconfig:"RUN_NOW" default:"false"`
	EmitZeroFileServers bool   `envconfig:"EXPORT_EMIT_ZERO_FILESERVERS" default:"true"`
}

// PricingConfig drives the pricing API.
type PricingConfig struct {
	File    string `envconfig:"PRICING_FILE" default:"/data/pricing/pricing.json"`
	Address string `envconfig:"PRICING_ADDRESS" default:":5000"`
}

// PricingServiceConfig is the subset loaded by the pricing binary, which
// has no Prism connection and must start without NUTANIX_* set.
type PricingServiceConfig struct {
	Pricing *PricingConfig

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:""`
}

// NewPricingService loads the pricing binary's configuration.
func NewPricingService() (*PricingServiceConfig, error) {
	cfg := new(PricingServiceConfig)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "processing environment")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// New loads the configuration from the environment once per process and
// validates it. A validation failure is fatal at startup by contract; no
// loop may start on an invalid configuration.
func New() (*Config, error) {
	if singleConfig == nil {
		cfg := new(Config)
		if err := envconfig.Process("", cfg); err != nil {
			return nil, errors.Wrap(err, "processing environment")
		}
		if err := validator.New().Struct(cfg); err != nil {
			return nil, errors.Wrap(err, "invalid configuration")
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}
