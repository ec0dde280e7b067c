package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type DashboardConfig struct {
	Port         string `envconfig:"PORT" default:"8080"`
	MetricsPort  string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	SeedFixtures bool   `envconfig:"SEED_FIXTURES" default:"true"`

	// Public form each event's RSVP link points at: <base>/<event id>.
	RSVPBaseURL string `envconfig:"RSVP_BASE_URL" default:"https://example.com/rsvp"`

	// Delivery simulation
	DeliveryLatency time.Duration `envconfig:"DELIVERY_LATENCY" default:"500ms"`
	SendStagger     time.Duration `envconfig:"SEND_STAGGER" default:"500ms"`
	ReadLatency     time.Duration `envconfig:"READ_LATENCY" default:"3s"`
	ReadProbability float64       `envconfig:"READ_PROBABILITY" default:"0.6"`

	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"10"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"20s"`

	// Status callbacks. The route is disabled while the token is empty.
	StatusWebhookToken string `envconfig:"STATUS_WEBHOOK_TOKEN"`
	PublicWebhookURL   string `envconfig:"PUBLIC_WEBHOOK_URL"` // must match the URL the caller signs
}

func Load() DashboardConfig {
	var cfg DashboardConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
