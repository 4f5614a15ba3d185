package lambda

import (
	"time"

	"github.com/dadevel/lemma/api"
)

// Config holds the lifecycle manager configuration.
type Config struct {
	Region       string
	EndpointURL  string        // custom endpoint URL for simulator mode
	PollInterval time.Duration // delay between readiness checks
	PollTimeout  time.Duration // zero waits until the platform resolves
}

// DefaultPollInterval is the delay between readiness checks.
const DefaultPollInterval = 2 * time.Second

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.Region == "" {
		return api.Missing("region", "specify --region, $LEMMA_REGION or $AWS_DEFAULT_REGION")
	}
	if c.PollInterval < 0 || c.PollTimeout < 0 {
		return &api.ConfigError{Field: "poll", Message: "poll interval and timeout must not be negative"}
	}
	return nil
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval == 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}
