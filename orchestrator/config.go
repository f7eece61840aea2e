package orchestrator

import (
	"time"

	"practicekit/practice"
)

type Config struct {
	Policy practice.PolicyConfig
	// ReplyTimeout bounds a single reply request. Zero disables the bound.
	ReplyTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Policy:       practice.DefaultPolicyConfig(),
		ReplyTimeout: 30 * time.Second,
	}
}
