package worker

import (
	"time"
)

// Config controls payout worker intervals and batching.
type Config struct {
	RunInterval       time.Duration
	TickTimeout       time.Duration
	RecoveryThreshold time.Duration
	// FrequencyWindow is how far past a frequency boundary (midnight UTC,
	// Monday, the 1st) a territory still counts as due.
	FrequencyWindow time.Duration
	EnabledJobs     []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       5 * time.Minute,
		TickTimeout:       2 * time.Minute,
		RecoveryThreshold: 30 * time.Minute,
		FrequencyWindow:   15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = defaults.TickTimeout
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	if c.FrequencyWindow <= 0 {
		c.FrequencyWindow = defaults.FrequencyWindow
	}
	return c
}
