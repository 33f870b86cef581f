package config

import (
	"time"
)

// TimingConfig groups every duration the container depends on.
type TimingConfig struct {
	// Telemetry heartbeat
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	HeartbeatJitter   time.Duration `yaml:"heartbeatJitter"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeatTimeout"`

	// Robot sends: per TCP call, dial+write
	SendTimeout time.Duration `yaml:"sendTimeout"`

	// Wait after each pick so the arm finishes before the next program arrives.
	PacingInterval time.Duration `yaml:"pacingInterval"`

	// Telemetry replay buffer
	EventBufferSize      int           `yaml:"eventBufferSize"`
	EventBufferRetention time.Duration `yaml:"eventBufferRetention"`
}

// LoadTimingBaseline returns the baseline timing values.
func LoadTimingBaseline() *TimingConfig {
	return &TimingConfig{
		HeartbeatInterval: 15 * time.Second,
		HeartbeatJitter:   2 * time.Second,
		HeartbeatTimeout:  45 * time.Second,

		SendTimeout:    3 * time.Second,
		PacingInterval: 9500 * time.Millisecond,

		EventBufferSize:      50,
		EventBufferRetention: 1 * time.Hour,
	}
}
