package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRPCTimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultPollInterval    = 10 * time.Second
	DefaultCatchupInterval = 5 * time.Minute
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	if c.Chain.Timeout == 0 {
		c.Chain.Timeout = DefaultRPCTimeout
	}
	if c.Chain.MaxRetries == 0 {
		c.Chain.MaxRetries = DefaultMaxRetries
	}

	if c.Postgres.Port == 0 {
		c.Postgres.Port = DefaultDBPort
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = DefaultDBSSLMode
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = DefaultMaxConns
	}

	if c.Scheduler.PollInterval == 0 {
		c.Scheduler.PollInterval = DefaultPollInterval
	}
	if c.Scheduler.CatchupInterval == 0 {
		c.Scheduler.CatchupInterval = DefaultCatchupInterval
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
