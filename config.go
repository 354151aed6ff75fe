package jobchain

import "time"

// Config holds configuration shared by the engine and the CLI. Field tags
// map JOBCHAIN_* environment variables when loaded through caarlos0/env.
type Config struct {
	// Concurrency is the maximum number of chains executed concurrently.
	Concurrency int `env:"CONCURRENCY" yaml:"concurrency"`

	// Queues is the list of queues the worker pool polls.
	Queues []string `env:"QUEUES" envSeparator:"," yaml:"queues"`

	// PollInterval is how often idle workers poll for new tasks.
	PollInterval time.Duration `env:"POLL_INTERVAL" yaml:"poll_interval"`

	// HeartbeatInterval is how often running tasks are heartbeated. Zero
	// disables heartbeats.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" yaml:"heartbeat_interval"`

	// StaleThreshold is how old a heartbeat may get before a running task
	// is handed back to pending. Zero disables reaping.
	StaleThreshold time.Duration `env:"STALE_THRESHOLD" yaml:"stale_threshold"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`

	// MaxRetries is the default retry budget of a submitted chain.
	MaxRetries int `env:"MAX_RETRIES" yaml:"max_retries"`

	// ChainTimeout is the advisory execution budget handed to the host
	// queue for every chain that does not declare its own.
	ChainTimeout time.Duration `env:"CHAIN_TIMEOUT" yaml:"chain_timeout"`

	// EnqueueByDefault makes newly declared chains submit on trigger
	// without an explicit ShouldEnqueue call.
	EnqueueByDefault bool `env:"ENQUEUE_BY_DEFAULT" yaml:"enqueue_by_default"`
}

// DefaultChainTimeout is the advisory budget of a chain: 9000 seconds.
const DefaultChainTimeout = 9000 * time.Second

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		Queues:            []string{"default"},
		PollInterval:      1 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		StaleThreshold:    time.Minute,
		ShutdownTimeout:   30 * time.Second,
		MaxRetries:        0,
		ChainTimeout:      DefaultChainTimeout,
		EnqueueByDefault:  false,
	}
}
