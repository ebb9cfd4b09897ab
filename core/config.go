package core

import (
	"fmt"
	"strings"
	"time"
)

type DispatcherConfig struct {
	TickInterval   time.Duration `koanf:"tick_interval" mapstructure:"tick_interval"`
	RollupInterval time.Duration `koanf:"rollup_interval" mapstructure:"rollup_interval"`
	BatchSize      int           `koanf:"batch_size" mapstructure:"batch_size"`
}

type WorkerConfig struct {
	PollInterval   time.Duration `koanf:"poll_interval" mapstructure:"poll_interval"`
	PublishTimeout time.Duration `koanf:"publish_timeout" mapstructure:"publish_timeout"`
	Count          int           `koanf:"count" mapstructure:"count"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Dispatcher  DispatcherConfig `koanf:"dispatcher" mapstructure:"dispatcher"`
	Worker      WorkerConfig     `koanf:"worker" mapstructure:"worker"`
	Retry       RetryConfig      `koanf:"retry" mapstructure:"retry"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "publisher",
		Dispatcher: DispatcherConfig{
			TickInterval:   60 * time.Second,
			RollupInterval: 60 * time.Second,
			BatchSize:      50,
		},
		Worker: WorkerConfig{
			PollInterval:   5 * time.Second,
			PublishTimeout: 30 * time.Second,
			Count:          1,
		},
		Retry: RetryConfig{
			MaxAttempts: defaultRetryMaxAttempts,
			BaseDelay:   defaultRetryBaseDelay,
			MaxDelay:    defaultRetryMaxDelay,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Dispatcher.TickInterval < 0 {
		return fmt.Errorf("core: dispatcher.tick_interval must be >= 0")
	}
	if c.Worker.Count < 0 {
		return fmt.Errorf("core: worker.count must be >= 0")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("core: retry.max_attempts must be >= 0")
	}
	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("core: retry.base_delay must be >= 0")
	}
	return nil
}

func (c Config) RetryPolicy() RetryPolicy {
	policy := RetryPolicy{
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		MaxAttempts: c.Retry.MaxAttempts,
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultRetryBaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = defaultRetryMaxDelay
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultRetryMaxAttempts
	}
	return policy
}
