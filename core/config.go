package core

import (
	"fmt"
	"strings"
	"time"
)

type EscalationConfig struct {
	ScheduleHours []int         `koanf:"schedule_hours" mapstructure:"schedule_hours"`
	MinGapHours   int           `koanf:"min_gap_hours" mapstructure:"min_gap_hours"`
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
}

type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
}

type WebhookConfig struct {
	Secret      string        `koanf:"secret" mapstructure:"secret"`
	ReplayTTL   time.Duration `koanf:"replay_ttl" mapstructure:"replay_ttl"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Webhook     WebhookConfig    `koanf:"webhook" mapstructure:"webhook"`
	Escalation  EscalationConfig `koanf:"escalation" mapstructure:"escalation"`
	Retry       RetryConfig      `koanf:"retry" mapstructure:"retry"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "bounty",
		Webhook: WebhookConfig{
			ReplayTTL:   5 * time.Minute,
			MaxAttempts: 8,
		},
		Escalation: EscalationConfig{
			ScheduleHours: append([]int(nil), DefaultEscalationSchedule...),
			MinGapHours:   MinEscalationGapHours,
			SweepInterval: time.Hour,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Escalation.SweepInterval < 0 {
		return fmt.Errorf("core: escalation sweep_interval must not be negative")
	}
	if c.Escalation.MinGapHours < 0 {
		return fmt.Errorf("core: escalation min_gap_hours must not be negative")
	}
	previous := 0
	for _, threshold := range c.Escalation.ScheduleHours {
		if threshold <= previous {
			return fmt.Errorf("core: escalation schedule_hours must be strictly increasing")
		}
		previous = threshold
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("core: retry max_attempts must not be negative")
	}
	return nil
}
