package config

type Limits struct {
	RateLimit             RateLimitConfig `yaml:"rate_limit" validate:"required"`
	MaxConcurrentSessions int             `yaml:"max_concurrent_sessions" validate:"required,min=1,max=64"`
	ContextBatchSize      int             `yaml:"context_batch_size" validate:"required,min=1,max=100"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		MaxConcurrentSessions: 4,
		ContextBatchSize:      10, // one stage-3 call; larger batches risk truncated replies
	}
}
