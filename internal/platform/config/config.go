package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"WAITLIST_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"WAITLIST_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WAITLIST_WRITE_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"WAITLIST_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"WAITLIST_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Session   SessionConfig
	Redis     RedisConfig
	Relay     RelayConfig
	RateLimit RateLimitConfig
}

// SessionConfig bounds how long form sessions and submission claims live.
type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	SubmitLockTTL time.Duration `env:"SUBMIT_LOCK_TTL" envDefault:"1m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
}

// RedisConfig selects the Redis session store. An empty URL keeps sessions in
// memory.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// RelayConfig points at the email relay that receives completed submissions.
type RelayConfig struct {
	Endpoint  string        `env:"RELAY_ENDPOINT" envDefault:"https://api.web3forms.com/submit"`
	AccessKey string        `env:"RELAY_ACCESS_KEY"`
	Recipient string        `env:"RELAY_RECIPIENT"`
	Timeout   time.Duration `env:"RELAY_TIMEOUT" envDefault:"15s"`
}

// RateLimitConfig sets per-IP request budgets for each endpoint class. The
// buckets live in Redis when REDIS_URL is set, in memory otherwise.
type RateLimitConfig struct {
	Enabled          bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Window           time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	StartPerWindow   int           `env:"RATE_LIMIT_START" envDefault:"10"`
	WritePerWindow   int           `env:"RATE_LIMIT_WRITE" envDefault:"120"`
	SubmitPerWindow  int           `env:"RATE_LIMIT_SUBMIT" envDefault:"5"`
	FailureThreshold int           `env:"RATE_LIMIT_BREAKER_FAILURES" envDefault:"5"`
	SuccessThreshold int           `env:"RATE_LIMIT_BREAKER_SUCCESSES" envDefault:"3"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	if c.Relay.AccessKey == "" {
		return fmt.Errorf("RELAY_ACCESS_KEY is required")
	}
	if c.Relay.Timeout <= 0 {
		return fmt.Errorf("RELAY_TIMEOUT must be positive")
	}
	// The claim must outlive one relay call or a slow delivery gets taken over.
	if c.Session.SubmitLockTTL <= c.Relay.Timeout {
		return fmt.Errorf("SUBMIT_LOCK_TTL (%s) must exceed RELAY_TIMEOUT (%s)", c.Session.SubmitLockTTL, c.Relay.Timeout)
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_TTL and SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.RateLimit.Enabled {
		rl := c.RateLimit
		if rl.Window <= 0 || rl.StartPerWindow <= 0 || rl.WritePerWindow <= 0 || rl.SubmitPerWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW and per-class limits must be positive when rate limiting is enabled")
		}
	}
	return nil
}
