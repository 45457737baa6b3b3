package resilience

import (
	"math"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy is an exponential backoff schedule. A server-requested delay
// (Retry-After) longer than MaxRetryAfter ends the retries.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	MaxRetryAfter  time.Duration
}

// BreakerPolicy trips an operation's breaker once at least MinRequests calls
// have been seen in the current window and FailureRatio of them failed.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultConfig is tuned for the marketplace and model services: a vision
// call that fails twice quickly is unlikely to recover within a request.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 150 * time.Millisecond,
			MaxBackoff:     1200 * time.Millisecond,
			Multiplier:     2.0,
			MaxRetryAfter:  5 * time.Second,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      8,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// Delay is the wait before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

func (p BreakerPolicy) shouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests < p.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.FailureRatio
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	r, b := c.Retry, c.Breaker

	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.Retry.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.Retry.InitialBackoff
	}
	if r.MaxBackoff < r.InitialBackoff {
		r.MaxBackoff = max(def.Retry.MaxBackoff, r.InitialBackoff)
	}
	if r.Multiplier < 1 {
		r.Multiplier = def.Retry.Multiplier
	}
	if r.MaxRetryAfter <= 0 {
		r.MaxRetryAfter = def.Retry.MaxRetryAfter
	}

	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.Breaker.OpenTimeout
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	return Config{Retry: r, Breaker: b}
}
