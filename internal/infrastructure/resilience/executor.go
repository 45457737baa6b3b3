package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Executor runs outbound calls with retries inside a circuit breaker that is
// kept per operation name, so a failing vision model does not trip the
// marketplace breaker.
type Executor struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger.Named("resilience"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Call runs fn through e and returns its value. A nil executor calls fn once.
func Call[T any](ctx context.Context, e *Executor, operation string, classifier ErrorClassifier, fn func(context.Context) (T, error)) (T, error) {
	if e == nil {
		return fn(ctx)
	}
	var out T
	err := e.Execute(ctx, operation, func(callCtx context.Context) error {
		v, err := fn(callCtx)
		if err == nil {
			out = v
		}
		return err
	}, classifier)
	return out, err
}

func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return errors.New("resilience: nil operation")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unnamed"
	}
	if classifier == nil {
		classifier = permanent
	}
	if !e.cfg.Breaker.Enabled {
		return e.retry(ctx, op, fn, classifier)
	}
	_, err := e.breaker(op, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, fn, classifier)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classifier ErrorClassifier) error {
	policy := e.cfg.Retry
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		class := classifier(err)
		if !class.Retryable || attempt >= policy.MaxAttempts {
			return err
		}

		wait := policy.Delay(attempt)
		if class.RetryAfter > 0 {
			if class.RetryAfter > policy.MaxRetryAfter {
				e.logger.Warn("retry-after exceeds limit, giving up",
					zap.String("operation", op),
					zap.Duration("retry_after", class.RetryAfter),
					zap.Error(err),
				)
				return err
			}
			wait = max(wait, class.RetryAfter)
		}
		e.logger.Warn("retrying operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if !sleep(ctx, wait) {
			return err
		}
	}
}

// breaker returns the operation's breaker. The classifier of the first call
// decides which errors count as failures for the lifetime of the breaker.
func (e *Executor) breaker(op string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	policy := e.cfg.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: policy.HalfOpenMaxCalls,
		Timeout:     policy.OpenTimeout,
		ReadyToTrip: policy.shouldTrip,
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state changed",
				zap.String("operation", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	e.breakers[op] = cb
	return cb
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
