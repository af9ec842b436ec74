package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardOptions bounds calls to a backend.
type GuardOptions struct {
	Provider        string
	Timeout         time.Duration
	RatePerSecond   float64
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	CacheSize       int
	DefaultTokens   int
}

// Guard is the only Oracle the resolver talks to. Every call gets its own
// deadline, waits for the rate limiter, and goes through a circuit breaker.
// Successful replies are cached by prompt.
type Guard struct {
	backend Oracle
	opts    GuardOptions
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   *lru.Cache[string, string]
	logger  logger.Logger
}

func NewGuard(backend Oracle, opts GuardOptions, log logger.Logger) (*Guard, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}

	g := &Guard{
		backend: backend,
		opts:    opts,
		logger:  log.With(map[string]interface{}{"component": "oracle", "provider": opts.Provider}),
	}

	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oracle-" + opts.Provider,
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(opts.BreakerFailures)
		},
		// abandoned turns say nothing about the backend's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyReply)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("oracle breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("oracle cache: %w", err)
		}
		g.cache = cache
	}

	return g, nil
}

// Complete runs one bounded call. Errors wrap ErrTimeout or ErrUnavailable,
// except context.Canceled which is returned as is.
func (g *Guard) Complete(ctx context.Context, req Request) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.opts.DefaultTokens
	}

	key := cacheKey(req)
	if g.cache != nil {
		if text, ok := g.cache.Get(key); ok {
			return text, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	text, err := g.call(callCtx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.OracleLatency.WithLabelValues(g.opts.Provider, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() == context.Canceled {
			return "", ctx.Err()
		}
		g.logger.Warn("oracle call failed", map[string]interface{}{
			"outcome":    outcome,
			"error":      err.Error(),
			"durationMs": time.Since(start).Milliseconds(),
		})
		return "", err
	}

	if g.cache != nil {
		g.cache.Add(key, text)
	}
	return text, nil
}

func (g *Guard) call(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() == context.Canceled {
				return "", ctx.Err()
			}
			// Wait fails early when the deadline cannot be met
			return "", fmt.Errorf("%w: rate limited: %v", ErrTimeout, err)
		}
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		text, err := g.backend.Complete(ctx, req)
		if err != nil {
			return nil, classify(ctx, err)
		}
		return text, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
			errors.Is(err, ErrEmptyReply) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", classify(ctx, err)
	}
	return out.(string), nil
}

// State exposes the breaker state for readiness checks.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func cacheKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.System))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	return hex.EncodeToString(h.Sum(nil))
}
