// Package oracle wraps the text-completion backends behind one interface and
// bounds every call with a timeout, a rate limit and a circuit breaker.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"hajj-assistant/internal/common/config"
	"hajj-assistant/internal/common/logger"
)

var (
	ErrTimeout     = errors.New("ORACLE_TIMEOUT")
	ErrUnavailable = errors.New("ORACLE_UNAVAILABLE")
	ErrEmptyReply  = errors.New("ORACLE_EMPTY_REPLY")
)

// Request is one bounded completion call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Oracle turns a prompt into text. Replies are untrusted.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// classify maps a backend error onto ErrTimeout or ErrUnavailable.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrEmptyReply) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// New builds the configured backend wrapped in a Guard.
func New(ctx context.Context, cfg config.OracleConfig, log logger.Logger) (*Guard, error) {
	var (
		backend Oracle
		err     error
	)

	switch cfg.Provider {
	case config.OracleOpenAI:
		backend = NewOpenAI(cfg)
	case config.OracleAnthropic:
		backend = NewAnthropic(cfg)
	case config.OracleGemini:
		backend, err = NewGemini(ctx, cfg)
	case config.OracleHTTP:
		backend = NewHTTP(cfg)
	default:
		err = fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewGuard(backend, GuardOptions{
		Provider:        cfg.Provider,
		Timeout:         config.GetDuration(cfg.Timeout),
		RatePerSecond:   cfg.RatePerSecond,
		Burst:           cfg.Burst,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: config.GetDuration(cfg.BreakerCooldown),
		CacheSize:       cfg.CacheSize,
		DefaultTokens:   cfg.MaxTokens,
	}, log)
}
