package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

// ErrExhausted matches any ExhaustedError via errors.Is.
var ErrExhausted = errors.New("all providers failed")

// ExhaustedError reports that both hops of a failover failed.
type ExhaustedError struct {
	Operation    string
	Primary      string
	Secondary    string
	PrimaryErr   error
	SecondaryErr error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v; %s failed: %v",
		e.Operation, e.Primary, e.PrimaryErr, e.Secondary, e.SecondaryErr)
}

// Unwrap exposes both underlying errors so errors.Is can match either one.
func (e *ExhaustedError) Unwrap() []error {
	return []error{e.PrimaryErr, e.SecondaryErr}
}

// Is makes errors.Is(err, ErrExhausted) hold for every ExhaustedError.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// FailoverState is the progress of a single failover execution.
type FailoverState int

const (
	StateIdle FailoverState = iota
	StateCallingPrimary
	StateCallingSecondary
	StateSucceeded
	StateFailed
)

func (s FailoverState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCallingPrimary:
		return "calling_primary"
	case StateCallingSecondary:
		return "calling_secondary"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Hop is one provider in a failover pair.
type Hop[T any] struct {
	Name    string
	Breaker *CircuitBreaker
	Call    func(ctx context.Context) (T, error)
}

// Failover calls Primary and, on any failure, Secondary exactly once. Each hop
// runs under its own timeout. Cancellation of the parent context stops the
// sequence without falling back.
type Failover[T any] struct {
	Operation    string
	Primary      Hop[T]
	Secondary    Hop[T]
	Timeout      time.Duration
	OnTransition func(FailoverState)
}

// Execute runs the failover and returns the value plus the name of the hop
// that produced it.
func (f *Failover[T]) Execute(ctx context.Context) (T, string, error) {
	var zero T

	f.transition(StateCallingPrimary)
	result, primaryErr := f.call(ctx, f.Primary)
	if primaryErr == nil {
		f.transition(StateSucceeded)
		return result, f.Primary.Name, nil
	}
	if ctx.Err() != nil {
		f.transition(StateFailed)
		return zero, "", ctx.Err()
	}

	logger.WarnContext(ctx, "primary provider failed, falling back",
		zap.String("operation", f.Operation),
		zap.String("primary", f.Primary.Name),
		zap.String("secondary", f.Secondary.Name),
		zap.Error(primaryErr),
	)
	recordFallback(f.Operation, f.Primary.Name, f.Secondary.Name)

	f.transition(StateCallingSecondary)
	result, secondaryErr := f.call(ctx, f.Secondary)
	if secondaryErr == nil {
		f.transition(StateSucceeded)
		return result, f.Secondary.Name, nil
	}
	if ctx.Err() != nil {
		f.transition(StateFailed)
		return zero, "", ctx.Err()
	}

	f.transition(StateFailed)
	return zero, "", &ExhaustedError{
		Operation:    f.Operation,
		Primary:      f.Primary.Name,
		Secondary:    f.Secondary.Name,
		PrimaryErr:   primaryErr,
		SecondaryErr: secondaryErr,
	}
}

func (f *Failover[T]) call(ctx context.Context, hop Hop[T]) (T, error) {
	var zero T
	if hop.Call == nil {
		return zero, fmt.Errorf("%s: provider not configured", hop.Name)
	}

	callCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := Call(callCtx, hop.Breaker, hop.Call)
	recordProviderCall(hop.Name, time.Since(start), err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (f *Failover[T]) transition(state FailoverState) {
	if f.OnTransition != nil {
		f.OnTransition(state)
	}
}
