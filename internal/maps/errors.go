package maps

import (
	"context"
	"errors"
	"fmt"

	"github.com/richxcame/truckroute/pkg/httpclient"
	"github.com/richxcame/truckroute/pkg/resilience"
)

var (
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("network error")
	// ErrDecode means the provider answered with a payload we could not read.
	ErrDecode = errors.New("decode error")
	// ErrNoRouteFound means the provider answered but had no route.
	ErrNoRouteFound = errors.New("no route found")
	// ErrInsufficientGeometry means fewer than two points were left to match.
	ErrInsufficientGeometry = errors.New("insufficient geometry")
	// ErrNoMatchings means the matcher returned an empty result.
	ErrNoMatchings = errors.New("no matchings")
	// ErrMapMatchingFailed wraps any other map matching failure.
	ErrMapMatchingFailed = errors.New("map matching failed")
	// ErrRestrictionQueryFailed means the restriction source could not be read.
	ErrRestrictionQueryFailed = errors.New("restriction query failed")
	// ErrProviderExhausted means the primary and the secondary both failed.
	ErrProviderExhausted = resilience.ErrExhausted
)

// StatusError is a non-success HTTP answer from a provider. It is treated
// like a network failure.
type StatusError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap classifies the status as a network error.
func (e *StatusError) Unwrap() error {
	return ErrNetwork
}

// classify maps an httpclient error onto the provider error taxonomy.
// Context errors stay visible to errors.Is.
func classify(provider Provider, err error) error {
	if err == nil {
		return nil
	}
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		return &StatusError{Provider: provider, StatusCode: httpErr.StatusCode, Body: httpErr.Body}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrNetwork, err)
}

func decodeError(provider Provider, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrDecode, err)
}

func noRoute(provider Provider, detail string) error {
	if detail == "" {
		return fmt.Errorf("%s: %w", provider, ErrNoRouteFound)
	}
	return fmt.Errorf("%s: %w: %s", provider, ErrNoRouteFound, detail)
}
