package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Checker is a health check function that returns an error if unhealthy
type Checker func() error

// DefaultTimeout bounds each dependency probe.
const DefaultTimeout = 2 * time.Second

// Pinger is anything that can be pinged with a context (redis clients).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker returns a checker that pings p under DefaultTimeout.
func PingChecker(name string, p Pinger) Checker {
	return func() error {
		if p == nil {
			return fmt.Errorf("%s client is nil", name)
		}
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	}
}

// ConnectedChecker adapts a boolean connection probe (NATS, MQTT).
func ConnectedChecker(name string, connected func() bool) Checker {
	return func() error {
		if connected == nil || !connected() {
			return fmt.Errorf("%s is not connected", name)
		}
		return nil
	}
}

// AsyncChecker wraps a checker to run asynchronously with a timeout
func AsyncChecker(checker Checker, timeout time.Duration) Checker {
	return func() error {
		errChan := make(chan error, 1)
		go func() {
			errChan <- checker()
		}()

		select {
		case err := <-errChan:
			return err
		case <-time.After(timeout):
			return errors.New("health check timed out")
		}
	}
}
