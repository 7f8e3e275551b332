// Package retry runs calls to external services under a bounded
// exponential-backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Config bounds the retry policy. MaxAttempts counts the first call.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig is three attempts with exponential backoff starting at one second.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

func (c Config) normalize() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	return c
}

// StatusError reports a non-success HTTP status from an upstream service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Code, e.Body)
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// IsTransient classifies network failures, rate limiting and server errors as
// retryable. Bad requests and auth failures are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return IsTransientStatus(status.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded)
}

// Policy builds a failsafe retry policy retrying errors accepted by classify.
func Policy[T any](cfg Config, classify func(error) bool) retrypolicy.RetryPolicy[T] {
	cfg = cfg.normalize()
	if classify == nil {
		classify = IsTransient
	}

	return retrypolicy.NewBuilder[T]().
		HandleIf(func(_ T, err error) bool {
			return classify(err)
		}).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxAttempts - 1).
		WithJitterFactor(0.1).
		Build()
}

// Do runs fn under the policy and returns the last attempt's own error
// rather than the policy's wrapper.
func Do[T any](ctx context.Context, cfg Config, classify func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var last error

	result, err := failsafe.With(Policy[T](cfg, classify)).WithContext(ctx).Get(func() (T, error) {
		r, err := fn(ctx)
		last = err
		return r, err
	})
	if err != nil && last != nil && ctx.Err() == nil {
		return result, last
	}

	return result, err
}
