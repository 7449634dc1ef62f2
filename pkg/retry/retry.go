package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 10 * time.Second
)

// Operation is a fallible long-running unit of work.
type Operation func(ctx context.Context) error

// Options controls the backoff policy for Run.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the wait before the first retry; it doubles each
	// attempt up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable classifies an error as worth another attempt. Defaults to
	// IsTransient.
	Retryable func(error) bool
	// OnRetry fires before each retry, after the backoff delay has been
	// decided. Observers use it to reset progress so a retried operation
	// shows a fresh attempt instead of a stuck bar.
	OnRetry func(attempt int, err error)
	// Sleep is injectable for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) withDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.Retryable == nil {
		o.Retryable = IsTransient
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
}

// Run executes op, retrying transient failures with exponential backoff. The
// last error is propagated unchanged once the budget is exhausted or a fatal
// classification is hit, so callers can inspect the original failure.
func Run(ctx context.Context, op Operation, opts Options) error {
	opts.withDefaults()

	delay := opts.InitialDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= opts.MaxRetries || !opts.Retryable(err) {
			return err
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err)
		}
		if sleepErr := opts.Sleep(ctx, delay); sleepErr != nil {
			return err
		}
		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"temporarily unavailable",
	"resource exhausted",
	"too many requests",
	"rate limit",
	"busy",
	"cors",
	"service unavailable",
	"bad gateway",
}

// IsTransient reports whether err looks like a network/timeout/busy style
// failure that a later attempt could survive. Anything else is fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var tErr *models.TransientInfraError
	if errors.As(err, &tErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
