package llm

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/metrics"
)

// RetryOptions configures WithRetry.
type RetryOptions struct {
	Provider   string
	Timeout    time.Duration // per attempt; zero means only the caller's deadline applies
	MaxRetries int           // extra attempts after the first
	Logger     *logger.Logger

	// BackOff builds the delay policy for one call. Defaults to exponential.
	BackOff func() backoff.BackOff
}

type retrying struct {
	next Completer
	opts RetryOptions
}

// WithRetry wraps c so each call gets a per-attempt timeout and transient
// failures (timeouts, 408, 429, 5xx, network errors) are retried with
// backoff. Errors come back as *errs.Error: timeout when the caller's
// context ended, upstream otherwise.
func WithRetry(c Completer, opts RetryOptions) Completer {
	if opts.Provider == "" {
		opts.Provider = "custom"
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}
	if opts.BackOff == nil {
		opts.BackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}
	return &retrying{next: c, opts: opts}
}

func (r *retrying) Complete(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		actx, cancel := r.attemptContext(ctx)
		out, err := r.next.Complete(actx, prompt)
		cancel()

		if err == nil {
			metrics.LLMRequestsTotal.WithLabelValues(r.opts.Provider, "ok").Inc()
			return out, nil
		}
		metrics.LLMRequestsTotal.WithLabelValues(r.opts.Provider, "error").Inc()

		if ctx.Err() != nil || !transient(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.opts.BackOff()),
		backoff.WithMaxTries(uint(r.opts.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.opts.Logger.WarnWith("completion attempt failed, retrying", err, map[string]any{
				"provider": r.opts.Provider,
				"attempt":  attempt,
				"backoff":  next.String(),
			})
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", errs.Wrap(errs.ErrKindTimeout, "completion deadline exceeded", err)
		}
		return "", errs.Wrap(errs.ErrKindUpstream, r.opts.Provider+" completion failed", err)
	}
	return out, nil
}

func (r *retrying) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout > 0 {
		return context.WithTimeout(ctx, r.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// transient reports whether err is worth another attempt. The parent context
// is checked by the caller; a deadline here is the per-attempt one.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET)
}
