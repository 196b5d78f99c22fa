package llm

import (
	"context"
	"time"

	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/session"
	"github.com/codeflow-cli/codeflow/tools"
)

// RetryClient wraps another client with a per-call timeout and bounded
// retries on transport failures. Non-transport errors (bad responses,
// malformed tool arguments) pass through immediately; retrying those
// would just replay the same defect.
type RetryClient struct {
	inner    Client
	attempts int
	backoff  time.Duration
	timeout  time.Duration
}

// WithRetry wraps inner. attempts is the total number of tries, backoff
// the base delay between them (doubled each retry), timeout the ceiling
// on each individual call; zero disables the per-call timeout.
func WithRetry(inner Client, attempts int, backoff, timeout time.Duration) *RetryClient {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryClient{inner: inner, attempts: attempts, backoff: backoff, timeout: timeout}
}

func (r *RetryClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error) {
	var lastErr error
	delay := r.backoff

	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return nil, errors.Transport(ctx.Err())
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if r.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		msg, err := r.inner.Chat(callCtx, messages, availableTools)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return msg, nil
		}
		if !errors.IsKind(err, errors.KindTransport) {
			return nil, err
		}
		lastErr = err

		// Give up immediately when the caller's context is gone; only the
		// per-call deadline is worth retrying past.
		if ctx.Err() != nil {
			return nil, errors.Transport(ctx.Err())
		}
	}
	return nil, errors.Transport(errors.Wrapf(lastErr, "model call failed after %d attempts", r.attempts))
}
