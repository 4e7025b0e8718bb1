package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wayfindr.app/relay/common/llm"
)

// RetryPolicy bounds completion calls made by the classifier and synthesizer.
type RetryPolicy struct {
	// Retries is the number of extra attempts after a transport failure.
	Retries int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Backoff returns the wait before retry n; defaults to llm.Backoff.
	Backoff func(attempt int) time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Timeout <= 0 {
		p.Timeout = 20 * time.Second
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.Backoff == nil {
		p.Backoff = llm.Backoff
	}
	return p
}

var errAttemptTimeout = errors.New("completion attempt timed out")

// complete calls the model, retrying transport failures under policy.
func complete(ctx context.Context, client llm.Client, req llm.Request, policy RetryPolicy) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= policy.Retries; attempt++ {
		content, err := completeOnce(ctx, client, req, policy.Timeout)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if !retryable(ctx, err) || attempt == policy.Retries {
			break
		}
		slog.WarnContext(ctx, "completion retry", "attempt", attempt+1, "error", err)
		if err := sleepCtx(ctx, policy.Backoff(attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func completeOnce(ctx context.Context, client llm.Client, req llm.Request, timeout time.Duration) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Complete(attemptCtx, req)
	if err != nil {
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return "", fmt.Errorf("%w: %v", errAttemptTimeout, err)
		}
		return "", err
	}
	return resp.Content, nil
}

// retryable treats a per-attempt timeout as a transport failure, which
// llm.IsRetryable alone would reject as a deadline error.
func retryable(ctx context.Context, err error) bool {
	if errors.Is(err, errAttemptTimeout) {
		return true
	}
	return llm.IsRetryable(ctx, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
