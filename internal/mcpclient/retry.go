package mcpclient

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds the Connect handshake: at most MaxAttempts tries with
// a fixed Delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// retryable reports whether err is a connection-level failure.
func retryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
