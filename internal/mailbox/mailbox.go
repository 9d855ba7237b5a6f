// Package mailbox reads unread messages from the intake mailbox.
package mailbox

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the mailbox server does not answer in time.
var ErrTimeout = errors.New("mailbox operation timed out")

// Message is one unread email as seen by the poller.
type Message struct {
	UID         int
	MessageID   string
	FromName    string
	FromAddress string
	Subject     string
	Text        string
	HTML        string
}

// Mailbox lists unread mail and flags processed mail as seen.
type Mailbox interface {
	FetchUnread(ctx context.Context) ([]Message, error)
	MarkSeen(ctx context.Context, uid int) error
	Address() string
}

// runWithTimeout bounds a blocking call that does not accept a context.
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
