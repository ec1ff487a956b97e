package ledger

import (
	"context"
	"fmt"
	"time"
)

// WithDeadline wraps c so every call carries a bounded deadline. Expiry and
// cancellation surface as ErrUnavailable.
func WithDeadline(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &deadlineClient{next: c, d: d}
}

type deadlineClient struct {
	next Client
	d    time.Duration
}

func (c *deadlineClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	v, ok, err := c.next.Get(ctx, key)
	return v, ok, c.mapErr(ctx, err)
}

func (c *deadlineClient) Put(ctx context.Context, key string, value []byte) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	r, err := c.next.Put(ctx, key, value)
	return r, c.mapErr(ctx, err)
}

func (c *deadlineClient) PutIfAbsent(ctx context.Context, key string, value []byte) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	r, err := c.next.PutIfAbsent(ctx, key, value)
	return r, c.mapErr(ctx, err)
}

func (c *deadlineClient) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	r, err := c.next.CompareAndSwap(ctx, key, expected, value)
	return r, c.mapErr(ctx, err)
}

func (c *deadlineClient) Delete(ctx context.Context, key string) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	r, err := c.next.Delete(ctx, key)
	return r, c.mapErr(ctx, err)
}

// History passes through when the wrapped client keeps a journal.
func (c *deadlineClient) History(ctx context.Context, key string) ([]Entry, error) {
	hr, ok := c.next.(HistoryReader)
	if !ok {
		return nil, fmt.Errorf("ledger: history not supported")
	}
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	entries, err := hr.History(ctx, key)
	return entries, c.mapErr(ctx, err)
}

// Unwrap returns the wrapped client.
func (c *deadlineClient) Unwrap() Client {
	return c.next
}

func (c *deadlineClient) mapErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && IsUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
