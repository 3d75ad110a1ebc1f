package whatsapp

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retrying resends transient failures with exponential backoff.
type Retrying struct {
	next     Sender
	attempts uint
	initial  time.Duration
	logger   *log.Logger
}

// NewRetrying wraps next so that each send is tried at most attempts times.
func NewRetrying(next Sender, attempts uint, logger *log.Logger) *Retrying {
	if attempts == 0 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: attempts, initial: 500 * time.Millisecond, logger: logger}
}

func (r *Retrying) SendText(ctx context.Context, to, body string) error {
	return r.do(ctx, "text", to, func() error { return r.next.SendText(ctx, to, body) })
}

func (r *Retrying) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	return r.do(ctx, "buttons", to, func() error { return r.next.SendButtons(ctx, to, body, buttons) })
}

func (r *Retrying) SendList(ctx context.Context, to string, list List) error {
	return r.do(ctx, "list", to, func() error { return r.next.SendList(ctx, to, list) })
}

func (r *Retrying) SendCatalog(ctx context.Context, to, body, thumbnailProductID string) error {
	return r.do(ctx, "catalog", to, func() error { return r.next.SendCatalog(ctx, to, body, thumbnailProductID) })
}

func (r *Retrying) do(ctx context.Context, kind, to string, send func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := send()
		if err != nil && !transient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Printf("send %s to %s failed, retrying in %s: %v", kind, to, wait, err)
		}),
	)
	return err
}

// transient reports whether a send failure is worth retrying.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return true
}
