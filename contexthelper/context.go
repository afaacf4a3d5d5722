package contexthelper

import (
	"context"
	"time"
)

// CheckCancellation returns ctx.Err() when the context is already done.
func CheckCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// WithOptionalTimeout bounds ctx by d, or only makes it cancellable when d <= 0.
func WithOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
