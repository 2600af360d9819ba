package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type ReferralExpirer interface {
	ExpireStaleReferrals(ctx context.Context, now time.Time) (int, error)
}

// ExpiryWorker periodically closes pending referrals that never converted
// within the grace period.
type ExpiryWorker struct {
	logger   *slog.Logger
	expirer  ReferralExpirer
	interval time.Duration
	nowFn    func() time.Time
}

func NewExpiryWorker(logger *slog.Logger, expirer ReferralExpirer, interval time.Duration) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{
		logger:   logger,
		expirer:  expirer,
		interval: interval,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.expirer.ExpireStaleReferrals(ctx, w.nowFn()); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "expiry sweep failed",
				"module", "events.expiry_worker",
				"layer", "adapter",
				"operation", "expire_stale_referrals",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
