package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig controls DownloadWithRetry backoff.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig retries three times, starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 16 * time.Second, Multiplier: 2}
}

// DownloadWithRetry runs fn until it succeeds, cfg.MaxRetries retries are
// used up, or ctx is done.
func DownloadWithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries {
			break
		}
		slog.Warn("model_download_retry", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
}
