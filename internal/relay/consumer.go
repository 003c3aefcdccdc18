package relay

import (
	"context"
	"log/slog"
	"time"

	"nftgate/internal/domain"
)

// DefaultPollInterval is the consumer drain cadence.
const DefaultPollInterval = 2 * time.Second

// ResultHandler receives drained verification results.
type ResultHandler interface {
	HandleResult(ctx context.Context, res domain.VerificationResult) error
}

// Consumer drains the mailbox on a fixed interval and feeds each result
// to the handler.
type Consumer struct {
	mailbox  *Mailbox
	handler  ResultHandler
	interval time.Duration
	logger   *slog.Logger
}

// NewConsumer creates a consumer. A non-positive interval falls back to
// DefaultPollInterval.
func NewConsumer(mailbox *Mailbox, handler ResultHandler, interval time.Duration, logger *slog.Logger) *Consumer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{mailbox: mailbox, handler: handler, interval: interval, logger: logger}
}

// Run polls until the context is cancelled. Each tick drains the whole
// mailbox so a burst of results does not wait one interval per entry.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drain(ctx)
		}
	}
}

func (c *Consumer) drain(ctx context.Context) {
	for {
		res, ok := c.mailbox.Poll()
		if !ok {
			return
		}
		if err := c.handler.HandleResult(ctx, res); err != nil {
			c.logger.Error("handling relayed result failed",
				"user_id", res.UserID,
				"error", err)
		}
	}
}
