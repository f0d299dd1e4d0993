package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/service"
)

// DigestPublisher announces the overdue tickets.
type DigestPublisher interface {
	PublishOverdueDigest(ctx context.Context) (int, error)
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartOverdueDigest publishes the overdue digest every interval until ctx is
// cancelled. The returned channel is closed once the loop exits. A
// non-positive interval disables the loop.
func StartOverdueDigest(ctx context.Context, publisher DigestPublisher, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if publisher == nil || interval <= 0 {
		close(done)
		return done
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Info("overdue digest worker started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				logger.Info("overdue digest worker stopped")
				return
			case <-ticker.C:
				count, err := publisher.PublishOverdueDigest(ctx)
				if err != nil {
					logger.Error("overdue digest failed", zap.Error(err))
					continue
				}
				logger.Debug("overdue digest run", zap.Int("overdue", count))
			}
		}
	}()
	return done
}
