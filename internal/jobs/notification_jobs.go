package jobs

import (
	"context"

	"chronobank/internal/logger"
)

// RelayNotifications pushes one batch of undelivered notifications to the sink
func (jr *JobRunner) RelayNotifications() {
	jr.runWithRecovery("RelayNotifications", func() {
		n, err := jr.services.Relay.Run(context.Background())
		if err != nil {
			logger.Error("Failed to relay notifications", "delivered", n, "error", err)
			return
		}
		logger.Debug("Notifications relayed", "count", n)
	})
}
