// Package notify records user notifications alongside the ledger writes that
// caused them and relays them to a delivery sink afterwards.
package notify

import (
	"context"
	"fmt"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/repository"
)

// Post stores a notification through notes, which is normally bound to the
// caller's open transaction so the notification commits with the change.
func Post(ctx context.Context, notes repository.NotificationRepository, now time.Time, userID int64, title, message string, attrs map[string]string) error {
	n := &domain.Notification{
		UserID:     userID,
		Title:      title,
		Message:    message,
		Attributes: attrs,
		CreatedAt:  now,
	}
	if err := notes.Create(ctx, n); err != nil {
		return fmt.Errorf("record notification %q: %w", title, err)
	}
	return nil
}

// Hours renders a second count for notification text.
func Hours(seconds, perHour int64) string {
	if perHour <= 0 {
		perHour = 3600
	}
	return fmt.Sprintf("%.2f hours", float64(seconds)/float64(perHour))
}
