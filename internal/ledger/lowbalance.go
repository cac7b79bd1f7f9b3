package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/notify"
	"chronobank/internal/repository"
)

// LowBalanceWatch decides when an owner is told their balance is low. An
// account is low below Threshold or below twice its minimum balance. A
// repeat alert waits for Cooldown; recovering above the line resets it.
type LowBalanceWatch struct {
	Threshold      int64
	Cooldown       time.Duration
	SecondsPerHour int64
}

// Observe updates a.LowBalanceNotifiedAt and reports whether an alert is due.
func (w LowBalanceWatch) Observe(a *domain.Account, now time.Time) bool {
	if !w.low(a) {
		a.LowBalanceNotifiedAt = nil
		return false
	}
	if a.LowBalanceNotifiedAt != nil && now.Sub(*a.LowBalanceNotifiedAt) < w.Cooldown {
		return false
	}
	stamp := now
	a.LowBalanceNotifiedAt = &stamp
	return true
}

func (w LowBalanceWatch) low(a *domain.Account) bool {
	return a.Balance < w.Threshold || a.Balance < 2*a.MinBalance
}

// Settle is the credit-side counterpart of Observe: it never alerts, it only
// clears the stamp once the account has recovered.
func (w LowBalanceWatch) Settle(a *domain.Account) {
	if !w.low(a) {
		a.LowBalanceNotifiedAt = nil
	}
}

// Apply runs Observe and posts the alert when due. The caller persists a.
func (w LowBalanceWatch) Apply(ctx context.Context, notes repository.NotificationRepository, a *domain.Account, now time.Time) error {
	if !w.Observe(a, now) {
		return nil
	}
	msg := fmt.Sprintf("Your account %s balance is low: %s remaining.", a.AccountNumber, notify.Hours(a.Balance, w.SecondsPerHour))
	return notify.Post(ctx, notes, now, a.OwnerID, domain.TitleLowBalance, msg, map[string]string{
		"account_id": strconv.FormatInt(a.ID, 10),
		"balance":    strconv.FormatInt(a.Balance, 10),
	})
}
