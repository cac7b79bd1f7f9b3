package ledger

import (
	"time"

	"chronobank/internal/domain"
)

func credit(a *domain.Account, amount int64, c Capability, now time.Time) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if !Allows(a.Status, c) {
		return denied(c)
	}
	a.Balance += amount
	afterCredit(a)
	a.UpdatedAt = now
	return nil
}

func debit(a *domain.Account, amount int64, c Capability, now time.Time) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if !Allows(a.Status, c) {
		return denied(c)
	}
	if a.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	a.Balance -= amount
	afterDebit(a)
	a.UpdatedAt = now
	return nil
}

// Deposit credits a in place. On error a is unchanged.
func Deposit(a *domain.Account, amount int64, now time.Time) error {
	return credit(a, amount, CapDeposit, now)
}

// Withdraw debits a in place. On error a is unchanged.
func Withdraw(a *domain.Account, amount int64, now time.Time) error {
	return debit(a, amount, CapWithdraw, now)
}

// Transfer moves amount from src to dst. If the credit to dst is refused the
// debit on src is rolled back, so either both accounts change or neither does.
func Transfer(src, dst *domain.Account, amount int64, now time.Time) error {
	if src.ID == dst.ID {
		return domain.ErrSameAccount
	}
	before := *src
	if err := debit(src, amount, CapTransferOut, now); err != nil {
		return err
	}
	if err := credit(dst, amount, CapTransferIn, now); err != nil {
		*src = before
		return err
	}
	return nil
}

// Adjust applies a signed delta without consulting the capability table. It
// backs reversals; the balance still never goes negative and Frozen stays sticky.
func Adjust(a *domain.Account, delta int64, now time.Time) error {
	if a.Balance+delta < 0 {
		return domain.ErrInsufficientBalance
	}
	a.Balance += delta
	if delta < 0 {
		afterDebit(a)
	} else {
		afterCredit(a)
	}
	a.UpdatedAt = now
	return nil
}

// CheckLimit enforces the account type's per-transaction cap. Zero means no cap.
func CheckLimit(a *domain.Account, amount int64) error {
	if a.TransactionLimit > 0 && amount > a.TransactionLimit {
		return domain.ErrTransactionLimit
	}
	return nil
}
