// Package ledger holds the account balance and status state machine and the
// persisted account operations built on it.
package ledger

import (
	"time"

	"chronobank/internal/domain"
)

type Capability int

const (
	CapDeposit Capability = iota
	CapWithdraw
	CapTransferOut
	CapTransferIn
)

func (c Capability) String() string {
	switch c {
	case CapDeposit:
		return "deposit"
	case CapWithdraw:
		return "withdraw"
	case CapTransferOut:
		return "transfer-out"
	case CapTransferIn:
		return "transfer-in"
	}
	return "unknown"
}

// Allows is the capability table:
//
//	           deposit  withdraw  transfer-out  transfer-in
//	Active     yes      yes       yes           yes
//	Overdrawn  yes      no        no            yes
//	Frozen     no       no        no            no
func Allows(status domain.AccountStatus, c Capability) bool {
	switch status {
	case domain.AccountStatusActive:
		return true
	case domain.AccountStatusOverdrawn:
		return c == CapDeposit || c == CapTransferIn
	default:
		return false
	}
}

func denied(c Capability) error {
	switch c {
	case CapDeposit:
		return domain.ErrDepositNotAllowed
	case CapWithdraw:
		return domain.ErrWithdrawNotAllowed
	case CapTransferOut:
		return domain.ErrTransferOutNotAllowed
	default:
		return domain.ErrTransferInNotAllowed
	}
}

// afterDebit moves Active to Overdrawn once the balance falls below minBalance.
func afterDebit(a *domain.Account) {
	if a.Status == domain.AccountStatusActive && a.Balance < a.MinBalance {
		a.Status = domain.AccountStatusOverdrawn
	}
}

// afterCredit moves Overdrawn back to Active once minBalance is restored.
func afterCredit(a *domain.Account) {
	if a.Status == domain.AccountStatusOverdrawn && a.Balance >= a.MinBalance {
		a.Status = domain.AccountStatusActive
	}
}

// Freeze overrides any status. Only an administrative action may call it.
func Freeze(a *domain.Account, now time.Time) {
	a.Status = domain.AccountStatusFrozen
	a.UpdatedAt = now
}

// Unfreeze re-evaluates a frozen account against its minimum balance.
func Unfreeze(a *domain.Account, now time.Time) error {
	if a.Status != domain.AccountStatusFrozen {
		return domain.ErrNotFrozen
	}
	if a.Balance >= a.MinBalance {
		a.Status = domain.AccountStatusActive
	} else {
		a.Status = domain.AccountStatusOverdrawn
	}
	a.UpdatedAt = now
	return nil
}
