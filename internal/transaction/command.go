// Package transaction executes money movements as reversible commands, each
// inside one atomic unit that leaves a durable transaction record.
package transaction

import (
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/ledger"
)

// Movement describes what a command moves and between which accounts.
type Movement struct {
	Type          domain.TransactionType
	SourceID      *int64
	DestinationID *int64
	Amount        int64
	Description   string
}

func (m Movement) validate() error {
	if !m.Type.Valid() {
		return domain.ErrUnknownTransactionType
	}
	if m.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if m.SourceID != nil && m.DestinationID != nil && *m.SourceID == *m.DestinationID {
		return domain.ErrSameAccount
	}
	return nil
}

// accountIDs returns the touched account ids in ascending order, which is the
// order locks and row locks are taken in.
func (m Movement) accountIDs() []int64 {
	var ids []int64
	if m.SourceID != nil {
		ids = append(ids, *m.SourceID)
	}
	if m.DestinationID != nil {
		ids = append(ids, *m.DestinationID)
	}
	if len(ids) == 2 && ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	return ids
}

// Command mutates loaded accounts. src or dst is nil when the movement has no
// such side. Neither method persists anything.
type Command interface {
	Movement() Movement
	Execute(src, dst *domain.Account, now time.Time) error
	Undo(src, dst *domain.Account, now time.Time) error
}

type DepositCommand struct {
	AccountID   int64
	Amount      int64
	Description string
}

func (c DepositCommand) Movement() Movement {
	id := c.AccountID
	return Movement{Type: domain.TransactionTypeDeposit, DestinationID: &id, Amount: c.Amount, Description: describe(c.Description, "Deposit")}
}

func (c DepositCommand) Execute(_, dst *domain.Account, now time.Time) error {
	return ledger.Deposit(dst, c.Amount, now)
}

func (c DepositCommand) Undo(_, dst *domain.Account, now time.Time) error {
	return ledger.Adjust(dst, -c.Amount, now)
}

type WithdrawCommand struct {
	AccountID   int64
	Amount      int64
	Description string
}

func (c WithdrawCommand) Movement() Movement {
	id := c.AccountID
	return Movement{Type: domain.TransactionTypeWithdrawal, SourceID: &id, Amount: c.Amount, Description: describe(c.Description, "Withdrawal")}
}

func (c WithdrawCommand) Execute(src, _ *domain.Account, now time.Time) error {
	return ledger.Withdraw(src, c.Amount, now)
}

func (c WithdrawCommand) Undo(src, _ *domain.Account, now time.Time) error {
	return ledger.Adjust(src, c.Amount, now)
}

// FeeCommand debits a charge from an account.
type FeeCommand struct {
	AccountID   int64
	Amount      int64
	Description string
}

func (c FeeCommand) Movement() Movement {
	id := c.AccountID
	return Movement{Type: domain.TransactionTypeFee, SourceID: &id, Amount: c.Amount, Description: describe(c.Description, "Fee")}
}

func (c FeeCommand) Execute(src, _ *domain.Account, now time.Time) error {
	return ledger.Withdraw(src, c.Amount, now)
}

func (c FeeCommand) Undo(src, _ *domain.Account, now time.Time) error {
	return ledger.Adjust(src, c.Amount, now)
}

type TransferCommand struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        int64
	Description   string
}

func (c TransferCommand) Movement() Movement {
	from, to := c.FromAccountID, c.ToAccountID
	return Movement{Type: domain.TransactionTypeTransfer, SourceID: &from, DestinationID: &to, Amount: c.Amount, Description: describe(c.Description, "Transfer")}
}

func (c TransferCommand) Execute(src, dst *domain.Account, now time.Time) error {
	return ledger.Transfer(src, dst, c.Amount, now)
}

func (c TransferCommand) Undo(src, dst *domain.Account, now time.Time) error {
	before := *dst
	if err := ledger.Adjust(dst, -c.Amount, now); err != nil {
		return err
	}
	if err := ledger.Adjust(src, c.Amount, now); err != nil {
		*dst = before
		return err
	}
	return nil
}

func describe(description, fallback string) string {
	if description != "" {
		return description
	}
	return fallback
}

// CommandFor rebuilds the command behind a stored record so it can be undone.
// Fee and bonus records reverse too; loan and
// investment records belong to their own engines and cannot be undone here.
func CommandFor(tx *domain.Transaction) (Command, error) {
	switch tx.Type {
	case domain.TransactionTypeDeposit:
		if tx.DestinationAccountID == nil {
			break
		}
		return DepositCommand{AccountID: *tx.DestinationAccountID, Amount: tx.Amount, Description: tx.Description}, nil
	case domain.TransactionTypeWithdrawal:
		if tx.SourceAccountID == nil {
			break
		}
		return WithdrawCommand{AccountID: *tx.SourceAccountID, Amount: tx.Amount, Description: tx.Description}, nil
	case domain.TransactionTypeFee:
		if tx.SourceAccountID == nil {
			break
		}
		return FeeCommand{AccountID: *tx.SourceAccountID, Amount: tx.Amount, Description: tx.Description}, nil
	case domain.TransactionTypeTransfer:
		if tx.SourceAccountID == nil || tx.DestinationAccountID == nil {
			break
		}
		return TransferCommand{FromAccountID: *tx.SourceAccountID, ToAccountID: *tx.DestinationAccountID, Amount: tx.Amount, Description: tx.Description}, nil
	}
	return nil, domain.ErrIrreversibleType
}
