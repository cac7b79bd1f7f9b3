// Package fees runs the post-commit stages that derive tax and bonus
// transactions from a completed movement.
package fees

import (
	"context"
	"fmt"

	"chronobank/internal/domain"
	"chronobank/internal/ledger"
	"chronobank/internal/lock"
	"chronobank/internal/logger"
	"chronobank/internal/repository"
	"chronobank/internal/transaction"

	"github.com/shopspring/decimal"
)

// Stage derives at most one movement from a completed origin transaction.
type Stage interface {
	Name() string
	// Target returns the account the derived movement touches, if the stage
	// applies to origin at all.
	Target(origin *domain.Transaction) (accountID int64, ok bool)
	// Derive inspects the locked target and returns the movement to apply, or
	// nil when nothing is due.
	Derive(origin *domain.Transaction, target *domain.Account) transaction.Command
}

// TransferTax charges a percentage of each transfer to the receiving account.
type TransferTax struct {
	Rate decimal.Decimal
}

func (TransferTax) Name() string { return "transfer_tax" }

func (s TransferTax) Target(origin *domain.Transaction) (int64, bool) {
	if origin.Type != domain.TransactionTypeTransfer || origin.DestinationAccountID == nil {
		return 0, false
	}
	return *origin.DestinationAccountID, true
}

func (s TransferTax) Derive(origin *domain.Transaction, target *domain.Account) transaction.Command {
	tax := portion(origin.Amount, s.Rate)
	if tax <= 0 || !ledger.Allows(target.Status, ledger.CapWithdraw) || target.Balance < tax {
		return nil
	}
	return transaction.FeeCommand{
		AccountID:   target.ID,
		Amount:      tax,
		Description: "Tax on transaction " + origin.ReferenceCode,
	}
}

// DepositBonus credits a percentage of each deposit back to the depositor.
// Savings accounts earn SavingsRate instead of Rate.
type DepositBonus struct {
	Rate        decimal.Decimal
	SavingsRate decimal.Decimal
}

func (DepositBonus) Name() string { return "deposit_bonus" }

func (s DepositBonus) Target(origin *domain.Transaction) (int64, bool) {
	if origin.Type != domain.TransactionTypeDeposit || origin.DestinationAccountID == nil || origin.OriginTransactionID != nil {
		return 0, false
	}
	return *origin.DestinationAccountID, true
}

func (s DepositBonus) Derive(origin *domain.Transaction, target *domain.Account) transaction.Command {
	rate := s.Rate
	if target.IsSavings() {
		rate = s.SavingsRate
	}
	bonus := portion(origin.Amount, rate)
	if bonus <= 0 || !ledger.Allows(target.Status, ledger.CapDeposit) {
		return nil
	}
	return transaction.DepositCommand{
		AccountID:   target.ID,
		Amount:      bonus,
		Description: "Bonus on transaction " + origin.ReferenceCode,
	}
}

// portion is floor(amount * rate).
func portion(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
}

// Pipeline applies its stages in order. Each stage commits on its own, so a
// stage that fails leaves the origin and earlier stages in place.
type Pipeline struct {
	store       repository.Store
	locks       *lock.Keyed
	watch       ledger.LowBalanceWatch
	stages      []Stage
	now         domain.Clock
	refAttempts int
}

func NewPipeline(store repository.Store, locks *lock.Keyed, watch ledger.LowBalanceWatch, clock domain.Clock, stages ...Stage) *Pipeline {
	return &Pipeline{
		store:       store,
		locks:       locks,
		watch:       watch,
		stages:      stages,
		now:         clock.OrSystem(),
		refAttempts: transaction.DefaultReferenceAttempts,
	}
}

// Run implements transaction.PostProcessor.
func (p *Pipeline) Run(ctx context.Context, origin *domain.Transaction) {
	if _, err := p.Process(ctx, origin); err != nil {
		logger.Error("Post-processing failed", "reference", origin.ReferenceCode, "error", err)
	}
}

// Process runs every stage against origin and returns the derived records.
// It stops at the first infrastructure error.
func (p *Pipeline) Process(ctx context.Context, origin *domain.Transaction) ([]domain.Transaction, error) {
	var derived []domain.Transaction
	for _, s := range p.stages {
		accountID, ok := s.Target(origin)
		if !ok {
			continue
		}
		rec, err := p.apply(ctx, s, origin, accountID)
		if err != nil {
			return derived, fmt.Errorf("%s stage: %w", s.Name(), err)
		}
		if rec != nil {
			logger.Info("Derived transaction recorded", "stage", s.Name(), "origin", origin.ReferenceCode,
				"reference", rec.ReferenceCode, "amount", rec.Amount)
			derived = append(derived, *rec)
		}
	}
	return derived, nil
}

func (p *Pipeline) apply(ctx context.Context, s Stage, origin *domain.Transaction, accountID int64) (*domain.Transaction, error) {
	release := p.locks.Acquire(lock.AccountKey(accountID))
	defer release()

	var out *domain.Transaction
	err := transaction.RetryOnDuplicateReference(p.refAttempts, func() error {
		out = nil
		return p.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			target, err := r.Accounts.GetForUpdate(ctx, accountID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrAccountNotFound)
			}
			cmd := s.Derive(origin, target)
			if cmd == nil {
				return nil
			}

			now := p.now()
			m := cmd.Movement()
			if m.SourceID != nil {
				if err := cmd.Execute(target, nil, now); err != nil {
					return err
				}
				if err := p.watch.Apply(ctx, r.Notifications, target, now); err != nil {
					return err
				}
			} else {
				if err := cmd.Execute(nil, target, now); err != nil {
					return err
				}
				p.watch.Settle(target)
			}
			if err := r.Accounts.Update(ctx, target); err != nil {
				return err
			}

			rec := transaction.NewRecord(m, domain.TransactionStatusCompleted, now)
			rec.OriginTransactionID = &origin.ID
			if err := r.Transactions.Create(ctx, rec); err != nil {
				return err
			}
			out = rec
			return nil
		})
	})
	if domain.IsBusiness(err) {
		// A declined stage is skipped, never retried.
		logger.Warn("Stage skipped", "stage", s.Name(), "origin", origin.ReferenceCode, "reason", err)
		return nil, nil
	}
	return out, err
}
