// Package investment locks time away for a term and pays it back with a
// return on withdrawal.
package investment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/ledger"
	"chronobank/internal/lock"
	"chronobank/internal/logger"
	"chronobank/internal/metrics"
	"chronobank/internal/notify"
	"chronobank/internal/repository"
	"chronobank/internal/transaction"

	"github.com/shopspring/decimal"
)

var (
	one          = decimal.NewFromInt(1)
	rateFactor   = decimal.RequireFromString("1.5")
	monthlyBonus = decimal.RequireFromString("0.02")
	month        = decimal.NewFromInt(30)
)

// CalculateReturn is floor(principal * (1+rate) * (1 + termDays/30 * 0.02)).
func CalculateReturn(inv *domain.Investment) int64 {
	term := one.Add(decimal.NewFromInt(int64(inv.TermDays)).Div(month).Mul(monthlyBonus))
	return decimal.NewFromInt(inv.Principal).Mul(one.Add(inv.InterestRate)).Mul(term).Floor().IntPart()
}

// Rate is what an account earns on investments: its type rate times 1.5.
func Rate(a *domain.Account) decimal.Decimal {
	return a.InterestRate.Mul(rateFactor)
}

type Engine struct {
	store       repository.Store
	locks       *lock.Keyed
	watch       ledger.LowBalanceWatch
	metrics     *metrics.Collector
	now         domain.Clock
	refAttempts int
}

func NewEngine(store repository.Store, locks *lock.Keyed, watch ledger.LowBalanceWatch, clock domain.Clock) *Engine {
	return &Engine{
		store:       store,
		locks:       locks,
		watch:       watch,
		now:         clock.OrSystem(),
		refAttempts: transaction.DefaultReferenceAttempts,
	}
}

func (e *Engine) WithMetrics(m *metrics.Collector) *Engine {
	e.metrics = m
	return e
}

// Create debits the principal and opens an investment maturing after termDays.
func (e *Engine) Create(ctx context.Context, accountID, principal int64, termDays int) (domain.Result, error) {
	logger.EnterMethod("investment.Create", "accountID", accountID, "principal", principal, "termDays", termDays)

	if principal <= 0 {
		return domain.Failure(domain.ErrInvalidAmount), nil
	}
	if termDays <= 0 {
		return domain.Failure(domain.ErrInvalidTerm), nil
	}

	release := e.locks.Acquire(lock.AccountKey(accountID))
	defer release()

	var inv *domain.Investment
	var rec *domain.Transaction
	err := transaction.RetryOnDuplicateReference(e.refAttempts, func() error {
		return e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			account, err := r.Accounts.GetForUpdate(ctx, accountID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrAccountNotFound)
			}
			if account.Status != domain.AccountStatusActive {
				return domain.ErrAccountNotActive
			}

			now := e.now()
			if err := ledger.Withdraw(account, principal, now); err != nil {
				return err
			}
			if err := e.watch.Apply(ctx, r.Notifications, account, now); err != nil {
				return err
			}
			if err := r.Accounts.Update(ctx, account); err != nil {
				return err
			}

			inv = &domain.Investment{
				AccountID:    accountID,
				Principal:    principal,
				InterestRate: Rate(account),
				TermDays:     termDays,
				Status:       domain.InvestmentStatusActive,
				CreatedAt:    now,
				MaturityDate: now.AddDate(0, 0, termDays),
				UpdatedAt:    now,
			}
			if err := r.Investments.Create(ctx, inv); err != nil {
				return err
			}

			rec = transaction.NewRecord(transaction.Movement{
				Type:        domain.TransactionTypeInvestment,
				SourceID:    &account.ID,
				Amount:      principal,
				Description: fmt.Sprintf("Investment #%d for %d days", inv.ID, termDays),
			}, domain.TransactionStatusCompleted, now)
			return r.Transactions.Create(ctx, rec)
		})
	})
	if err != nil {
		return e.outcome("investment.Create", err)
	}

	logger.Info("Investment created", "investmentID", inv.ID, "accountID", accountID, "rate", inv.InterestRate,
		"maturity", inv.MaturityDate)
	return domain.Succeeded(fmt.Sprintf("Investment created; %d seconds expected at %s",
		CalculateReturn(inv), inv.MaturityDate.Format(time.DateOnly))).WithTransaction(rec).WithResource(inv.ID), nil
}

// Withdraw pays an investment out once. Before maturity only the principal
// comes back and the investment is Withdrawn; afterwards the full return is
// paid and it is Matured.
func (e *Engine) Withdraw(ctx context.Context, investmentID int64) (domain.Result, error) {
	logger.EnterMethod("investment.Withdraw", "investmentID", investmentID)

	existing, err := e.store.Repos().Investments.GetByID(ctx, investmentID)
	if err != nil {
		return e.outcome("investment.Withdraw", ledger.NotFound(err, domain.ErrInvestmentNotFound))
	}

	release := e.locks.Acquire(lock.InvestmentKey(investmentID), lock.AccountKey(existing.AccountID))
	defer release()

	var inv *domain.Investment
	var rec *domain.Transaction
	err = transaction.RetryOnDuplicateReference(e.refAttempts, func() error {
		return e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			var err error
			inv, err = r.Investments.GetForUpdate(ctx, investmentID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrInvestmentNotFound)
			}
			if !inv.Withdrawable() {
				return domain.ErrInvestmentPaidOut
			}
			account, err := r.Accounts.GetForUpdate(ctx, inv.AccountID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrAccountNotFound)
			}

			now := e.now()
			payout := inv.Principal
			inv.Status = domain.InvestmentStatusWithdrawn
			if !now.Before(inv.MaturityDate) {
				payout = CalculateReturn(inv)
				inv.Status = domain.InvestmentStatusMatured
			}
			inv.PaidOutAt = &now
			inv.UpdatedAt = now

			if err := ledger.Deposit(account, payout, now); err != nil {
				return err
			}
			e.watch.Settle(account)
			if err := r.Accounts.Update(ctx, account); err != nil {
				return err
			}
			if err := r.Investments.Update(ctx, inv); err != nil {
				return err
			}

			rec = transaction.NewRecord(transaction.Movement{
				Type:          domain.TransactionTypeInvestmentReturn,
				DestinationID: &account.ID,
				Amount:        payout,
				Description:   fmt.Sprintf("Investment #%d payout", inv.ID),
			}, domain.TransactionStatusCompleted, now)
			return r.Transactions.Create(ctx, rec)
		})
	})
	if err != nil {
		return e.outcome("investment.Withdraw", err)
	}

	msg := "Investment matured and paid out"
	if inv.Status == domain.InvestmentStatusWithdrawn {
		msg = "Investment withdrawn early; interest forfeited"
	}
	logger.Info("Investment paid out", "investmentID", investmentID, "payout", rec.Amount, "status", inv.Status)
	return domain.Succeeded(msg).WithTransaction(rec).WithResource(investmentID), nil
}

func (e *Engine) Get(ctx context.Context, investmentID int64) (*domain.Investment, error) {
	inv, err := e.store.Repos().Investments.GetByID(ctx, investmentID)
	if err != nil {
		return nil, ledger.NotFound(err, domain.ErrInvestmentNotFound)
	}
	return inv, nil
}

func (e *Engine) ListByAccount(ctx context.Context, accountID int64) ([]domain.Investment, error) {
	return e.store.Repos().Investments.ListByAccount(ctx, accountID)
}

// SweepMatured marks Active investments past maturity as Matured. Balances
// are untouched; the return is realised by Withdraw.
func (e *Engine) SweepMatured(ctx context.Context) (int, error) {
	now := e.now()
	ids, err := e.store.Repos().Investments.ListMaturedIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list matured investments: %w", err)
	}

	var errs []error
	matured := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		changed, err := e.mature(ctx, id, now)
		if err != nil {
			logger.Error("Failed to mature investment", "investmentID", id, "error", err)
			errs = append(errs, fmt.Errorf("investment %d: %w", id, err))
			continue
		}
		if changed {
			matured++
		}
	}
	e.metrics.RecordSweep("matured_investments", matured)
	logger.Info("Investment maturity sweep finished", "candidates", len(ids), "matured", matured)
	return matured, errors.Join(errs...)
}

func (e *Engine) mature(ctx context.Context, investmentID int64, now time.Time) (bool, error) {
	release := e.locks.Acquire(lock.InvestmentKey(investmentID))
	defer release()

	changed := false
	err := e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		inv, err := r.Investments.GetForUpdate(ctx, investmentID)
		if err != nil {
			return err
		}
		if inv.Status != domain.InvestmentStatusActive || inv.MaturityDate.After(now) {
			return nil
		}
		inv.Status = domain.InvestmentStatusMatured
		inv.UpdatedAt = now
		if err := r.Investments.Update(ctx, inv); err != nil {
			return err
		}
		account, err := r.Accounts.GetByID(ctx, inv.AccountID)
		if err != nil {
			return err
		}
		changed = true

		msg := fmt.Sprintf("Your investment #%d on account %s has matured. Withdraw to receive %s.",
			inv.ID, account.AccountNumber, notify.Hours(CalculateReturn(inv), e.watch.SecondsPerHour))
		return notify.Post(ctx, r.Notifications, now, account.OwnerID, domain.TitleInvestmentMatured, msg, map[string]string{
			"investment_id": strconv.FormatInt(inv.ID, 10),
			"account_id":    strconv.FormatInt(account.ID, 10),
		})
	})
	return changed, err
}

func (e *Engine) outcome(method string, err error) (domain.Result, error) {
	if domain.IsBusiness(err) {
		logger.ExitMethod(method, "declined", err)
		return domain.Failure(err), nil
	}
	logger.ExitMethodWithError(method, err)
	return domain.Result{}, err
}
