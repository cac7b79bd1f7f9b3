package loan

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

// reminderWindow is how close a due date must be for a reminder at disbursement.
const reminderWindow = 7 * 24 * time.Hour

type Engine struct {
	store            repository.Store
	locks            *lock.Keyed
	watch            ledger.LowBalanceWatch
	baseRate         decimal.Decimal
	marketAdjustment decimal.Decimal
	metrics          *metrics.Collector
	now              domain.Clock
	refAttempts      int
}

func NewEngine(store repository.Store, locks *lock.Keyed, watch ledger.LowBalanceWatch, baseRate, marketAdjustment decimal.Decimal, clock domain.Clock) *Engine {
	return &Engine{
		store:            store,
		locks:            locks,
		watch:            watch,
		baseRate:         baseRate,
		marketAdjustment: marketAdjustment,
		now:              clock.OrSystem(),
		refAttempts:      transaction.DefaultReferenceAttempts,
	}
}

func (e *Engine) WithMetrics(m *metrics.Collector) *Engine {
	e.metrics = m
	return e
}

// Apply approves a loan, credits the principal and records the disbursement.
func (e *Engine) Apply(ctx context.Context, accountID, principal int64, termDays int, kind domain.RepaymentStrategy) (domain.Result, error) {
	logger.EnterMethod("loan.Apply", "accountID", accountID, "principal", principal, "termDays", termDays, "strategy", kind)

	if principal <= 0 {
		return domain.Failure(domain.ErrInvalidAmount), nil
	}
	if termDays <= 0 {
		return domain.Failure(domain.ErrInvalidTerm), nil
	}
	strategy, err := For(kind)
	if err != nil {
		return domain.Failure(err), nil
	}

	release := e.locks.Acquire(lock.AccountKey(accountID))
	defer release()

	var loan *domain.Loan
	var rec *domain.Transaction
	err = transaction.RetryOnDuplicateReference(e.refAttempts, func() error {
		return e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			account, err := r.Accounts.GetForUpdate(ctx, accountID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrAccountNotFound)
			}
			if account.Status != domain.AccountStatusActive {
				return domain.ErrAccountNotActive
			}
			active, err := r.Loans.CountActiveByAccount(ctx, accountID)
			if err != nil {
				return err
			}
			if active >= domain.MaxActiveLoans {
				return domain.ErrTooManyLoans
			}
			owner, err := r.Owners.GetByID(ctx, account.OwnerID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrOwnerNotFound)
			}

			now := e.now()
			loan = &domain.Loan{
				AccountID:    accountID,
				Principal:    principal,
				InterestRate: InterestRate(e.baseRate, principal, termDays, owner.Reputation),
				TermDays:     termDays,
				Status:       domain.LoanStatusActive,
				Strategy:     kind,
				CreatedAt:    now,
				DueDate:      now.AddDate(0, 0, termDays),
				UpdatedAt:    now,
			}
			if kind == domain.StrategyDynamic {
				loan.MarketAdjustment = e.marketAdjustment
			}
			loan.RemainingAmount = strategy.TotalRepayment(loan)
			if err := r.Loans.Create(ctx, loan); err != nil {
				return err
			}

			if err := ledger.Deposit(account, principal, now); err != nil {
				return err
			}
			e.watch.Settle(account)
			if err := r.Accounts.Update(ctx, account); err != nil {
				return err
			}

			rec = transaction.NewRecord(transaction.Movement{
				Type:          domain.TransactionTypeLoanDisbursement,
				DestinationID: &account.ID,
				Amount:        principal,
				Description:   fmt.Sprintf("Loan #%d disbursement", loan.ID),
			}, domain.TransactionStatusCompleted, now)
			if err := r.Transactions.Create(ctx, rec); err != nil {
				return err
			}

			if loan.DueDate.Sub(now) <= reminderWindow {
				return e.remind(ctx, r, account, loan, now, "is due soon")
			}
			return nil
		})
	})
	if err != nil {
		return e.outcome("loan.Apply", err)
	}

	logger.Info("Loan approved", "loanID", loan.ID, "accountID", accountID, "rate", loan.InterestRate,
		"total", loan.RemainingAmount, "strategy", kind)
	return domain.Succeeded(fmt.Sprintf("Loan approved; %d seconds to repay by %s",
		loan.RemainingAmount, loan.DueDate.Format(time.DateOnly))).WithTransaction(rec).WithResource(loan.ID), nil
}

// MakePayment applies a repayment. The account is debited only what the
// strategy charges, which never exceeds amount.
func (e *Engine) MakePayment(ctx context.Context, loanID, amount int64) (domain.Result, error) {
	logger.EnterMethod("loan.MakePayment", "loanID", loanID, "amount", amount)

	if amount <= 0 {
		return domain.Failure(domain.ErrInvalidAmount), nil
	}
	existing, err := e.store.Repos().Loans.GetByID(ctx, loanID)
	if err != nil {
		return e.outcome("loan.MakePayment", ledger.NotFound(err, domain.ErrLoanNotFound))
	}

	release := e.locks.Acquire(lock.LoanKey(loanID), lock.AccountKey(existing.AccountID))
	defer release()

	var loan *domain.Loan
	var rec *domain.Transaction
	err = transaction.RetryOnDuplicateReference(e.refAttempts, func() error {
		return e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			var err error
			loan, err = r.Loans.GetForUpdate(ctx, loanID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrLoanNotFound)
			}
			if loan.Status != domain.LoanStatusActive {
				return domain.ErrLoanNotActive
			}
			strategy, err := For(loan.Strategy)
			if err != nil {
				return err
			}
			account, err := r.Accounts.GetForUpdate(ctx, loan.AccountID)
			if err != nil {
				return ledger.NotFound(err, domain.ErrAccountNotFound)
			}

			now := e.now()
			p := strategy.ApplyPayment(loan, amount, now)
			if err := ledger.Withdraw(account, p.Charged, now); err != nil {
				return err
			}
			if err := e.watch.Apply(ctx, r.Notifications, account, now); err != nil {
				return err
			}
			if err := r.Accounts.Update(ctx, account); err != nil {
				return err
			}

			loan.RemainingAmount -= p.Applied
			if loan.RemainingAmount <= 0 {
				loan.RemainingAmount = 0
				loan.Status = domain.LoanStatusPaid
			}
			loan.UpdatedAt = now
			if err := r.Loans.Update(ctx, loan); err != nil {
				return err
			}

			rec = transaction.NewRecord(transaction.Movement{
				Type:        domain.TransactionTypeLoanPayment,
				SourceID:    &account.ID,
				Amount:      p.Charged,
				Description: fmt.Sprintf("Loan #%d payment (%d applied)", loan.ID, p.Applied),
			}, domain.TransactionStatusCompleted, now)
			return r.Transactions.Create(ctx, rec)
		})
	})
	if err != nil {
		return e.outcome("loan.MakePayment", err)
	}

	msg := fmt.Sprintf("Payment applied; %d seconds remaining", loan.RemainingAmount)
	if loan.Status == domain.LoanStatusPaid {
		msg = "Loan fully repaid"
	}
	logger.Info("Loan payment applied", "loanID", loanID, "charged", rec.Amount, "remaining", loan.RemainingAmount)
	return domain.Succeeded(msg).WithTransaction(rec).WithResource(loanID), nil
}

// ApplyMarketAdjustment re-prices a Dynamic loan. What was already repaid
// stays credited; the remaining amount follows the new total.
func (e *Engine) ApplyMarketAdjustment(ctx context.Context, loanID int64, adjustment decimal.Decimal) (domain.Result, error) {
	release := e.locks.Acquire(lock.LoanKey(loanID))
	defer release()

	var loan *domain.Loan
	err := e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		var err error
		loan, err = r.Loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return ledger.NotFound(err, domain.ErrLoanNotFound)
		}
		if loan.Strategy != domain.StrategyDynamic {
			return domain.ErrNotDynamicLoan
		}
		if loan.Status != domain.LoanStatusActive {
			return domain.ErrLoanNotActive
		}

		var dyn Dynamic
		repaid := dyn.TotalRepayment(loan) - loan.RemainingAmount
		loan.MarketAdjustment = adjustment
		loan.RemainingAmount = dyn.TotalRepayment(loan) - repaid
		if loan.RemainingAmount <= 0 {
			loan.RemainingAmount = 0
			loan.Status = domain.LoanStatusPaid
		}
		loan.UpdatedAt = e.now()
		return r.Loans.Update(ctx, loan)
	})
	if err != nil {
		return e.outcome("loan.ApplyMarketAdjustment", err)
	}
	logger.Info("Market adjustment applied", "loanID", loanID, "adjustment", adjustment, "remaining", loan.RemainingAmount)
	res := domain.Succeeded(fmt.Sprintf("Loan re-priced; %d seconds remaining", loan.RemainingAmount)).WithResource(loanID)
	res.Amount = loan.RemainingAmount
	return res, nil
}

// Schedule returns the loan's repayment plan under its strategy.
func (e *Engine) Schedule(ctx context.Context, loanID int64) ([]domain.Instalment, error) {
	loan, err := e.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	strategy, err := For(loan.Strategy)
	if err != nil {
		return nil, err
	}
	return strategy.Schedule(loan), nil
}

func (e *Engine) Get(ctx context.Context, loanID int64) (*domain.Loan, error) {
	loan, err := e.store.Repos().Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, ledger.NotFound(err, domain.ErrLoanNotFound)
	}
	return loan, nil
}

func (e *Engine) ListByAccount(ctx context.Context, accountID int64) ([]domain.Loan, error) {
	return e.store.Repos().Loans.ListByAccount(ctx, accountID)
}

// SweepOverdue defaults every Active loan past its due date. Each loan is
// handled under its own lock and transaction; one failure does not stop the
// sweep.
func (e *Engine) SweepOverdue(ctx context.Context) (int, error) {
	now := e.now()
	ids, err := e.store.Repos().Loans.ListOverdueIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue loans: %w", err)
	}

	var errs []error
	defaulted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		changed, err := e.defaultLoan(ctx, id, now)
		if err != nil {
			logger.Error("Failed to default loan", "loanID", id, "error", err)
			errs = append(errs, fmt.Errorf("loan %d: %w", id, err))
			continue
		}
		if changed {
			defaulted++
		}
	}
	e.metrics.RecordSweep("overdue_loans", defaulted)
	logger.Info("Overdue loan sweep finished", "candidates", len(ids), "defaulted", defaulted)
	return defaulted, errors.Join(errs...)
}

func (e *Engine) defaultLoan(ctx context.Context, loanID int64, now time.Time) (bool, error) {
	release := e.locks.Acquire(lock.LoanKey(loanID))
	defer release()

	changed := false
	err := e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		loan, err := r.Loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanStatusActive || !loan.DueDate.Before(now) {
			return nil
		}
		loan.Status = domain.LoanStatusDefaulted
		loan.UpdatedAt = now
		if err := r.Loans.Update(ctx, loan); err != nil {
			return err
		}
		account, err := r.Accounts.GetByID(ctx, loan.AccountID)
		if err != nil {
			return err
		}
		changed = true
		return e.remind(ctx, r, account, loan, now, "is overdue and has been marked as defaulted")
	})
	return changed, err
}

func (e *Engine) remind(ctx context.Context, r *repository.Repositories, account *domain.Account, loan *domain.Loan, now time.Time, state string) error {
	msg := fmt.Sprintf("Your loan #%d of %s on account %s %s. Remaining: %s, due %s.",
		loan.ID, notify.Hours(loan.Principal, e.watch.SecondsPerHour), account.AccountNumber, state,
		notify.Hours(loan.RemainingAmount, e.watch.SecondsPerHour), loan.DueDate.Format(time.DateOnly))
	return notify.Post(ctx, r.Notifications, now, account.OwnerID, domain.TitleLoanReminder, msg, map[string]string{
		"loan_id":    strconv.FormatInt(loan.ID, 10),
		"account_id": strconv.FormatInt(account.ID, 10),
	})
}

// outcome turns a business error into a declined result and passes
// infrastructure errors through.
func (e *Engine) outcome(method string, err error) (domain.Result, error) {
	if domain.IsBusiness(err) {
		logger.ExitMethod(method, "declined", err)
		return domain.Failure(err), nil
	}
	logger.ExitMethodWithError(method, err)
	return domain.Result{}, err
}
