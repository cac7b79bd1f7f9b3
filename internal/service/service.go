// Package service is the banking facade. Every operation answers with a
// domain.Result; an error return always means an infrastructure failure.
package service

import (
	"context"
	"strings"

	"chronobank/internal/config"
	"chronobank/internal/domain"
	"chronobank/internal/fees"
	"chronobank/internal/fraud"
	"chronobank/internal/investment"
	"chronobank/internal/ledger"
	"chronobank/internal/loan"
	"chronobank/internal/lock"
	"chronobank/internal/logger"
	"chronobank/internal/metrics"
	"chronobank/internal/repository"
	"chronobank/internal/risk"
	"chronobank/internal/transaction"

	"github.com/shopspring/decimal"
)

type BankService struct {
	store        repository.Store
	accounts     *ledger.Service
	transactions *transaction.Engine
	fraud        *fraud.Workflow
	fees         *fees.Pipeline
	loans        *loan.Engine
	investments  *investment.Engine
}

// NewBankService wires every engine over one store and one lock table.
// m may be nil.
func NewBankService(store repository.Store, cfg *config.Config, m *metrics.Collector, clock domain.Clock) *BankService {
	locks := lock.NewKeyed()
	watch := ledger.LowBalanceWatch{
		Threshold:      cfg.Ledger.LowBalanceThreshold,
		Cooldown:       cfg.LowBalanceCooldown(),
		SecondsPerHour: cfg.Ledger.SecondsPerDisplayHour,
	}

	scorer := risk.NewScorer(cfg.Ledger.MaxTransactionAmount, cfg.RiskThreshold())
	screen := fraud.NewWorkflow(store, locks, scorer, clock, watch.SecondsPerHour).WithMetrics(m)
	pipeline := fees.NewPipeline(store, locks, watch, clock,
		fees.TransferTax{Rate: config.Percent(cfg.Fees.TransferTaxPercent)},
		fees.DepositBonus{
			Rate:        config.Percent(cfg.Fees.DepositBonusPercent),
			SavingsRate: config.Percent(cfg.Fees.SavingsBonusPercent),
		},
	)

	return &BankService{
		store:    store,
		accounts: ledger.NewService(store, locks, watch, clock),
		transactions: transaction.NewEngine(store, locks, watch, clock).
			WithScreener(screen).
			WithPostProcessor(pipeline).
			WithMetrics(m).
			WithReferenceAttempts(cfg.Ledger.ReferenceCodeAttempts),
		fraud: screen,
		fees:  pipeline,
		loans: loan.NewEngine(store, locks, watch,
			decimal.NewFromFloat(cfg.Rates.LoanBaseRate),
			decimal.NewFromFloat(cfg.Rates.MarketAdjustment), clock).WithMetrics(m),
		investments: investment.NewEngine(store, locks, watch, clock).WithMetrics(m),
	}
}

func (s *BankService) Accounts() *ledger.Service         { return s.accounts }
func (s *BankService) Transactions() *transaction.Engine { return s.transactions }
func (s *BankService) Fraud() *fraud.Workflow            { return s.fraud }
func (s *BankService) Loans() *loan.Engine               { return s.loans }
func (s *BankService) Investments() *investment.Engine   { return s.investments }

// RegisterOwner creates an owner profile with full reputation.
func (s *BankService) RegisterOwner(ctx context.Context, name, email string) (domain.Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Failure(domain.ErrOwnerNameRequired), nil
	}
	owner := &domain.OwnerProfile{Name: name, Email: strings.TrimSpace(email), Reputation: domain.MaxReputation}
	if err := s.store.Repos().Owners.Create(ctx, owner); err != nil {
		return outcome("service.RegisterOwner", err)
	}
	return domain.Succeeded("Owner registered").WithResource(owner.ID), nil
}

func (s *BankService) OpenAccount(ctx context.Context, ownerID int64, accountType string) (domain.Result, error) {
	t, err := s.store.Repos().AccountTypes.GetByName(ctx, accountType)
	if err != nil {
		return outcome("service.OpenAccount", ledger.NotFound(err, domain.ErrAccountTypeNotFound))
	}
	account, err := s.accounts.OpenAccount(ctx, ownerID, t.ID)
	if err != nil {
		return outcome("service.OpenAccount", err)
	}
	return domain.Succeeded("Account " + account.AccountNumber + " opened").WithResource(account.ID), nil
}

func (s *BankService) Deposit(ctx context.Context, accountID, amount int64, description, idempotencyKey string) (domain.Result, error) {
	cmd := transaction.DepositCommand{AccountID: accountID, Amount: amount, Description: description}
	return s.transactions.Execute(ctx, cmd, transaction.Options{IdempotencyKey: idempotencyKey})
}

func (s *BankService) Withdraw(ctx context.Context, accountID, amount int64, description, idempotencyKey string) (domain.Result, error) {
	cmd := transaction.WithdrawCommand{AccountID: accountID, Amount: amount, Description: description}
	return s.transactions.Execute(ctx, cmd, transaction.Options{IdempotencyKey: idempotencyKey})
}

func (s *BankService) Transfer(ctx context.Context, fromAccountID, toAccountID, amount int64, description, idempotencyKey string) (domain.Result, error) {
	cmd := transaction.TransferCommand{FromAccountID: fromAccountID, ToAccountID: toAccountID, Amount: amount, Description: description}
	return s.transactions.Execute(ctx, cmd, transaction.Options{IdempotencyKey: idempotencyKey})
}

func (s *BankService) Undo(ctx context.Context, transactionID int64) (domain.Result, error) {
	return s.transactions.Undo(ctx, transactionID)
}

func (s *BankService) ResolveAlert(ctx context.Context, alertID int64, isFraud bool) (domain.Result, error) {
	return s.fraud.Resolve(ctx, alertID, isFraud)
}

func (s *BankService) FreezeAccount(ctx context.Context, accountID int64, reason string) (domain.Result, error) {
	if err := s.accounts.FreezeAccount(ctx, accountID, reason); err != nil {
		return outcome("service.FreezeAccount", err)
	}
	return domain.Succeeded("Account frozen").WithResource(accountID), nil
}

func (s *BankService) UnfreezeAccount(ctx context.Context, accountID int64) (domain.Result, error) {
	account, err := s.accounts.UnfreezeAccount(ctx, accountID)
	if err != nil {
		return outcome("service.UnfreezeAccount", err)
	}
	return domain.Succeeded("Account unfrozen; status " + string(account.Status)).WithResource(accountID), nil
}

func (s *BankService) ApplyLoan(ctx context.Context, accountID, principal int64, termDays int, strategy domain.RepaymentStrategy) (domain.Result, error) {
	return s.loans.Apply(ctx, accountID, principal, termDays, strategy)
}

func (s *BankService) MakeLoanPayment(ctx context.Context, loanID, amount int64) (domain.Result, error) {
	return s.loans.MakePayment(ctx, loanID, amount)
}

func (s *BankService) CreateInvestment(ctx context.Context, accountID, principal int64, termDays int) (domain.Result, error) {
	return s.investments.Create(ctx, accountID, principal, termDays)
}

func (s *BankService) WithdrawInvestment(ctx context.Context, investmentID int64) (domain.Result, error) {
	return s.investments.Withdraw(ctx, investmentID)
}

// Notifications pages through a user's notifications, newest first.
func (s *BankService) Notifications(ctx context.Context, userID int64, limit, offset int) ([]domain.Notification, error) {
	return s.store.Repos().Notifications.List(ctx, userID, limit, offset)
}

// MarkNotificationRead flags one of the user's notifications as read.
func (s *BankService) MarkNotificationRead(ctx context.Context, notificationID, userID int64) (domain.Result, error) {
	if err := s.store.Repos().Notifications.MarkAsRead(ctx, notificationID, userID); err != nil {
		return outcome("service.MarkNotificationRead", ledger.NotFound(err, domain.ErrNotificationNotFound))
	}
	return domain.Succeeded("Notification marked as read").WithResource(notificationID), nil
}

func outcome(method string, err error) (domain.Result, error) {
	if domain.IsBusiness(err) {
		logger.ExitMethod(method, "declined", err)
		return domain.Failure(err), nil
	}
	logger.ExitMethodWithError(method, err)
	return domain.Result{}, err
}
