package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/lock"
	"chronobank/internal/logger"
	"chronobank/internal/notify"
	"chronobank/internal/repository"
)

// Service owns account records. One instance is built at startup and shared.
type Service struct {
	store repository.Store
	locks *lock.Keyed
	watch LowBalanceWatch
	now   domain.Clock
}

func NewService(store repository.Store, locks *lock.Keyed, watch LowBalanceWatch, clock domain.Clock) *Service {
	return &Service{store: store, locks: locks, watch: watch, now: clock.OrSystem()}
}

// Watch exposes the low-balance policy to the engines that move money.
func (s *Service) Watch() LowBalanceWatch {
	return s.watch
}

// OpenAccount creates an empty Active account of the given type.
func (s *Service) OpenAccount(ctx context.Context, ownerID, accountTypeID int64) (*domain.Account, error) {
	logger.EnterMethod("ledger.OpenAccount", "ownerID", ownerID, "accountTypeID", accountTypeID)
	repos := s.store.Repos()

	if _, err := repos.Owners.GetByID(ctx, ownerID); err != nil {
		return nil, NotFound(err, domain.ErrOwnerNotFound)
	}
	t, err := repos.AccountTypes.GetByID(ctx, accountTypeID)
	if err != nil {
		return nil, NotFound(err, domain.ErrAccountTypeNotFound)
	}

	now := s.now()
	account := &domain.Account{
		OwnerID:          ownerID,
		AccountTypeID:    t.ID,
		AccountTypeName:  t.Name,
		AccountNumber:    domain.NewAccountNumber(),
		Status:           domain.AccountStatusActive,
		MinBalance:       t.MinBalance,
		TransactionLimit: t.TransactionLimit,
		InterestRate:     t.InterestRate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repos.Accounts.Create(ctx, account); err != nil {
		logger.ExitMethodWithError("ledger.OpenAccount", err)
		return nil, err
	}
	logger.ExitMethod("ledger.OpenAccount", "accountID", account.ID, "accountNumber", account.AccountNumber)
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := s.store.Repos().Accounts.GetByID(ctx, id)
	if err != nil {
		return nil, NotFound(err, domain.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Service) AccountsByOwner(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	return s.store.Repos().Accounts.ListByOwner(ctx, ownerID)
}

// FreezeAccount is the administrative freeze.
func (s *Service) FreezeAccount(ctx context.Context, id int64, reason string) error {
	release := s.locks.Acquire(lock.AccountKey(id))
	defer release()

	return s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		a, err := r.Accounts.GetForUpdate(ctx, id)
		if err != nil {
			return NotFound(err, domain.ErrAccountNotFound)
		}
		return FreezeInTx(ctx, r, a, reason, s.now())
	})
}

// FreezeInTx freezes a loaded account and posts the owner notification
// through the caller's transaction.
func FreezeInTx(ctx context.Context, r *repository.Repositories, a *domain.Account, reason string, now time.Time) error {
	Freeze(a, now)
	if err := r.Accounts.Update(ctx, a); err != nil {
		return err
	}
	msg := "Your account " + a.AccountNumber + " has been frozen."
	if reason != "" {
		msg += " Reason: " + reason
	}
	logger.Warn("Account frozen", "accountID", a.ID, "reason", reason)
	return notify.Post(ctx, r.Notifications, now, a.OwnerID, domain.TitleAccountFrozen, msg, map[string]string{
		"account_id": strconv.FormatInt(a.ID, 10),
	})
}

func (s *Service) UnfreezeAccount(ctx context.Context, id int64) (*domain.Account, error) {
	release := s.locks.Acquire(lock.AccountKey(id))
	defer release()

	var out *domain.Account
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		a, err := r.Accounts.GetForUpdate(ctx, id)
		if err != nil {
			return NotFound(err, domain.ErrAccountNotFound)
		}
		if err := Unfreeze(a, s.now()); err != nil {
			return err
		}
		out = a
		return r.Accounts.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Account unfrozen", "accountID", id, "status", out.Status)
	return out, nil
}

// NotFound maps repository.ErrNotFound to the given business error and passes
// any other error through untouched.
func NotFound(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}
