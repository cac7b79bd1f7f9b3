package repository

import (
	"context"
	"errors"
	"time"

	"chronobank/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound                = errors.New("record not found")
	ErrDuplicateReference      = errors.New("duplicate transaction reference code")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

type AccountTypeRepository interface {
	Create(ctx context.Context, t *domain.AccountType) error
	GetByID(ctx context.Context, id int64) (*domain.AccountType, error)
	GetByName(ctx context.Context, name string) (*domain.AccountType, error)
}

type OwnerRepository interface {
	Create(ctx context.Context, owner *domain.OwnerProfile) error
	GetByID(ctx context.Context, id int64) (*domain.OwnerProfile, error)
	// AdjustReputation adds delta and clamps the score to [0, 100], returning the new score.
	AdjustReputation(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error)
}

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	// GetForUpdate loads the account and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Account, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByReference(ctx context.Context, code string) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TransactionStatus, at time.Time) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error)
	// ListByOrigin returns the records derived from originID, oldest first.
	ListByOrigin(ctx context.Context, originID int64) ([]domain.Transaction, error)
	CountOutgoingSince(ctx context.Context, accountID int64, since time.Time) (int, error)
	CountIncomingSince(ctx context.Context, accountID int64, since time.Time) (int, error)
}

type FraudAlertRepository interface {
	Create(ctx context.Context, alert *domain.FraudAlert) error
	GetByID(ctx context.Context, id int64) (*domain.FraudAlert, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.FraudAlert, error)
	Update(ctx context.Context, alert *domain.FraudAlert) error
	ListByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.FraudAlert, error)
}

type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id int64) (*domain.Loan, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error)
	Update(ctx context.Context, loan *domain.Loan) error
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Loan, error)
	CountActiveByAccount(ctx context.Context, accountID int64) (int, error)
	// ListOverdueIDs returns active loans whose due date is before now.
	ListOverdueIDs(ctx context.Context, now time.Time) ([]int64, error)
}

type InvestmentRepository interface {
	Create(ctx context.Context, inv *domain.Investment) error
	GetByID(ctx context.Context, id int64) (*domain.Investment, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Investment, error)
	Update(ctx context.Context, inv *domain.Investment) error
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Investment, error)
	// ListMaturedIDs returns active investments whose maturity date is at or before now.
	ListMaturedIDs(ctx context.Context, now time.Time) ([]int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int64, limit, offset int) ([]domain.Notification, error)
	ListUndelivered(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	MarkAsRead(ctx context.Context, id, userID int64) error
}

// Repositories groups every repository bound to the same connection or transaction.
type Repositories struct {
	AccountTypes  AccountTypeRepository
	Owners        OwnerRepository
	Accounts      AccountRepository
	Transactions  TransactionRepository
	Alerts        FraudAlertRepository
	Loans         LoanRepository
	Investments   InvestmentRepository
	Notifications NotificationRepository
}

// Store is durable atomic storage. Every write made through the Repositories
// passed to fn commits together or not at all.
type Store interface {
	Repos() *Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error
}
