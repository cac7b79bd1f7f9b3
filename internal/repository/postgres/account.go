package postgres

import (
	"context"
	"database/sql"

	"chronobank/internal/domain"
	"chronobank/internal/logger"
	"chronobank/internal/repository"

	"github.com/shopspring/decimal"
)

type accountTypeRepository struct {
	db querier
}

func NewAccountTypeRepository(db querier) repository.AccountTypeRepository {
	return &accountTypeRepository{db: db}
}

func (r *accountTypeRepository) Create(ctx context.Context, t *domain.AccountType) error {
	query := `INSERT INTO account_types (name, min_balance, transaction_limit, interest_rate)
	          VALUES ($1, $2, $3, $4) RETURNING id`
	return mapError(r.db.QueryRowContext(ctx, query, t.Name, t.MinBalance, t.TransactionLimit, t.InterestRate).Scan(&t.ID))
}

func (r *accountTypeRepository) GetByID(ctx context.Context, id int64) (*domain.AccountType, error) {
	query := `SELECT id, name, min_balance, transaction_limit, interest_rate FROM account_types WHERE id = $1`
	var t domain.AccountType
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.MinBalance, &t.TransactionLimit, &t.InterestRate)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *accountTypeRepository) GetByName(ctx context.Context, name string) (*domain.AccountType, error) {
	query := `SELECT id, name, min_balance, transaction_limit, interest_rate FROM account_types WHERE name = $1`
	var t domain.AccountType
	err := r.db.QueryRowContext(ctx, query, name).Scan(&t.ID, &t.Name, &t.MinBalance, &t.TransactionLimit, &t.InterestRate)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

type ownerRepository struct {
	db querier
}

func NewOwnerRepository(db querier) repository.OwnerRepository {
	return &ownerRepository{db: db}
}

func (r *ownerRepository) Create(ctx context.Context, owner *domain.OwnerProfile) error {
	query := `INSERT INTO owners (name, email, reputation) VALUES ($1, $2, $3) RETURNING id`
	return mapError(r.db.QueryRowContext(ctx, query, owner.Name, owner.Email, owner.Reputation).Scan(&owner.ID))
}

func (r *ownerRepository) GetByID(ctx context.Context, id int64) (*domain.OwnerProfile, error) {
	query := `SELECT id, name, email, reputation FROM owners WHERE id = $1`
	var o domain.OwnerProfile
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.Name, &o.Email, &o.Reputation); err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

// AdjustReputation applies the delta in a single statement so concurrent
// adjustments for one owner cannot lose updates.
func (r *ownerRepository) AdjustReputation(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE owners SET reputation = LEAST(100, GREATEST(0, reputation + $1))
	          WHERE id = $2 RETURNING reputation`
	logger.DatabaseCall("UPDATE", "owners", "ownerID", id, "delta", delta.String())
	var score decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, delta, id).Scan(&score)
	logger.DatabaseResult("UPDATE", 1, err, "ownerID", id)
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	return score, nil
}

type accountRepository struct {
	db querier
}

func NewAccountRepository(db querier) repository.AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `a.id, a.owner_id, a.account_type_id, t.name, a.account_number, a.balance, a.status,
	t.min_balance, t.transaction_limit, t.interest_rate, a.low_balance_notified_at, a.created_at, a.updated_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (*domain.Account, error) {
	var a domain.Account
	var notified sql.NullTime
	err := row.Scan(&a.ID, &a.OwnerID, &a.AccountTypeID, &a.AccountTypeName, &a.AccountNumber, &a.Balance, &a.Status,
		&a.MinBalance, &a.TransactionLimit, &a.InterestRate, &notified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.LowBalanceNotifiedAt = timePtr(notified)
	return &a, nil
}

func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	logger.EnterMethod("accountRepository.Create", "ownerID", a.OwnerID, "accountNumber", a.AccountNumber)
	query := `INSERT INTO accounts (owner_id, account_type_id, account_number, balance, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, a.OwnerID, a.AccountTypeID, a.AccountNumber, a.Balance, a.Status, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.Create", err, "ownerID", a.OwnerID)
		return mapError(err)
	}
	logger.ExitMethod("accountRepository.Create", "accountID", a.ID)
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a JOIN account_types t ON t.id = a.account_type_id WHERE a.id = $1`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *accountRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a JOIN account_types t ON t.id = a.account_type_id
	          WHERE a.id = $1 FOR UPDATE OF a`
	logger.DatabaseCall("SELECT FOR UPDATE", "accounts", "accountID", id)
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *accountRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a JOIN account_types t ON t.id = a.account_type_id
	          WHERE a.owner_id = $1 ORDER BY a.id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (r *accountRepository) Update(ctx context.Context, a *domain.Account) error {
	query := `UPDATE accounts SET balance = $1, status = $2, low_balance_notified_at = $3, updated_at = $4 WHERE id = $5`
	logger.DatabaseCall("UPDATE", "accounts", "accountID", a.ID, "status", a.Status)
	result, err := r.db.ExecContext(ctx, query, a.Balance, a.Status, nullTime(a.LowBalanceNotifiedAt), a.UpdatedAt, a.ID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "accountID", a.ID)
		return err
	}
	return expectOneRow(result)
}
