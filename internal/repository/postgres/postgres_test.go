package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, repository.ErrNotFound},
		{"duplicate reference", &pq.Error{Code: "23505", Constraint: "transactions_reference_code_key"}, repository.ErrDuplicateReference},
		{"duplicate idempotency key", &pq.Error{Code: "23505", Constraint: "transactions_idempotency_key_key"}, repository.ErrDuplicateIdempotencyKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}

	assert.NoError(t, mapError(nil))
	other := &pq.Error{Code: "23505", Constraint: "accounts_account_number_key"}
	assert.Same(t, other, mapError(other))
}

func TestTransactionRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	src := int64(7)

	t.Run("Success", func(t *testing.T) {
		tx := &domain.Transaction{
			Type:            domain.TransactionTypeWithdrawal,
			SourceAccountID: &src,
			Amount:          500,
			Status:          domain.TransactionStatusCompleted,
			ReferenceCode:   "TRX-1",
			CreatedAt:       at,
			UpdatedAt:       at,
		}
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(tx.Type, sqlmock.AnyArg(), sqlmock.AnyArg(), tx.Amount, tx.Status, tx.ReferenceCode,
				tx.Description, sqlmock.AnyArg(), sqlmock.AnyArg(), at, at).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

		require.NoError(t, repo.Create(ctx, tx))
		assert.Equal(t, int64(11), tx.ID)
	})

	t.Run("DuplicateReference", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_reference_code_key"})

		err := repo.Create(ctx, &domain.Transaction{ReferenceCode: "TRX-1", CreatedAt: at, UpdatedAt: at})
		assert.ErrorIs(t, err, repository.ErrDuplicateReference)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetByReference(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	cols := []string{"id", "type", "source_account_id", "destination_account_id", "amount", "status", "reference_code",
		"description", "origin_transaction_id", "idempotency_key", "created_at", "updated_at"}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE reference_code = \\$1").
			WithArgs("TRX-9").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(9, "TRANSFER", 1, 2, 300, "COMPLETED", "TRX-9", "rent", nil, "req-9", at, at))

		tx, err := repo.GetByReference(ctx, "TRX-9")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionTypeTransfer, tx.Type)
		require.NotNil(t, tx.SourceAccountID)
		assert.Equal(t, int64(1), *tx.SourceAccountID)
		assert.Nil(t, tx.OriginTransactionID)
		require.NotNil(t, tx.IdempotencyKey)
		assert.Equal(t, "req-9", *tx.IdempotencyKey)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE reference_code = \\$1").
			WithArgs("TRX-0").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByReference(ctx, "TRX-0")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListByOrigin(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTransactionRepository(db)
	cols := []string{"id", "type", "source_account_id", "destination_account_id", "amount", "status", "reference_code",
		"description", "origin_transaction_id", "idempotency_key", "created_at", "updated_at"}

	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE origin_transaction_id = \\$1 ORDER BY id").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(10, "FEE", 2, nil, 6, "COMPLETED", "TRX-10", "Tax on transaction TRX-9", 9, nil, at, at))

	txs, err := repo.ListByOrigin(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionTypeFee, txs[0].Type)
	require.NotNil(t, txs[0].OriginTransactionID)
	assert.Equal(t, int64(9), *txs[0].OriginTransactionID)
	assert.Nil(t, txs[0].DestinationAccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetForUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	cols := []string{"id", "owner_id", "account_type_id", "name", "account_number", "balance", "status",
		"min_balance", "transaction_limit", "interest_rate", "low_balance_notified_at", "created_at", "updated_at"}

	mock.ExpectQuery("SELECT (.+) FROM accounts a JOIN account_types t ON t.id = a.account_type_id\\s+WHERE a.id = \\$1 FOR UPDATE OF a").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, 1, 2, "Savings", "CB-ABC", 90000, "ACTIVE", 3600, 3000, "0.07", nil, at, at))

	a, err := repo.GetForUpdate(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), a.Balance)
	assert.Equal(t, domain.AccountStatusActive, a.Status)
	assert.Equal(t, int64(3000), a.TransactionLimit)
	assert.True(t, decimal.RequireFromString("0.07").Equal(a.InterestRate))
	assert.Nil(t, a.LowBalanceNotifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_UpdateMissingRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(10), domain.AccountStatusActive, sqlmock.AnyArg(), at, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Account{ID: 99, Balance: 10, Status: domain.AccountStatusActive, UpdatedAt: at})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions SET status").
			WithArgs(domain.TransactionStatusReversed, at, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			return r.Transactions.UpdateStatus(ctx, 5, domain.TransactionStatusReversed, at)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(context.Context, *repository.Repositories) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFails", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := store.WithTx(ctx, func(context.Context, *repository.Repositories) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorContains(t, err, "begin transaction")
	})
}
