package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/repository"
	"chronobank/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func newAccount(t *testing.T, store *memory.Store, balance int64) *domain.Account {
	t.Helper()
	owner := &domain.OwnerProfile{Name: "o", Reputation: domain.MaxReputation}
	require.NoError(t, store.Repos().Owners.Create(context.Background(), owner))
	a := &domain.Account{OwnerID: owner.ID, AccountNumber: domain.NewAccountNumber(), Balance: balance, Status: domain.AccountStatusActive}
	require.NoError(t, store.Repos().Accounts.Create(context.Background(), a))
	return a
}

func record(ref string, key *string) *domain.Transaction {
	return &domain.Transaction{
		ReferenceCode:  ref,
		Type:           domain.TransactionTypeDeposit,
		Amount:         100,
		Status:         domain.TransactionStatusCompleted,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStore_WithTxRollsBackEverything(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	a := newAccount(t, store, 1000)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		acct, err := r.Accounts.GetForUpdate(ctx, a.ID)
		require.NoError(t, err)
		acct.Balance = 0
		require.NoError(t, r.Accounts.Update(ctx, acct))
		require.NoError(t, r.Transactions.Create(ctx, record("TRX-1", nil)))
		require.NoError(t, r.Notifications.Create(ctx, &domain.Notification{UserID: a.OwnerID, Title: "x", CreatedAt: now}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repos().Accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Balance)

	_, err = store.Repos().Transactions.GetByReference(ctx, "TRX-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	pending, err := store.Repos().Notifications.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The rolled back reference is free again.
	require.NoError(t, store.Repos().Transactions.Create(ctx, record("TRX-1", nil)))
}

func TestStore_WithTxRollsBackOnPanic(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	a := newAccount(t, store, 1000)

	assert.Panics(t, func() {
		_ = store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			acct, _ := r.Accounts.GetForUpdate(ctx, a.ID)
			acct.Balance = 1
			_ = r.Accounts.Update(ctx, acct)
			panic("boom")
		})
	})

	got, err := store.Repos().Accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Balance)
}

func TestStore_CommitAndCancelledContext(t *testing.T) {
	store := memory.NewStore()
	a := newAccount(t, store, 1000)

	err := store.WithTx(context.Background(), func(ctx context.Context, r *repository.Repositories) error {
		acct, err := r.Accounts.GetForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		acct.Balance = 1500
		return r.Accounts.Update(ctx, acct)
	})
	require.NoError(t, err)
	got, err := store.Repos().Accounts.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.Balance)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err = store.WithTx(ctx, func(context.Context, *repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTransactions_UniqueConstraints(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	key := "req-1"

	require.NoError(t, store.Repos().Transactions.Create(ctx, record("TRX-A", &key)))
	assert.ErrorIs(t, store.Repos().Transactions.Create(ctx, record("TRX-A", nil)), repository.ErrDuplicateReference)
	assert.ErrorIs(t, store.Repos().Transactions.Create(ctx, record("TRX-B", &key)), repository.ErrDuplicateIdempotencyKey)

	got, err := store.Repos().Transactions.GetByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "TRX-A", got.ReferenceCode)
}

func TestTransactions_ListByOrigin(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	origin := record("TRX-O", nil)
	require.NoError(t, store.Repos().Transactions.Create(ctx, origin))
	for _, ref := range []string{"TRX-D1", "TRX-D2"} {
		child := record(ref, nil)
		child.OriginTransactionID = &origin.ID
		require.NoError(t, store.Repos().Transactions.Create(ctx, child))
	}
	require.NoError(t, store.Repos().Transactions.Create(ctx, record("TRX-X", nil)))

	got, err := store.Repos().Transactions.ListByOrigin(ctx, origin.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TRX-D1", got[0].ReferenceCode)
	assert.Equal(t, "TRX-D2", got[1].ReferenceCode)

	none, err := store.Repos().Transactions.ListByOrigin(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSeedAccountTypes_IsIdempotent(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, memory.SeedAccountTypes(ctx, store))
	require.NoError(t, memory.SeedAccountTypes(ctx, store))

	for _, want := range memory.DefaultAccountTypes() {
		got, err := store.Repos().AccountTypes.GetByName(ctx, want.Name)
		require.NoError(t, err)
		assert.Equal(t, want.MinBalance, got.MinBalance)
		assert.Equal(t, want.TransactionLimit, got.TransactionLimit)
		assert.True(t, want.InterestRate.Equal(got.InterestRate))
	}
}
