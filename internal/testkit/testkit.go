// Package testkit builds in-memory ledgers for package tests.
package testkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/ledger"
	"chronobank/internal/lock"
	"chronobank/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Epoch is the fixed starting time of every fixture clock.
var Epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type Fixture struct {
	Store *memory.Store
	Locks *lock.Keyed

	mu  sync.Mutex
	now time.Time
}

func New(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{Store: memory.NewStore(), Locks: lock.NewKeyed(), now: Epoch}
	require.NoError(t, memory.SeedAccountTypes(context.Background(), f.Store))
	return f
}

// Clock reads the fixture's pinned time.
func (f *Fixture) Clock() domain.Clock {
	return func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
}

func (f *Fixture) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Watch is a low-balance policy with the default thresholds.
func (f *Fixture) Watch() ledger.LowBalanceWatch {
	return ledger.LowBalanceWatch{Threshold: 10800, Cooldown: time.Hour, SecondsPerHour: 3600}
}

func (f *Fixture) Owner(t testing.TB, reputation int64) *domain.OwnerProfile {
	t.Helper()
	o := &domain.OwnerProfile{Name: "owner", Email: "owner@example.com", Reputation: decimal.NewFromInt(reputation)}
	require.NoError(t, f.Store.Repos().Owners.Create(context.Background(), o))
	return o
}

func (f *Fixture) AccountType(t testing.TB, name string) *domain.AccountType {
	t.Helper()
	at, err := f.Store.Repos().AccountTypes.GetByName(context.Background(), name)
	require.NoError(t, err)
	return at
}

// Account stores an account of the named type with the given balance. Its
// status follows the balance unless overridden.
func (f *Fixture) Account(t testing.TB, ownerID int64, typeName string, balance int64, status ...domain.AccountStatus) *domain.Account {
	t.Helper()
	at := f.AccountType(t, typeName)
	a := &domain.Account{
		OwnerID:          ownerID,
		AccountTypeID:    at.ID,
		AccountTypeName:  at.Name,
		AccountNumber:    domain.NewAccountNumber(),
		Balance:          balance,
		Status:           domain.AccountStatusActive,
		MinBalance:       at.MinBalance,
		TransactionLimit: at.TransactionLimit,
		InterestRate:     at.InterestRate,
		CreatedAt:        Epoch,
		UpdatedAt:        Epoch,
	}
	if balance < at.MinBalance {
		a.Status = domain.AccountStatusOverdrawn
	}
	if len(status) > 0 {
		a.Status = status[0]
	}
	require.NoError(t, f.Store.Repos().Accounts.Create(context.Background(), a))
	return a
}

func (f *Fixture) Reload(t testing.TB, accountID int64) *domain.Account {
	t.Helper()
	a, err := f.Store.Repos().Accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	return a
}

func (f *Fixture) Reputation(t testing.TB, ownerID int64) decimal.Decimal {
	t.Helper()
	o, err := f.Store.Repos().Owners.GetByID(context.Background(), ownerID)
	require.NoError(t, err)
	return o.Reputation
}

// Titles lists the titles of an owner's notifications, newest first.
func (f *Fixture) Titles(t testing.TB, userID int64) []string {
	t.Helper()
	notes, err := f.Store.Repos().Notifications.List(context.Background(), userID, 100, 0)
	require.NoError(t, err)
	titles := make([]string, 0, len(notes))
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	return titles
}
