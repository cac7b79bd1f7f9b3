package loan_test

import (
	"context"
	"testing"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/loan"
	"chronobank/internal/testkit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(f *testkit.Fixture) *loan.Engine {
	return loan.NewEngine(f.Store, f.Locks, f.Watch(), decimal.RequireFromString("0.05"), decimal.RequireFromString("0.02"), f.Clock())
}

func TestEngine_ApplyDisbursesPrincipal(t *testing.T) {
	f := testkit.New(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)
	engine := newEngine(f)

	res, err := engine.Apply(ctx, acct.ID, 50000, 30, domain.StrategyFixed)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.NotZero(t, res.ResourceID)
	assert.Equal(t, int64(50000), res.Amount)

	assert.Equal(t, int64(70000), f.Reload(t, acct.ID).Balance)

	l, err := engine.Get(ctx, res.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, "0.05183674", l.InterestRate.String())
	assert.Equal(t, int64(52591), l.RemainingAmount)
	assert.Equal(t, domain.LoanStatusActive, l.Status)
	assert.True(t, testkit.Epoch.AddDate(0, 0, 30).Equal(l.DueDate))
	assert.True(t, l.MarketAdjustment.IsZero())

	tx, err := f.Store.Repos().Transactions.GetByID(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeLoanDisbursement, tx.Type)
	assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
	require.NotNil(t, tx.DestinationAccountID)
	assert.Equal(t, acct.ID, *tx.DestinationAccountID)

	assert.NotContains(t, f.Titles(t, owner.ID), domain.TitleLoanReminder)
}

func TestEngine_ApplyDynamicCarriesMarketAdjustment(t *testing.T) {
	f := testkit.New(t)
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)
	engine := newEngine(f)

	res, err := engine.Apply(context.Background(), acct.ID, 100000, 100, domain.StrategyDynamic)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	l, err := engine.Get(context.Background(), res.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, "0.02", l.MarketAdjustment.String())
	assert.Equal(t, loan.Dynamic{}.TotalRepayment(l), l.RemainingAmount)
}

func TestEngine_ApplyRules(t *testing.T) {
	f := testkit.New(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)
	overdrawn := f.Account(t, owner.ID, domain.AccountTypeChecking, 100)
	engine := newEngine(f)

	for i := 0; i < domain.MaxActiveLoans; i++ {
		res, err := engine.Apply(ctx, acct.ID, 1000, 30, domain.StrategyFixed)
		require.NoError(t, err)
		require.True(t, res.Success, res.Message)
	}

	tests := []struct {
		name      string
		accountID int64
		principal int64
		term      int
		strategy  domain.RepaymentStrategy
		kind      domain.ErrorKind
	}{
		{"too many loans", acct.ID, 1000, 30, domain.StrategyFixed, domain.KindAccountState},
		{"account not active", overdrawn.ID, 1000, 30, domain.StrategyFixed, domain.KindAccountState},
		{"missing account", 9999, 1000, 30, domain.StrategyFixed, domain.KindNotFound},
		{"zero principal", acct.ID, 0, 30, domain.StrategyFixed, domain.KindValidation},
		{"zero term", acct.ID, 1000, 0, domain.StrategyFixed, domain.KindValidation},
		{"unknown strategy", acct.ID, 1000, 30, "BALLOON", domain.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Apply(ctx, tt.accountID, tt.principal, tt.term, tt.strategy)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.kind, res.ErrorKind)
		})
	}

	loans, err := engine.ListByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, loans, domain.MaxActiveLoans)
	assert.Equal(t, int64(23000), f.Reload(t, acct.ID).Balance)
}

func TestEngine_ShortLoanGetsReminder(t *testing.T) {
	f := testkit.New(t)
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)

	res, err := newEngine(f).Apply(context.Background(), acct.ID, 1000, 5, domain.StrategyFixed)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Contains(t, f.Titles(t, owner.ID), domain.TitleLoanReminder)
}

func TestEngine_MakePaymentUntilPaid(t *testing.T) {
	f := testkit.New(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeBusiness, 200000)
	engine := newEngine(f)

	applied, err := engine.Apply(ctx, acct.ID, 50000, 30, domain.StrategyFixed)
	require.NoError(t, err)
	require.True(t, applied.Success, applied.Message)
	loanID := applied.ResourceID

	res, err := engine.MakePayment(ctx, loanID, 2591)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(2591), res.Amount)

	l, err := engine.Get(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), l.RemainingAmount)

	res, err = engine.MakePayment(ctx, loanID, 60000)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(50000), res.Amount, "only the outstanding amount is charged")

	l, err = engine.Get(ctx, loanID)
	require.NoError(t, err)
	assert.Zero(t, l.RemainingAmount)
	assert.Equal(t, domain.LoanStatusPaid, l.Status)
	assert.Equal(t, int64(200000+50000-52591), f.Reload(t, acct.ID).Balance)

	res, err = engine.MakePayment(ctx, loanID, 10)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindConflict, res.ErrorKind)

	tx, err := f.Store.Repos().Transactions.GetByID(ctx, applied.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeLoanDisbursement, tx.Type)
}

func TestEngine_MakePaymentDeclined(t *testing.T) {
	f := testkit.New(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)
	engine := newEngine(f)

	applied, err := engine.Apply(ctx, acct.ID, 50000, 30, domain.StrategyFixed)
	require.NoError(t, err)
	require.True(t, applied.Success)

	// The borrower spends part of the proceeds elsewhere.
	spent := f.Reload(t, acct.ID)
	spent.Balance = 50000
	require.NoError(t, f.Store.Repos().Accounts.Update(ctx, spent))

	res, err := engine.MakePayment(ctx, applied.ResourceID, 52591)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, domain.KindInsufficientBalance, res.ErrorKind)

	l, err := engine.Get(ctx, applied.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, int64(52591), l.RemainingAmount)
	assert.Equal(t, int64(50000), f.Reload(t, acct.ID).Balance)

	res, err = engine.MakePayment(ctx, 12345, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotFound, res.ErrorKind)

	res, err = engine.MakePayment(ctx, applied.ResourceID, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.KindValidation, res.ErrorKind)
}

func TestEngine_ScheduleUsesStoredStrategy(t *testing.T) {
	f := testkit.New(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)
	engine := newEngine(f)

	res, err := engine.Apply(ctx, acct.ID, 100000, 100, domain.StrategyEarly)
	require.NoError(t, err)
	require.True(t, res.Success)

	schedule, err := engine.Schedule(ctx, res.ResourceID)
	require.NoError(t, err)
	require.Len(t, schedule, 4)
	assert.Less(t, schedule[0].Amount, schedule[3].Amount)

	_, err = engine.Schedule(ctx, 555)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestEngine_MarketAdjustment(t *testing.T) {
	f := testkit.New(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeBusiness, 200000)
	engine := loan.NewEngine(f.Store, f.Locks, f.Watch(), decimal.RequireFromString("0.05"), decimal.Zero, f.Clock())

	fixed, err := engine.Apply(ctx, acct.ID, 10000, 100, domain.StrategyFixed)
	require.NoError(t, err)
	res, err := engine.ApplyMarketAdjustment(ctx, fixed.ResourceID, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, domain.KindConflict, res.ErrorKind)

	dyn, err := engine.Apply(ctx, acct.ID, 100000, 100, domain.StrategyDynamic)
	require.NoError(t, err)
	require.True(t, dyn.Success)
	before, err := engine.Get(ctx, dyn.ResourceID)
	require.NoError(t, err)

	paid, err := engine.MakePayment(ctx, dyn.ResourceID, 1000)
	require.NoError(t, err)
	require.True(t, paid.Success, paid.Message)

	res, err = engine.ApplyMarketAdjustment(ctx, dyn.ResourceID, decimal.RequireFromString("0.03"))
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	after, err := engine.Get(ctx, dyn.ResourceID)
	require.NoError(t, err)
	// 3% of the principal more, minus the 1050 credited for the early payment.
	assert.Equal(t, before.RemainingAmount+3000-1050, after.RemainingAmount)
	assert.Equal(t, after.RemainingAmount, res.Amount)
}

func TestEngine_SweepOverdue(t *testing.T) {
	f := testkit.New(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)
	engine := newEngine(f)

	short, err := engine.Apply(ctx, acct.ID, 1000, 10, domain.StrategyFixed)
	require.NoError(t, err)
	long, err := engine.Apply(ctx, acct.ID, 1000, 60, domain.StrategyFixed)
	require.NoError(t, err)

	n, err := engine.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.Advance(11 * 24 * time.Hour)
	n, err = engine.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	l, err := engine.Get(ctx, short.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusDefaulted, l.Status)
	assert.Equal(t, int64(21000+1000), f.Reload(t, acct.ID).Balance, "defaulting has no balance effect")

	l, err = engine.Get(ctx, long.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, l.Status)

	n, err = engine.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
