package service_test

import (
	"context"
	"testing"
	"time"

	"chronobank/internal/config"
	"chronobank/internal/domain"
	"chronobank/internal/metrics"
	"chronobank/internal/service"
	"chronobank/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*service.BankService, *testkit.Fixture) {
	t.Helper()
	cfg, err := config.Parse([]byte("database:\n  type: memory\n"))
	require.NoError(t, err)
	f := testkit.New(t)
	return service.NewBankService(f.Store, cfg, metrics.NewCollector(), f.Clock()), f
}

func TestBankService_OnboardAndDeposit(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	res, err := svc.RegisterOwner(ctx, "  ", "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindValidation, res.ErrorKind)

	owner, err := svc.RegisterOwner(ctx, "Ada", "ada@example.com")
	require.NoError(t, err)
	require.True(t, owner.Success)
	assert.Equal(t, "100", f.Reputation(t, owner.ResourceID).String())

	res, err = svc.OpenAccount(ctx, owner.ResourceID, "GoldAccount")
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotFound, res.ErrorKind)

	opened, err := svc.OpenAccount(ctx, owner.ResourceID, domain.AccountTypeChecking)
	require.NoError(t, err)
	require.True(t, opened.Success, opened.Message)

	res, err = svc.Deposit(ctx, opened.ResourceID, 5000, "", "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.RiskScore)
	assert.InDelta(t, 0.1, *res.RiskScore, 1e-9)

	// 5% bonus on checking deposits.
	assert.Equal(t, int64(5250), f.Reload(t, opened.ResourceID).Balance)
	history, err := svc.Transactions().History(ctx, opened.ResourceID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestBankService_TransferPaysTax(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	a := f.Account(t, owner.ID, domain.AccountTypeChecking, 30000)
	b := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)

	res, err := svc.Transfer(ctx, a.ID, b.ID, 5000, "rent", "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	assert.Equal(t, int64(25000), f.Reload(t, a.ID).Balance)
	assert.Equal(t, int64(24900), f.Reload(t, b.ID).Balance)

	undo, err := svc.Undo(ctx, res.TransactionID)
	require.NoError(t, err)
	require.True(t, undo.Success, undo.Message)
	assert.Contains(t, undo.Message, "1 derived")
	assert.Equal(t, int64(30000), f.Reload(t, a.ID).Balance)
	assert.Equal(t, int64(20000), f.Reload(t, b.ID).Balance, "tax reversed with the transfer")

	derived, err := f.Store.Repos().Transactions.ListByOrigin(ctx, res.TransactionID)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, domain.TransactionTypeFee, derived[0].Type)
	assert.Equal(t, domain.TransactionStatusReversed, derived[0].Status)
}

func TestBankService_UndoDepositReversesBonus(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)

	res, err := svc.Deposit(ctx, acct.ID, 4000, "", "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(24200), f.Reload(t, acct.ID).Balance)

	undo, err := svc.Undo(ctx, res.TransactionID)
	require.NoError(t, err)
	require.True(t, undo.Success, undo.Message)
	assert.Equal(t, int64(20000), f.Reload(t, acct.ID).Balance)

	derived, err := f.Store.Repos().Transactions.ListByOrigin(ctx, res.TransactionID)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, int64(200), derived[0].Amount)
	assert.Equal(t, domain.TransactionStatusReversed, derived[0].Status)
}

func TestBankService_UndoFailsWhenBonusWasSpent(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 0)

	res, err := svc.Deposit(ctx, acct.ID, 4000, "", "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	spent, err := svc.Withdraw(ctx, acct.ID, 4100, "", "")
	require.NoError(t, err)
	require.True(t, spent.Success, spent.Message)
	require.Equal(t, int64(100), f.Reload(t, acct.ID).Balance)

	undo, err := svc.Undo(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.False(t, undo.Success)
	assert.Equal(t, domain.KindInsufficientBalance, undo.ErrorKind)
	assert.Equal(t, int64(100), f.Reload(t, acct.ID).Balance)

	origin, err := svc.Transactions().Get(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, origin.Status)
	derived, err := f.Store.Repos().Transactions.ListByOrigin(ctx, res.TransactionID)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, domain.TransactionStatusCompleted, derived[0].Status)
}

func TestBankService_SavingsTransactionLimit(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	savings := f.Account(t, owner.ID, domain.AccountTypeSavings, 10000)
	checking := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)

	res, err := svc.Deposit(ctx, savings.ID, 3001, "", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindValidation, res.ErrorKind)
	assert.Equal(t, domain.ErrTransactionLimit.Message, res.Message)

	res, err = svc.Withdraw(ctx, savings.ID, 3500, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindValidation, res.ErrorKind)
	assert.Equal(t, int64(10000), f.Reload(t, savings.ID).Balance)

	res, err = svc.Deposit(ctx, savings.ID, 3000, "", "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	// 10% savings bonus is not capped by the limit.
	assert.Equal(t, int64(13300), f.Reload(t, savings.ID).Balance)

	// Only the initiating account's cap applies to a transfer.
	res, err = svc.Transfer(ctx, checking.ID, savings.ID, 5000, "", "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
}

func TestBankService_Notifications(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	other := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)

	res, err := svc.FreezeAccount(ctx, acct.ID, "lost card")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	list, err := svc.Notifications(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.TitleAccountFrozen, list[0].Title)
	assert.False(t, list[0].IsRead)

	res, err = svc.MarkNotificationRead(ctx, list[0].ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotFound, res.ErrorKind)

	res, err = svc.MarkNotificationRead(ctx, list[0].ID, owner.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, list[0].ID, res.ResourceID)

	list, err = svc.Notifications(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	assert.True(t, list[0].IsRead)
}

func TestBankService_FraudToFreezeToUnfreeze(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 85)
	src := f.Account(t, owner.ID, domain.AccountTypeChecking, 20000)
	dst := f.Account(t, f.Owner(t, 100).ID, domain.AccountTypeChecking, 20000)

	res, err := svc.Transfer(ctx, src.ID, dst.ID, 15000, "", "")
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, domain.KindFraudRejection, res.ErrorKind)
	require.NotNil(t, res.RiskScore)
	assert.GreaterOrEqual(t, *res.RiskScore, 0.7)
	assert.NotZero(t, res.TransactionID)
	assert.Equal(t, int64(20000), f.Reload(t, src.ID).Balance)

	alerts, err := svc.Fraud().ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	resolved, err := svc.ResolveAlert(ctx, alerts[0].ID, true)
	require.NoError(t, err)
	require.True(t, resolved.Success, resolved.Message)
	assert.Equal(t, domain.AccountStatusFrozen, f.Reload(t, src.ID).Status)
	assert.Contains(t, f.Titles(t, owner.ID), domain.TitleAccountFrozen)

	res, err = svc.Withdraw(ctx, src.ID, 100, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindAccountState, res.ErrorKind)

	res, err = svc.UnfreezeAccount(ctx, src.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, domain.AccountStatusActive, f.Reload(t, src.ID).Status)

	res, err = svc.UnfreezeAccount(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindAccountState, res.ErrorKind)
}

func TestBankService_AdministrativeFreeze(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeChecking, 1000)

	res, err := svc.FreezeAccount(ctx, acct.ID, "court order")
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = svc.UnfreezeAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, domain.AccountStatusOverdrawn, f.Reload(t, acct.ID).Status, "re-evaluated against the minimum balance")

	res, err = svc.FreezeAccount(ctx, 9999, "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotFound, res.ErrorKind)
}

func TestBankService_LoansAndInvestments(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	owner := f.Owner(t, 100)
	acct := f.Account(t, owner.ID, domain.AccountTypeSavings, 100000)

	loanRes, err := svc.ApplyLoan(ctx, acct.ID, 50000, 30, domain.StrategyFixed)
	require.NoError(t, err)
	require.True(t, loanRes.Success, loanRes.Message)

	payRes, err := svc.MakeLoanPayment(ctx, loanRes.ResourceID, 10000)
	require.NoError(t, err)
	require.True(t, payRes.Success, payRes.Message)

	invRes, err := svc.CreateInvestment(ctx, acct.ID, 36000, 60)
	require.NoError(t, err)
	require.True(t, invRes.Success, invRes.Message)
	assert.Equal(t, int64(100000+50000-10000-36000), f.Reload(t, acct.ID).Balance)

	f.Advance(24 * time.Hour)
	out, err := svc.WithdrawInvestment(ctx, invRes.ResourceID)
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)
	assert.Equal(t, int64(36000), out.Amount)

	again, err := svc.WithdrawInvestment(ctx, invRes.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindConflict, again.ErrorKind)
}
