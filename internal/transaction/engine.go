package transaction

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

	"github.com/shopspring/decimal"
)

// Outcome labels recorded per executed command.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
	outcomeReplayed  = "replayed"
	outcomeError     = "error"
)

// Options carries per-request settings for Execute.
type Options struct {
	// IdempotencyKey deduplicates resubmitted requests. Empty disables it.
	IdempotencyKey string
}

// Engine runs commands. Each Execute locks the touched accounts in id order,
// screens the movement, then commits the record and balance changes together.
type Engine struct {
	store       repository.Store
	locks       *lock.Keyed
	watch       ledger.LowBalanceWatch
	screener    Screener
	post        PostProcessor
	metrics     *metrics.Collector
	now         domain.Clock
	refAttempts int
}

func NewEngine(store repository.Store, locks *lock.Keyed, watch ledger.LowBalanceWatch, clock domain.Clock) *Engine {
	return &Engine{
		store:       store,
		locks:       locks,
		watch:       watch,
		now:         clock.OrSystem(),
		refAttempts: DefaultReferenceAttempts,
	}
}

func (e *Engine) WithScreener(s Screener) *Engine {
	e.screener = s
	return e
}

func (e *Engine) WithPostProcessor(p PostProcessor) *Engine {
	e.post = p
	return e
}

func (e *Engine) WithMetrics(m *metrics.Collector) *Engine {
	e.metrics = m
	return e
}

func (e *Engine) WithReferenceAttempts(n int) *Engine {
	if n > 0 {
		e.refAttempts = n
	}
	return e
}

// attempt is what happened under the account locks.
type attempt struct {
	record    *domain.Transaction
	verdict   *Verdict
	initiator *domain.Account
}

// Execute runs cmd. Declined movements come back as a failed Result with a nil
// error; the error return is reserved for infrastructure failures.
func (e *Engine) Execute(ctx context.Context, cmd Command, opts Options) (domain.Result, error) {
	started := time.Now()
	m := cmd.Movement()
	kind := string(m.Type)
	logger.EnterMethod("transaction.Execute", "type", m.Type, "amount", m.Amount)

	if err := m.validate(); err != nil {
		e.metrics.RecordTransaction(kind, outcomeFailed, time.Since(started))
		logger.ExitMethod("transaction.Execute", "declined", err)
		return domain.Failure(err), nil
	}

	var key *string
	if opts.IdempotencyKey != "" {
		k := opts.IdempotencyKey
		key = &k
		res, found, err := e.replay(ctx, k)
		if err != nil || found {
			return res, err
		}
	}

	at, err := e.run(ctx, cmd, m, key)

	var res domain.Result
	outcome := outcomeCompleted
	switch {
	case err == nil:
		res = domain.Succeeded(completedMessage(m.Type)).WithTransaction(at.record)
		e.adjustReputation(ctx, at.initiator.OwnerID, domain.ReputationReward)
		if e.post != nil {
			e.post.Run(ctx, at.record)
		}
	case key != nil && errors.Is(err, repository.ErrDuplicateIdempotencyKey):
		// Lost a race with a concurrent submission of the same request.
		res, _, err = e.replay(ctx, *key)
		e.metrics.RecordTransaction(kind, outcomeReplayed, time.Since(started))
		return res, err
	case errors.Is(err, domain.ErrFraudRejected):
		outcome = outcomeRejected
		res = domain.Failure(err).WithTransaction(at.record)
	case domain.IsBusiness(err):
		outcome = outcomeFailed
		res = domain.Failure(err)
		if at.initiator != nil {
			e.adjustReputation(ctx, at.initiator.OwnerID, domain.ReputationPenalty)
			e.notifyFailure(ctx, at.initiator, m, err)
		}
	default:
		e.metrics.RecordTransaction(kind, outcomeError, time.Since(started))
		logger.Execution(kind, "", started, err)
		logger.ExitMethodWithError("transaction.Execute", err)
		return domain.Result{}, err
	}

	if at.verdict != nil {
		res = res.WithRisk(at.verdict.Score, at.verdict.Factors)
	}
	if res.Success {
		logger.Execution(kind, res.ReferenceCode, started, nil)
	} else {
		logger.Execution(kind, res.ReferenceCode, started, err)
	}
	e.metrics.RecordTransaction(kind, outcome, time.Since(started))
	logger.ExitMethod("transaction.Execute", "success", res.Success, "reference", res.ReferenceCode)
	return res, nil
}

func (e *Engine) run(ctx context.Context, cmd Command, m Movement, key *string) (attempt, error) {
	release := e.locks.Acquire(accountKeys(m)...)
	defer release()

	var at attempt
	src, dst, err := loadAccounts(ctx, e.store.Repos(), m, false)
	if err != nil {
		return at, err
	}
	at.initiator = initiator(src, dst)

	if e.screener != nil {
		v, err := e.screener.Screen(ctx, Screening{
			Type:           m.Type,
			Source:         src,
			Destination:    dst,
			Amount:         m.Amount,
			Description:    m.Description,
			IdempotencyKey: key,
		})
		if err != nil {
			return at, fmt.Errorf("screen transaction: %w", err)
		}
		at.verdict = &v
		if v.Rejected {
			at.record = v.Transaction
			return at, domain.ErrFraudRejected
		}
	}

	at.record, err = e.commit(ctx, cmd, m, key)
	return at, err
}

// commit is the atomic unit: Pending record, balance changes, Completed.
// A failure anywhere rolls the whole unit back, record included.
func (e *Engine) commit(ctx context.Context, cmd Command, m Movement, key *string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := RetryOnDuplicateReference(e.refAttempts, func() error {
		return e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			src, dst, err := loadAccounts(ctx, r, m, true)
			if err != nil {
				return err
			}
			if err := checkLimits(m, src, dst); err != nil {
				return err
			}

			now := e.now()
			rec := NewRecord(m, domain.TransactionStatusPending, now)
			rec.IdempotencyKey = key
			if err := r.Transactions.Create(ctx, rec); err != nil {
				return err
			}

			if err := cmd.Execute(src, dst, now); err != nil {
				return err
			}
			if err := e.saveAccounts(ctx, r, now, src, dst); err != nil {
				return err
			}

			if err := r.Transactions.UpdateStatus(ctx, rec.ID, domain.TransactionStatusCompleted, now); err != nil {
				return err
			}
			rec.Status = domain.TransactionStatusCompleted

			who := initiator(src, dst)
			msg := fmt.Sprintf("Your %s of %s (%s) has been completed.",
				describeType(m.Type), notify.Hours(m.Amount, e.watch.SecondsPerHour), rec.ReferenceCode)
			if err := notify.Post(ctx, r.Notifications, now, who.OwnerID, domain.TitleTransactionCompleted, msg, recordAttrs(rec)); err != nil {
				return err
			}
			out = rec
			return nil
		})
	})
	return out, err
}

// saveAccounts writes both sides back. The debited side goes through the
// low-balance watch; the credited side may only clear its alert stamp.
func (e *Engine) saveAccounts(ctx context.Context, r *repository.Repositories, now time.Time, debited, credited *domain.Account) error {
	if debited != nil {
		if err := e.watch.Apply(ctx, r.Notifications, debited, now); err != nil {
			return err
		}
		if err := r.Accounts.Update(ctx, debited); err != nil {
			return err
		}
	}
	if credited != nil {
		e.watch.Settle(credited)
		if err := r.Accounts.Update(ctx, credited); err != nil {
			return err
		}
	}
	return nil
}

// Undo reverses a Completed transaction together with every Completed record
// derived from it (taxes, bonuses) and marks them Reversed. Either all of them
// are reversed or none is.
func (e *Engine) Undo(ctx context.Context, transactionID int64) (domain.Result, error) {
	started := time.Now()
	logger.EnterMethod("transaction.Undo", "transactionID", transactionID)

	rec, err := e.store.Repos().Transactions.GetByID(ctx, transactionID)
	if err != nil {
		if err = ledger.NotFound(err, domain.ErrTransactionNotFound); domain.IsBusiness(err) {
			return domain.Failure(err), nil
		}
		return domain.Result{}, err
	}
	cmd, err := CommandFor(rec)
	if err != nil {
		return domain.Failure(err), nil
	}
	derived, err := e.store.Repos().Transactions.ListByOrigin(ctx, transactionID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("list derived transactions: %w", err)
	}

	keys := accountKeys(cmd.Movement())
	for i := range derived {
		keys = append(keys, recordKeys(&derived[i])...)
	}
	release := e.locks.Acquire(keys...)
	defer release()

	reversed := 0
	err = e.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		current, err := r.Transactions.GetForUpdate(ctx, transactionID)
		if err != nil {
			return ledger.NotFound(err, domain.ErrTransactionNotFound)
		}
		switch current.Status {
		case domain.TransactionStatusCompleted:
		case domain.TransactionStatusReversed:
			return domain.ErrAlreadyReversed
		default:
			return domain.ErrNotReversible
		}

		now := e.now()
		children, err := r.Transactions.ListByOrigin(ctx, transactionID)
		if err != nil {
			return err
		}
		// Newest first, so each step sees the balances its record left behind.
		for i := len(children) - 1; i >= 0; i-- {
			child := &children[i]
			if child.Status != domain.TransactionStatusCompleted {
				continue
			}
			if err := e.reverse(ctx, r, child, now); err != nil {
				return fmt.Errorf("reverse %s: %w", child.ReferenceCode, err)
			}
			reversed++
		}

		if err := e.reverse(ctx, r, current, now); err != nil {
			return err
		}
		rec = current
		return nil
	})

	logger.Execution("UNDO_"+string(rec.Type), rec.ReferenceCode, started, err)
	switch {
	case err == nil:
		e.metrics.RecordTransaction("UNDO", outcomeCompleted, time.Since(started))
		msg := "Transaction reversed"
		if reversed > 0 {
			msg = fmt.Sprintf("Transaction reversed with %d derived record(s)", reversed)
		}
		return domain.Succeeded(msg).WithTransaction(rec), nil
	case domain.IsBusiness(err):
		e.metrics.RecordTransaction("UNDO", outcomeFailed, time.Since(started))
		return domain.Failure(err).WithTransaction(rec), nil
	default:
		e.metrics.RecordTransaction("UNDO", outcomeError, time.Since(started))
		return domain.Result{}, err
	}
}

// reverse undoes one Completed record inside r and marks it Reversed.
func (e *Engine) reverse(ctx context.Context, r *repository.Repositories, rec *domain.Transaction, now time.Time) error {
	cmd, err := CommandFor(rec)
	if err != nil {
		return err
	}
	m := cmd.Movement()
	src, dst, err := loadAccounts(ctx, r, m, true)
	if err != nil {
		return err
	}
	if err := cmd.Undo(src, dst, now); err != nil {
		return err
	}
	if err := e.saveAccounts(ctx, r, now, dst, src); err != nil {
		return err
	}
	if err := r.Transactions.UpdateStatus(ctx, rec.ID, domain.TransactionStatusReversed, now); err != nil {
		return err
	}
	rec.Status = domain.TransactionStatusReversed
	rec.UpdatedAt = now
	return nil
}

func (e *Engine) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	tx, err := e.store.Repos().Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, ledger.NotFound(err, domain.ErrTransactionNotFound)
	}
	return tx, nil
}

func (e *Engine) GetByReference(ctx context.Context, code string) (*domain.Transaction, error) {
	tx, err := e.store.Repos().Transactions.GetByReference(ctx, code)
	if err != nil {
		return nil, ledger.NotFound(err, domain.ErrTransactionNotFound)
	}
	return tx, nil
}

// History lists the newest transactions touching an account.
func (e *Engine) History(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	if _, err := e.store.Repos().Accounts.GetByID(ctx, accountID); err != nil {
		return nil, ledger.NotFound(err, domain.ErrAccountNotFound)
	}
	return e.store.Repos().Transactions.ListByAccount(ctx, accountID, limit)
}

// replay answers a resubmitted request from its stored record.
func (e *Engine) replay(ctx context.Context, key string) (domain.Result, bool, error) {
	prior, err := e.store.Repos().Transactions.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Result{}, false, nil
	}
	if err != nil {
		return domain.Result{}, false, err
	}
	logger.Info("Replaying idempotent request", "reference", prior.ReferenceCode, "status", prior.Status)
	if prior.Status == domain.TransactionStatusCompleted {
		return domain.Succeeded(completedMessage(prior.Type)).WithTransaction(prior), true, nil
	}
	return domain.Failure(domain.ErrDuplicateRequest).WithTransaction(prior), true, nil
}

func (e *Engine) adjustReputation(ctx context.Context, ownerID int64, delta decimal.Decimal) {
	release := e.locks.Acquire(lock.OwnerKey(ownerID))
	defer release()

	score, err := e.store.Repos().Owners.AdjustReputation(ctx, ownerID, delta)
	if err != nil {
		logger.Warn("Failed to adjust reputation", "ownerID", ownerID, "delta", delta, "error", err)
		return
	}
	logger.Debug("Reputation adjusted", "ownerID", ownerID, "delta", delta, "score", score)
}

func (e *Engine) notifyFailure(ctx context.Context, a *domain.Account, m Movement, cause error) {
	msg := fmt.Sprintf("A %s of %s on your account %s failed: %s",
		describeType(m.Type), notify.Hours(m.Amount, e.watch.SecondsPerHour), a.AccountNumber, cause.Error())
	err := notify.Post(ctx, e.store.Repos().Notifications, e.now(), a.OwnerID, domain.TitleTransactionFailed, msg, map[string]string{
		"account_id": strconv.FormatInt(a.ID, 10),
		"reason":     string(domain.KindOf(cause)),
	})
	if err != nil {
		logger.Warn("Failed to record failure notification", "accountID", a.ID, "error", err)
	}
}

// loadAccounts reads both sides of m, with row locks when forUpdate is set.
// Rows are always read in ascending id order.
func loadAccounts(ctx context.Context, r *repository.Repositories, m Movement, forUpdate bool) (src, dst *domain.Account, err error) {
	loaded := make(map[int64]*domain.Account, 2)
	for _, id := range m.accountIDs() {
		var a *domain.Account
		if forUpdate {
			a, err = r.Accounts.GetForUpdate(ctx, id)
		} else {
			a, err = r.Accounts.GetByID(ctx, id)
		}
		if err != nil {
			return nil, nil, ledger.NotFound(err, domain.ErrAccountNotFound)
		}
		loaded[id] = a
	}
	if m.SourceID != nil {
		src = loaded[*m.SourceID]
	}
	if m.DestinationID != nil {
		dst = loaded[*m.DestinationID]
	}
	return src, dst, nil
}

// checkLimits applies the per-transaction cap of the account that initiates the movement.
func checkLimits(m Movement, src, dst *domain.Account) error {
	return ledger.CheckLimit(initiator(src, dst), m.Amount)
}

// initiator is the account whose owner asked for the movement.
func initiator(src, dst *domain.Account) *domain.Account {
	if src != nil {
		return src
	}
	return dst
}

// recordKeys locks whatever accounts a stored record touches.
func recordKeys(tx *domain.Transaction) []string {
	var keys []string
	for _, id := range []*int64{tx.SourceAccountID, tx.DestinationAccountID} {
		if id != nil {
			keys = append(keys, lock.AccountKey(*id))
		}
	}
	return keys
}

func accountKeys(m Movement) []string {
	ids := m.accountIDs()
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = lock.AccountKey(id)
	}
	return keys
}

func recordAttrs(tx *domain.Transaction) map[string]string {
	return map[string]string{
		"transaction_id": strconv.FormatInt(tx.ID, 10),
		"reference_code": tx.ReferenceCode,
		"type":           string(tx.Type),
	}
}

func describeType(t domain.TransactionType) string {
	switch t {
	case domain.TransactionTypeDeposit:
		return "deposit"
	case domain.TransactionTypeWithdrawal:
		return "withdrawal"
	case domain.TransactionTypeTransfer:
		return "transfer"
	case domain.TransactionTypeFee:
		return "fee"
	}
	return "transaction"
}

func completedMessage(t domain.TransactionType) string {
	switch t {
	case domain.TransactionTypeDeposit:
		return "Deposit successful"
	case domain.TransactionTypeWithdrawal:
		return "Withdrawal successful"
	case domain.TransactionTypeTransfer:
		return "Transfer successful"
	}
	return "Transaction successful"
}
