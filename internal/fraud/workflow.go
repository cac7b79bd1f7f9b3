// Package fraud screens money movements with the risk scorer and runs the
// alert lifecycle for the ones it rejects.
package fraud

import (
	"context"
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
	"chronobank/internal/risk"
	"chronobank/internal/transaction"
)

// recentWindow is the trailing window the frequency factors count over.
const recentWindow = time.Hour

type Workflow struct {
	store          repository.Store
	locks          *lock.Keyed
	scorer         risk.Scorer
	now            domain.Clock
	secondsPerHour int64
	metrics        *metrics.Collector
	refAttempts    int
}

func NewWorkflow(store repository.Store, locks *lock.Keyed, scorer risk.Scorer, clock domain.Clock, secondsPerHour int64) *Workflow {
	return &Workflow{
		store:          store,
		locks:          locks,
		scorer:         scorer,
		now:            clock.OrSystem(),
		secondsPerHour: secondsPerHour,
		refAttempts:    transaction.DefaultReferenceAttempts,
	}
}

func (w *Workflow) WithMetrics(m *metrics.Collector) *Workflow {
	w.metrics = m
	return w
}

// Check scores a movement without recording anything. Either side may be nil.
func (w *Workflow) Check(ctx context.Context, src, dst *domain.Account, amount int64) (risk.Assessment, error) {
	repos := w.store.Repos()
	since := w.now().Add(-recentWindow)
	in := risk.Input{Amount: amount}

	if src != nil {
		p, err := w.party(ctx, repos, src, func() (int, error) {
			return repos.Transactions.CountOutgoingSince(ctx, src.ID, since)
		})
		if err != nil {
			return risk.Assessment{}, err
		}
		in.Source = p
	}
	if dst != nil {
		p, err := w.party(ctx, repos, dst, func() (int, error) {
			return repos.Transactions.CountIncomingSince(ctx, dst.ID, since)
		})
		if err != nil {
			return risk.Assessment{}, err
		}
		in.Destination = p
	}
	return w.scorer.Score(in), nil
}

func (w *Workflow) party(ctx context.Context, repos *repository.Repositories, a *domain.Account, recent func() (int, error)) (*risk.Party, error) {
	owner, err := repos.Owners.GetByID(ctx, a.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load owner %d: %w", a.OwnerID, err)
	}
	n, err := recent()
	if err != nil {
		return nil, fmt.Errorf("count recent transactions for account %d: %w", a.ID, err)
	}
	return &risk.Party{Balance: a.Balance, Reputation: owner.Reputation, RecentCount: n}, nil
}

// Screen scores the movement and, when it is unsafe and has a source account,
// records the rejected attempt, its alert and the owner notification together.
func (w *Workflow) Screen(ctx context.Context, s transaction.Screening) (transaction.Verdict, error) {
	a, err := w.Check(ctx, s.Source, s.Destination, s.Amount)
	if err != nil {
		return transaction.Verdict{}, err
	}
	v := transaction.Verdict{Rejected: !a.Safe, Score: a.ScoreFloat(), Factors: a.Factors}
	w.metrics.RecordRisk(v.Score, v.Rejected)
	if a.Safe {
		logger.Debug("Transaction screened", "type", s.Type, "amount", s.Amount, "score", a.Score)
		return v, nil
	}
	if s.Source == nil {
		logger.Warn("Transaction rejected by risk screen", "type", s.Type, "amount", s.Amount, "score", a.Score, "factors", a.Factors)
		return v, nil
	}

	rec, err := w.raise(ctx, s, a)
	if err != nil {
		return transaction.Verdict{}, err
	}
	v.Transaction = rec
	return v, nil
}

func (w *Workflow) raise(ctx context.Context, s transaction.Screening, a risk.Assessment) (*domain.Transaction, error) {
	src := s.Source
	m := transaction.Movement{
		Type:        s.Type,
		SourceID:    &src.ID,
		Amount:      s.Amount,
		Description: domain.DescriptionFraudRejected,
	}
	if s.Destination != nil {
		m.DestinationID = &s.Destination.ID
	}

	var rec *domain.Transaction
	var alert *domain.FraudAlert
	err := transaction.RetryOnDuplicateReference(w.refAttempts, func() error {
		return w.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			now := w.now()
			rec = transaction.NewRecord(m, domain.TransactionStatusFailed, now)
			rec.IdempotencyKey = s.IdempotencyKey
			if err := r.Transactions.Create(ctx, rec); err != nil {
				return err
			}

			alert = &domain.FraudAlert{
				AccountID:     src.ID,
				TransactionID: &rec.ID,
				RiskScore:     a.Score,
				Factors:       a.Factors,
				Status:        domain.AlertStatusOpen,
				CreatedAt:     now,
			}
			if err := r.Alerts.Create(ctx, alert); err != nil {
				return err
			}

			msg := fmt.Sprintf("A %s transaction from your account %s was flagged as potentially fraudulent (%s). Reference: %s",
				notify.Hours(s.Amount, w.secondsPerHour), src.AccountNumber, alert.Description(), rec.ReferenceCode)
			return notify.Post(ctx, r.Notifications, now, src.OwnerID, domain.TitleSuspicious, msg, map[string]string{
				"alert_id":       strconv.FormatInt(alert.ID, 10),
				"transaction_id": strconv.FormatInt(rec.ID, 10),
				"risk_score":     a.Score.String(),
			})
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Warn("Fraud alert raised", "alertID", alert.ID, "accountID", src.ID, "reference", rec.ReferenceCode,
		"score", a.Score, "factors", a.Factors)
	return rec, nil
}

// Resolve closes an Open alert. Confirmed fraud freezes the account.
func (w *Workflow) Resolve(ctx context.Context, alertID int64, isFraud bool) (domain.Result, error) {
	logger.EnterMethod("fraud.Resolve", "alertID", alertID, "isFraud", isFraud)

	alert, err := w.store.Repos().Alerts.GetByID(ctx, alertID)
	if err != nil {
		if err = ledger.NotFound(err, domain.ErrAlertNotFound); domain.IsBusiness(err) {
			return domain.Failure(err), nil
		}
		return domain.Result{}, err
	}

	release := w.locks.Acquire(lock.AlertKey(alertID), lock.AccountKey(alert.AccountID))
	defer release()

	err = w.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		current, err := r.Alerts.GetForUpdate(ctx, alertID)
		if err != nil {
			return ledger.NotFound(err, domain.ErrAlertNotFound)
		}
		if current.Status != domain.AlertStatusOpen {
			return domain.ErrAlertResolved
		}

		now := w.now()
		current.Status = domain.AlertStatusFalsePositive
		if isFraud {
			current.Status = domain.AlertStatusResolved
		}
		current.ResolvedAt = &now
		if err := r.Alerts.Update(ctx, current); err != nil {
			return err
		}
		if !isFraud {
			return nil
		}

		account, err := r.Accounts.GetForUpdate(ctx, current.AccountID)
		if err != nil {
			return ledger.NotFound(err, domain.ErrAccountNotFound)
		}
		return ledger.FreezeInTx(ctx, r, account, fmt.Sprintf("confirmed fraud on alert %d", alertID), now)
	})
	if err != nil {
		if domain.IsBusiness(err) {
			logger.ExitMethod("fraud.Resolve", "declined", err)
			return domain.Failure(err), nil
		}
		logger.ExitMethodWithError("fraud.Resolve", err)
		return domain.Result{}, err
	}

	msg := "Alert marked as false positive"
	if isFraud {
		msg = "Alert confirmed as fraud; account frozen"
	}
	logger.Info("Fraud alert resolved", "alertID", alertID, "isFraud", isFraud, "accountID", alert.AccountID)
	res := domain.Succeeded(msg)
	if alert.TransactionID != nil {
		res.TransactionID = *alert.TransactionID
	}
	return res, nil
}

func (w *Workflow) Get(ctx context.Context, alertID int64) (*domain.FraudAlert, error) {
	a, err := w.store.Repos().Alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, ledger.NotFound(err, domain.ErrAlertNotFound)
	}
	return a, nil
}

// ListOpen returns alerts still awaiting review, oldest first.
func (w *Workflow) ListOpen(ctx context.Context) ([]domain.FraudAlert, error) {
	return w.store.Repos().Alerts.ListByStatus(ctx, domain.AlertStatusOpen)
}
