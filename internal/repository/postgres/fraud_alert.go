package postgres

import (
	"context"
	"database/sql"

	"chronobank/internal/domain"
	"chronobank/internal/repository"

	"github.com/lib/pq"
)

type fraudAlertRepository struct {
	db querier
}

func NewFraudAlertRepository(db querier) repository.FraudAlertRepository {
	return &fraudAlertRepository{db: db}
}

const alertColumns = `id, account_id, transaction_id, risk_score, factors, status, created_at, resolved_at`

func scanAlert(row interface{ Scan(dest ...any) error }) (*domain.FraudAlert, error) {
	var a domain.FraudAlert
	var txID sql.NullInt64
	var resolved sql.NullTime
	err := row.Scan(&a.ID, &a.AccountID, &txID, &a.RiskScore, pq.Array(&a.Factors), &a.Status, &a.CreatedAt, &resolved)
	if err != nil {
		return nil, err
	}
	a.TransactionID = int64Ptr(txID)
	a.ResolvedAt = timePtr(resolved)
	return &a, nil
}

func (r *fraudAlertRepository) Create(ctx context.Context, a *domain.FraudAlert) error {
	query := `INSERT INTO fraud_alerts (account_id, transaction_id, risk_score, factors, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, a.AccountID, nullInt64(a.TransactionID), a.RiskScore,
		pq.Array(a.Factors), a.Status, a.CreatedAt).Scan(&a.ID)
	return mapError(err)
}

func (r *fraudAlertRepository) GetByID(ctx context.Context, id int64) (*domain.FraudAlert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM fraud_alerts WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *fraudAlertRepository) GetForUpdate(ctx context.Context, id int64) (*domain.FraudAlert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM fraud_alerts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *fraudAlertRepository) Update(ctx context.Context, a *domain.FraudAlert) error {
	result, err := r.db.ExecContext(ctx, `UPDATE fraud_alerts SET status = $1, resolved_at = $2 WHERE id = $3`,
		a.Status, nullTime(a.ResolvedAt), a.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *fraudAlertRepository) ListByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.FraudAlert, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM fraud_alerts WHERE status = $1 ORDER BY id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.FraudAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}
