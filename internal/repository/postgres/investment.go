package postgres

import (
	"context"
	"database/sql"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/repository"
)

type investmentRepository struct {
	db querier
}

func NewInvestmentRepository(db querier) repository.InvestmentRepository {
	return &investmentRepository{db: db}
}

const investmentColumns = `id, account_id, principal, interest_rate, term_days, status, created_at, maturity_date,
	paid_out_at, updated_at`

func scanInvestment(row interface{ Scan(dest ...any) error }) (*domain.Investment, error) {
	var i domain.Investment
	var paidOut sql.NullTime
	err := row.Scan(&i.ID, &i.AccountID, &i.Principal, &i.InterestRate, &i.TermDays, &i.Status, &i.CreatedAt,
		&i.MaturityDate, &paidOut, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.PaidOutAt = timePtr(paidOut)
	return &i, nil
}

func (r *investmentRepository) Create(ctx context.Context, i *domain.Investment) error {
	query := `INSERT INTO investments (account_id, principal, interest_rate, term_days, status, created_at, maturity_date, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, i.AccountID, i.Principal, i.InterestRate, i.TermDays, i.Status,
		i.CreatedAt, i.MaturityDate, i.UpdatedAt).Scan(&i.ID)
	return mapError(err)
}

func (r *investmentRepository) GetByID(ctx context.Context, id int64) (*domain.Investment, error) {
	i, err := scanInvestment(r.db.QueryRowContext(ctx, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return i, nil
}

func (r *investmentRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Investment, error) {
	i, err := scanInvestment(r.db.QueryRowContext(ctx, `SELECT `+investmentColumns+` FROM investments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return i, nil
}

func (r *investmentRepository) Update(ctx context.Context, i *domain.Investment) error {
	result, err := r.db.ExecContext(ctx, `UPDATE investments SET status = $1, paid_out_at = $2, updated_at = $3 WHERE id = $4`,
		i.Status, nullTime(i.PaidOutAt), i.UpdatedAt, i.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *investmentRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Investment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+investmentColumns+` FROM investments WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		i, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *investmentRepository) ListMaturedIDs(ctx context.Context, now time.Time) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM investments WHERE status = $1 AND maturity_date <= $2 ORDER BY id`,
		domain.InvestmentStatusActive, now)
}
