package postgres

import (
	"context"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/repository"
)

type loanRepository struct {
	db querier
}

func NewLoanRepository(db querier) repository.LoanRepository {
	return &loanRepository{db: db}
}

const loanColumns = `id, account_id, principal, interest_rate, market_adjustment, term_days, remaining_amount,
	status, strategy, created_at, due_date, updated_at`

func scanLoan(row interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var l domain.Loan
	err := row.Scan(&l.ID, &l.AccountID, &l.Principal, &l.InterestRate, &l.MarketAdjustment, &l.TermDays,
		&l.RemainingAmount, &l.Status, &l.Strategy, &l.CreatedAt, &l.DueDate, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loanRepository) Create(ctx context.Context, l *domain.Loan) error {
	query := `INSERT INTO loans (account_id, principal, interest_rate, market_adjustment, term_days, remaining_amount,
	          status, strategy, created_at, due_date, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, l.AccountID, l.Principal, l.InterestRate, l.MarketAdjustment, l.TermDays,
		l.RemainingAmount, l.Status, l.Strategy, l.CreatedAt, l.DueDate, l.UpdatedAt).Scan(&l.ID)
	return mapError(err)
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return l, nil
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return l, nil
}

func (r *loanRepository) Update(ctx context.Context, l *domain.Loan) error {
	query := `UPDATE loans SET remaining_amount = $1, status = $2, market_adjustment = $3, updated_at = $4 WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, l.RemainingAmount, l.Status, l.MarketAdjustment, l.UpdatedAt, l.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *loanRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

func (r *loanRepository) CountActiveByAccount(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM loans WHERE account_id = $1 AND status = $2`,
		accountID, domain.LoanStatusActive).Scan(&n)
	return n, err
}

func (r *loanRepository) ListOverdueIDs(ctx context.Context, now time.Time) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM loans WHERE status = $1 AND due_date < $2 ORDER BY id`,
		domain.LoanStatusActive, now)
}

func queryIDs(ctx context.Context, db querier, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
