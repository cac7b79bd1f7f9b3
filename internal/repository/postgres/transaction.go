package postgres

import (
	"context"
	"database/sql"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/logger"
	"chronobank/internal/repository"
)

type transactionRepository struct {
	db querier
}

func NewTransactionRepository(db querier) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, type, source_account_id, destination_account_id, amount, status, reference_code,
	description, origin_transaction_id, idempotency_key, created_at, updated_at`

func scanTransaction(row interface{ Scan(dest ...any) error }) (*domain.Transaction, error) {
	var t domain.Transaction
	var src, dst, origin sql.NullInt64
	var key sql.NullString
	err := row.Scan(&t.ID, &t.Type, &src, &dst, &t.Amount, &t.Status, &t.ReferenceCode,
		&t.Description, &origin, &key, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.SourceAccountID = int64Ptr(src)
	t.DestinationAccountID = int64Ptr(dst)
	t.OriginTransactionID = int64Ptr(origin)
	if key.Valid {
		k := key.String
		t.IdempotencyKey = &k
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (type, source_account_id, destination_account_id, amount, status, reference_code,
	          description, origin_transaction_id, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	var key sql.NullString
	if t.IdempotencyKey != nil {
		key = sql.NullString{String: *t.IdempotencyKey, Valid: true}
	}
	logger.DatabaseCall("INSERT", "transactions", "type", t.Type, "reference", t.ReferenceCode)
	err := r.db.QueryRowContext(ctx, query, t.Type, nullInt64(t.SourceAccountID), nullInt64(t.DestinationAccountID),
		t.Amount, t.Status, t.ReferenceCode, t.Description, nullInt64(t.OriginTransactionID), key,
		t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	logger.DatabaseResult("INSERT", 1, err, "transactionID", t.ID)
	return mapError(err)
}

func (r *transactionRepository) getOne(ctx context.Context, query string, arg any) (*domain.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *transactionRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *transactionRepository) GetByReference(ctx context.Context, code string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference_code = $1`, code)
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key)
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id int64, status domain.TransactionStatus, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3`, status, at, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *transactionRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE source_account_id = $1 OR destination_account_id = $1
	          ORDER BY id DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *transactionRepository) ListByOrigin(ctx context.Context, originID int64) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE origin_transaction_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, originID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *transactionRepository) CountOutgoingSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM transactions WHERE source_account_id = $1 AND created_at >= $2`,
		accountID, since).Scan(&n)
	return n, err
}

func (r *transactionRepository) CountIncomingSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM transactions WHERE destination_account_id = $1 AND created_at >= $2`,
		accountID, since).Scan(&n)
	return n, err
}
