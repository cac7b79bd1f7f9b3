package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chronobank/internal/logger"
	"chronobank/internal/repository"

	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db    *sql.DB
	repos *repository.Repositories
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repos: newRepositories(db)}
}

func newRepositories(q querier) *repository.Repositories {
	return &repository.Repositories{
		AccountTypes:  NewAccountTypeRepository(q),
		Owners:        NewOwnerRepository(q),
		Accounts:      NewAccountRepository(q),
		Transactions:  NewTransactionRepository(q),
		Alerts:        NewFraudAlertRepository(q),
		Loans:         NewLoanRepository(q),
		Investments:   NewInvestmentRepository(q),
		Notifications: NewNotificationRepository(q),
	}
}

func (s *Store) Repos() *repository.Repositories {
	return s.repos
}

// WithTx runs fn inside one database transaction. Row locks taken with
// GetForUpdate are held until commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r *repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Open connects to PostgreSQL and applies the pool settings.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	logger.Info("Connecting to database...")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("Database connection established")
	return db, nil
}

const uniqueViolation = "23505"

// Constraint names from schema.sql.
const (
	constraintReference   = "transactions_reference_code_key"
	constraintIdempotency = "transactions_idempotency_key_key"
)

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		switch pqErr.Constraint {
		case constraintReference:
			return repository.ErrDuplicateReference
		case constraintIdempotency:
			return repository.ErrDuplicateIdempotencyKey
		}
	}
	return err
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
