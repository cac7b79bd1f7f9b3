package memory

import (
	"context"
	"errors"

	"chronobank/internal/domain"
	"chronobank/internal/repository"

	"github.com/shopspring/decimal"
)

// DefaultAccountTypes mirrors the account types seeded by the SQL migrations.
func DefaultAccountTypes() []domain.AccountType {
	return []domain.AccountType{
		{Name: domain.AccountTypeChecking, MinBalance: 3600, TransactionLimit: 36000, InterestRate: decimal.RequireFromString("0.01")},
		{Name: domain.AccountTypeSavings, MinBalance: 3600, TransactionLimit: 3000, InterestRate: decimal.RequireFromString("0.07")},
		{Name: domain.AccountTypeBusiness, MinBalance: 36000, TransactionLimit: 360000, InterestRate: decimal.RequireFromString("0.015")},
	}
}

// SeedAccountTypes inserts the default account types that are not present yet.
func SeedAccountTypes(ctx context.Context, store repository.Store) error {
	return store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		for _, t := range DefaultAccountTypes() {
			_, err := r.AccountTypes.GetByName(ctx, t.Name)
			if err == nil {
				continue
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			t := t
			if err := r.AccountTypes.Create(ctx, &t); err != nil {
				return err
			}
		}
		return nil
	})
}
