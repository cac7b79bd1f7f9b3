package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusOverdrawn AccountStatus = "OVERDRAWN"
	AccountStatusFrozen    AccountStatus = "FROZEN"
)

// Well-known account type names.
const (
	AccountTypeChecking = "CheckingAccount"
	AccountTypeSavings  = "SavingsAccount"
	AccountTypeBusiness = "BusinessAccount"
)

type AccountType struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	MinBalance       int64           `json:"min_balance"`
	TransactionLimit int64           `json:"transaction_limit"` // 0 means unlimited
	InterestRate     decimal.Decimal `json:"interest_rate"`
}

// Account balances are integer seconds.
type Account struct {
	ID                   int64           `json:"id"`
	OwnerID              int64           `json:"owner_id"`
	AccountTypeID        int64           `json:"account_type_id"`
	AccountTypeName      string          `json:"account_type_name"`
	AccountNumber        string          `json:"account_number"`
	Balance              int64           `json:"balance"`
	Status               AccountStatus   `json:"status"`
	MinBalance           int64           `json:"min_balance"`
	TransactionLimit     int64           `json:"transaction_limit"`
	InterestRate         decimal.Decimal `json:"interest_rate"`
	LowBalanceNotifiedAt *time.Time      `json:"low_balance_notified_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// IsSavings reports whether the account earns the savings deposit bonus.
func (a *Account) IsSavings() bool {
	return a.AccountTypeName == AccountTypeSavings
}

// OwnerProfile is owned by the identity subsystem; the ledger only writes Reputation.
type OwnerProfile struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Reputation decimal.Decimal `json:"reputation"`
}

var (
	MaxReputation     = decimal.NewFromInt(100)
	MinReputation     = decimal.Zero
	ReputationReward  = decimal.RequireFromString("0.1")
	ReputationPenalty = decimal.RequireFromString("-0.5")
)

// ClampReputation keeps a reputation score inside [0, 100].
func ClampReputation(score decimal.Decimal) decimal.Decimal {
	if score.GreaterThan(MaxReputation) {
		return MaxReputation
	}
	if score.LessThan(MinReputation) {
		return MinReputation
	}
	return score
}
