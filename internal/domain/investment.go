package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "ACTIVE"
	InvestmentStatusMatured   InvestmentStatus = "MATURED"
	InvestmentStatusWithdrawn InvestmentStatus = "WITHDRAWN"
)

type Investment struct {
	ID           int64            `json:"id"`
	AccountID    int64            `json:"account_id"`
	Principal    int64            `json:"principal"`
	InterestRate decimal.Decimal  `json:"interest_rate"`
	TermDays     int              `json:"term_days"`
	Status       InvestmentStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	MaturityDate time.Time        `json:"maturity_date"`
	PaidOutAt    *time.Time       `json:"paid_out_at,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Withdrawable reports whether the one-shot payout is still available.
func (i *Investment) Withdrawable() bool {
	if i.PaidOutAt != nil {
		return false
	}
	return i.Status == InvestmentStatusActive || i.Status == InvestmentStatusMatured
}
