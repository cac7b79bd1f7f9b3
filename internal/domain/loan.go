package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "ACTIVE"
	LoanStatusPaid      LoanStatus = "PAID"
	LoanStatusDefaulted LoanStatus = "DEFAULTED"
)

type RepaymentStrategy string

const (
	StrategyFixed   RepaymentStrategy = "FIXED"
	StrategyDynamic RepaymentStrategy = "DYNAMIC"
	StrategyEarly   RepaymentStrategy = "EARLY"
)

type Loan struct {
	ID               int64             `json:"id"`
	AccountID        int64             `json:"account_id"`
	Principal        int64             `json:"principal"`
	InterestRate     decimal.Decimal   `json:"interest_rate"`
	MarketAdjustment decimal.Decimal   `json:"market_adjustment"`
	TermDays         int               `json:"term_days"`
	RemainingAmount  int64             `json:"remaining_amount"`
	Status           LoanStatus        `json:"status"`
	Strategy         RepaymentStrategy `json:"strategy"`
	CreatedAt        time.Time         `json:"created_at"`
	DueDate          time.Time         `json:"due_date"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Instalment is one entry of a repayment schedule.
type Instalment struct {
	DueDate     time.Time `json:"due_date"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description,omitempty"`
}

// MaxActiveLoans caps concurrently active loans per account.
const MaxActiveLoans = 3
