package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AlertStatus string

const (
	AlertStatusOpen          AlertStatus = "OPEN"
	AlertStatusResolved      AlertStatus = "RESOLVED"
	AlertStatusFalsePositive AlertStatus = "FALSE_POSITIVE"
)

type FraudAlert struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
	RiskScore     decimal.Decimal `json:"risk_score"`
	Factors       []string        `json:"factors"`
	Status        AlertStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

func (a *FraudAlert) Description() string {
	return strings.Join(a.Factors, ", ")
}
