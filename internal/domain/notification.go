package domain

import "time"

type Notification struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	IsRead      bool              `json:"is_read"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Notification titles emitted by the engine.
const (
	TitleTransactionCompleted = "Transaction Completed"
	TitleTransactionFailed    = "Transaction Failed"
	TitleLowBalance           = "Low Balance Alert"
	TitleSuspicious           = "Suspicious Transaction Alert"
	TitleAccountFrozen        = "Account Frozen"
	TitleLoanReminder         = "Loan Repayment Reminder"
	TitleInvestmentMatured    = "Investment Matured"
)
