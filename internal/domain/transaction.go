package domain

import "time"

type TransactionType string

const (
	TransactionTypeDeposit          TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal       TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer         TransactionType = "TRANSFER"
	TransactionTypeFee              TransactionType = "FEE"
	TransactionTypeLoanDisbursement TransactionType = "LOAN_DISBURSEMENT"
	TransactionTypeLoanPayment      TransactionType = "LOAN_PAYMENT"
	TransactionTypeInvestment       TransactionType = "INVESTMENT"
	TransactionTypeInvestmentReturn TransactionType = "INVESTMENT_RETURN"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypeFee, TransactionTypeLoanDisbursement, TransactionTypeLoanPayment,
		TransactionTypeInvestment, TransactionTypeInvestmentReturn:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusReversed  TransactionStatus = "REVERSED"
)

type Transaction struct {
	ID                   int64             `json:"id"`
	Type                 TransactionType   `json:"type"`
	SourceAccountID      *int64            `json:"source_account_id,omitempty"`
	DestinationAccountID *int64            `json:"destination_account_id,omitempty"`
	Amount               int64             `json:"amount"`
	Status               TransactionStatus `json:"status"`
	ReferenceCode        string            `json:"reference_code"`
	Description          string            `json:"description"`
	OriginTransactionID  *int64            `json:"origin_transaction_id,omitempty"`
	IdempotencyKey       *string           `json:"idempotency_key,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Descriptions used for records created by the engine itself.
const (
	DescriptionFraudRejected = "Potentially fraudulent transaction"
)
