package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable class of a declined business operation.
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION"
	KindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	KindAccountState        ErrorKind = "ACCOUNT_STATE"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindFraudRejection      ErrorKind = "FRAUD_REJECTION"
	KindConflict            ErrorKind = "CONFLICT"
)

// Error is a declined business operation. It never signals an infrastructure failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind and message, so wrapped copies of a
// sentinel compare equal to it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidAmount          = &Error{Kind: KindValidation, Message: "amount must be positive"}
	ErrUnknownTransactionType = &Error{Kind: KindValidation, Message: "unknown transaction type"}
	ErrSameAccount            = &Error{Kind: KindValidation, Message: "source and destination must differ"}
	ErrTransactionLimit       = &Error{Kind: KindValidation, Message: "amount exceeds account transaction limit"}
	ErrInvalidTerm            = &Error{Kind: KindValidation, Message: "term must be positive"}
	ErrUnknownStrategy        = &Error{Kind: KindValidation, Message: "unknown repayment strategy"}
	ErrOwnerNameRequired      = &Error{Kind: KindValidation, Message: "owner name is required"}

	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance"}

	ErrDepositNotAllowed     = &Error{Kind: KindAccountState, Message: "account cannot receive deposits in its current status"}
	ErrWithdrawNotAllowed    = &Error{Kind: KindAccountState, Message: "account cannot be debited in its current status"}
	ErrTransferOutNotAllowed = &Error{Kind: KindAccountState, Message: "account cannot send transfers in its current status"}
	ErrTransferInNotAllowed  = &Error{Kind: KindAccountState, Message: "destination account cannot receive transfers in its current status"}
	ErrAccountNotActive      = &Error{Kind: KindAccountState, Message: "account is not active"}
	ErrTooManyLoans          = &Error{Kind: KindAccountState, Message: "account already has the maximum number of active loans"}
	ErrNotFrozen             = &Error{Kind: KindAccountState, Message: "account is not frozen"}

	ErrAccountNotFound      = &Error{Kind: KindNotFound, Message: "account not found"}
	ErrAccountTypeNotFound  = &Error{Kind: KindNotFound, Message: "account type not found"}
	ErrOwnerNotFound        = &Error{Kind: KindNotFound, Message: "owner not found"}
	ErrTransactionNotFound  = &Error{Kind: KindNotFound, Message: "transaction not found"}
	ErrLoanNotFound         = &Error{Kind: KindNotFound, Message: "loan not found"}
	ErrInvestmentNotFound   = &Error{Kind: KindNotFound, Message: "investment not found"}
	ErrAlertNotFound        = &Error{Kind: KindNotFound, Message: "fraud alert not found"}
	ErrNotificationNotFound = &Error{Kind: KindNotFound, Message: "notification not found"}

	ErrFraudRejected = &Error{Kind: KindFraudRejection, Message: "transaction flagged as potentially fraudulent"}

	ErrNotReversible     = &Error{Kind: KindConflict, Message: "only completed transactions can be reversed"}
	ErrAlreadyReversed   = &Error{Kind: KindConflict, Message: "transaction already reversed"}
	ErrAlertResolved     = &Error{Kind: KindConflict, Message: "fraud alert already resolved"}
	ErrInvestmentPaidOut = &Error{Kind: KindConflict, Message: "investment is no longer withdrawable"}
	ErrLoanNotActive     = &Error{Kind: KindConflict, Message: "loan is not active"}
	ErrNotDynamicLoan    = &Error{Kind: KindConflict, Message: "market adjustment applies to dynamic loans only"}
	ErrDuplicateRequest  = &Error{Kind: KindConflict, Message: "request already processed"}
	ErrIrreversibleType  = &Error{Kind: KindConflict, Message: "transaction type cannot be reversed here"}
)

// KindOf returns the business kind of err, or "" when err is not a business error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsBusiness reports whether err is a declined business outcome rather than an
// infrastructure failure.
func IsBusiness(err error) bool {
	return KindOf(err) != ""
}
