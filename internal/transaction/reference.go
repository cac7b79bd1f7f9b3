package transaction

import (
	"errors"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/logger"
	"chronobank/internal/repository"
)

// DefaultReferenceAttempts bounds how often a colliding reference code is
// regenerated before the store error is surfaced.
const DefaultReferenceAttempts = 5

// RetryOnDuplicateReference runs attempt until it stops failing with
// repository.ErrDuplicateReference. attempt must build a fresh reference code
// on each call, normally inside its own store transaction.
func RetryOnDuplicateReference(attempts int, attempt func() error) error {
	if attempts <= 0 {
		attempts = DefaultReferenceAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = attempt(); !errors.Is(err, repository.ErrDuplicateReference) {
			return err
		}
		logger.Warn("Reference code collision, regenerating", "attempt", i+1)
	}
	return err
}

// NewRecord builds a record with a fresh reference code.
func NewRecord(m Movement, status domain.TransactionStatus, at time.Time) *domain.Transaction {
	return &domain.Transaction{
		Type:                 m.Type,
		SourceAccountID:      m.SourceID,
		DestinationAccountID: m.DestinationID,
		Amount:               m.Amount,
		Status:               status,
		ReferenceCode:        domain.NewReferenceCode(),
		Description:          m.Description,
		CreatedAt:            at,
		UpdatedAt:            at,
	}
}
