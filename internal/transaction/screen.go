package transaction

import (
	"context"

	"chronobank/internal/domain"
)

// Screening is what a Screener sees before a movement commits. Account
// snapshots are taken under the engine's account locks.
type Screening struct {
	Type           domain.TransactionType
	Source         *domain.Account
	Destination    *domain.Account
	Amount         int64
	Description    string
	IdempotencyKey *string
}

// Verdict is a Screener's decision. Transaction is the Failed record stored
// for a rejected movement, when one was stored.
type Verdict struct {
	Rejected    bool
	Score       float64
	Factors     []string
	Transaction *domain.Transaction
}

// Screener vets a movement before it executes. A rejection is a business
// outcome; an error aborts the movement.
type Screener interface {
	Screen(ctx context.Context, s Screening) (Verdict, error)
}

// PostProcessor runs after a movement has committed. It must not fail the
// movement; problems are logged by the implementation.
type PostProcessor interface {
	Run(ctx context.Context, origin *domain.Transaction)
}
