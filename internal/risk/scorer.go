// Package risk scores a prospective money movement. Scoring is pure; callers
// gather balances, reputations and recent activity beforehand.
package risk

import (
	"github.com/shopspring/decimal"
)

// Factor names reported with an assessment.
const (
	FactorLargeAmount      = "Unusually large transaction"
	FactorRapidDepletion   = "Rapid depletion of balance"
	FactorSourceFrequency  = "Unusual transaction frequency"
	FactorSourceReputation = "Low user reputation"
	FactorDepositFrequency = "Unusual deposit frequency"
	FactorDestReputation   = "Destination has low reputation"
	FactorBaseline         = "Enhanced security check"
)

var (
	weightLargeAmount      = decimal.RequireFromString("0.4")
	weightRapidDepletion   = decimal.RequireFromString("0.4")
	weightSourceFrequency  = decimal.RequireFromString("0.3")
	weightSourceReputation = decimal.RequireFromString("0.3")
	weightDepositFrequency = decimal.RequireFromString("0.2")
	weightDestReputation   = decimal.RequireFromString("0.2")
	weightBaseline         = decimal.RequireFromString("0.1")

	half              = decimal.RequireFromString("0.5")
	trustedReputation = decimal.NewFromInt(90)
)

// frequencyLimit is the number of transactions in the trailing hour an account
// may see before it counts as unusual.
const frequencyLimit = 2

// Party describes one side of a movement. RecentCount is outgoing
// transactions for a source and incoming ones for a destination, over the
// trailing hour.
type Party struct {
	Balance     int64
	Reputation  decimal.Decimal
	RecentCount int
}

type Input struct {
	Source      *Party
	Destination *Party
	Amount      int64
}

type Assessment struct {
	Score   decimal.Decimal
	Factors []string
	Safe    bool
}

// ScoreFloat is the score as a float64 for results and metrics.
func (a Assessment) ScoreFloat() float64 {
	return a.Score.InexactFloat64()
}

type Scorer struct {
	MaxTransactionAmount int64
	Threshold            decimal.Decimal
}

func NewScorer(maxTransactionAmount int64, threshold decimal.Decimal) Scorer {
	return Scorer{MaxTransactionAmount: maxTransactionAmount, Threshold: threshold}
}

func (s Scorer) Score(in Input) Assessment {
	score := decimal.Zero
	var factors []string
	add := func(w decimal.Decimal, factor string) {
		score = score.Add(w)
		factors = append(factors, factor)
	}

	if in.Amount > s.MaxTransactionAmount {
		add(weightLargeAmount, FactorLargeAmount)
	}

	if src := in.Source; src != nil {
		if decimal.NewFromInt(in.Amount).GreaterThan(decimal.NewFromInt(src.Balance).Mul(half)) {
			add(weightRapidDepletion, FactorRapidDepletion)
		}
		if src.RecentCount > frequencyLimit {
			add(weightSourceFrequency, FactorSourceFrequency)
		}
		if src.Reputation.LessThan(trustedReputation) {
			add(weightSourceReputation, FactorSourceReputation)
		}
	}

	if dst := in.Destination; dst != nil {
		if dst.RecentCount > frequencyLimit {
			add(weightDepositFrequency, FactorDepositFrequency)
		}
		if dst.Reputation.LessThan(trustedReputation) {
			add(weightDestReputation, FactorDestReputation)
		}
	}

	add(weightBaseline, FactorBaseline)

	return Assessment{
		Score:   score,
		Factors: factors,
		Safe:    score.LessThan(s.Threshold),
	}
}
