package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func rep(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestScorer_Score(t *testing.T) {
	s := NewScorer(10000, decimal.RequireFromString("0.7"))

	t.Run("BaselineOnly", func(t *testing.T) {
		a := s.Score(Input{
			Source:      &Party{Balance: 100000, Reputation: rep(100)},
			Destination: &Party{Balance: 0, Reputation: rep(100)},
			Amount:      1000,
		})
		assert.True(t, a.Score.Equal(decimal.RequireFromString("0.1")))
		assert.Equal(t, []string{FactorBaseline}, a.Factors)
		assert.True(t, a.Safe)
	})

	t.Run("OversizedAndDepleting", func(t *testing.T) {
		a := s.Score(Input{
			Source:      &Party{Balance: 20000, Reputation: rep(100)},
			Destination: &Party{Reputation: rep(100)},
			Amount:      15000,
		})
		assert.True(t, a.Score.Equal(decimal.RequireFromString("0.9")))
		assert.Equal(t, []string{FactorLargeAmount, FactorRapidDepletion, FactorBaseline}, a.Factors)
		assert.False(t, a.Safe)
	})

	t.Run("LowReputationSourceAddsWeight", func(t *testing.T) {
		a := s.Score(Input{
			Source:      &Party{Balance: 20000, Reputation: rep(85)},
			Destination: &Party{Reputation: rep(100)},
			Amount:      15000,
		})
		assert.True(t, a.Score.Equal(decimal.RequireFromString("1.2")))
		assert.Contains(t, a.Factors, FactorSourceReputation)
		assert.False(t, a.Safe)
	})

	t.Run("FrequencyBothSides", func(t *testing.T) {
		a := s.Score(Input{
			Source:      &Party{Balance: 100000, Reputation: rep(100), RecentCount: 3},
			Destination: &Party{Reputation: rep(100), RecentCount: 3},
			Amount:      100,
		})
		assert.True(t, a.Score.Equal(decimal.RequireFromString("0.6")))
		assert.Equal(t, []string{FactorSourceFrequency, FactorDepositFrequency, FactorBaseline}, a.Factors)
		assert.True(t, a.Safe)
	})

	t.Run("ExactlyTwoRecentIsNotUnusual", func(t *testing.T) {
		a := s.Score(Input{Source: &Party{Balance: 100000, Reputation: rep(100), RecentCount: 2}, Amount: 100})
		assert.NotContains(t, a.Factors, FactorSourceFrequency)
	})

	t.Run("ScoreAtThresholdIsUnsafe", func(t *testing.T) {
		a := s.Score(Input{
			Source:      &Party{Balance: 100000, Reputation: rep(80)},
			Destination: &Party{Reputation: rep(80), RecentCount: 5},
			Amount:      100,
		})
		assert.True(t, a.Score.Equal(decimal.RequireFromString("0.8")))
		assert.False(t, a.Safe)

		edge := NewScorer(10000, decimal.RequireFromString("0.8")).Score(Input{
			Source:      &Party{Balance: 100000, Reputation: rep(80)},
			Destination: &Party{Reputation: rep(80), RecentCount: 5},
			Amount:      100,
		})
		assert.False(t, edge.Safe)
	})

	t.Run("DepositHasNoSourceFactors", func(t *testing.T) {
		a := s.Score(Input{Destination: &Party{Reputation: rep(50)}, Amount: 20000})
		assert.Equal(t, []string{FactorLargeAmount, FactorDestReputation, FactorBaseline}, a.Factors)
		assert.InDelta(t, 0.7, a.ScoreFloat(), 1e-9)
		assert.False(t, a.Safe)
	})
}
