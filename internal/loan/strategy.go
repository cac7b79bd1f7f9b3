// Package loan prices, disburses and collects time loans under one of three
// repayment strategies.
package loan

import (
	"fmt"
	"time"

	"chronobank/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	one            = decimal.NewFromInt(1)
	minRate        = decimal.RequireFromString("0.01")
	maxRate        = decimal.RequireFromString("0.25")
	earlyBonus     = decimal.RequireFromString("1.05")
	termWeight     = decimal.RequireFromString("0.02")
	principalScale = decimal.NewFromInt(2592000) // seconds in a 30-day month
	principalRate  = decimal.RequireFromString("0.01")
	daysPerYear    = decimal.NewFromInt(365)
	thousand       = decimal.NewFromInt(1000)
)

// InterestRate prices a new loan: base rate, plus a reputation deficit
// surcharge, plus term and size loadings, clamped to [0.01, 0.25].
func InterestRate(base decimal.Decimal, principal int64, termDays int, reputation decimal.Decimal) decimal.Decimal {
	deficit := domain.MaxReputation.Sub(domain.ClampReputation(reputation)).Div(thousand)
	term := decimal.NewFromInt(int64(termDays)).Div(daysPerYear).Mul(termWeight)
	size := decimal.NewFromInt(principal).Div(principalScale).Mul(principalRate)

	rate := base.Add(deficit).Add(term).Add(size)
	if rate.LessThan(minRate) {
		rate = minRate
	}
	if rate.GreaterThan(maxRate) {
		rate = maxRate
	}
	return rate.Round(8)
}

// Payment is the effect of one repayment. Applied reduces the remaining
// amount; Charged is what the borrower's account is debited.
type Payment struct {
	Applied int64
	Charged int64
}

type Strategy interface {
	Kind() domain.RepaymentStrategy
	TotalRepayment(l *domain.Loan) int64
	Schedule(l *domain.Loan) []domain.Instalment
	ApplyPayment(l *domain.Loan, amount int64, at time.Time) Payment
}

// For returns the strategy stored on a loan.
func For(kind domain.RepaymentStrategy) (Strategy, error) {
	switch kind {
	case domain.StrategyFixed:
		return Fixed{}, nil
	case domain.StrategyDynamic:
		return Dynamic{}, nil
	case domain.StrategyEarly:
		return Early{}, nil
	}
	return nil, domain.ErrUnknownStrategy
}

// total is floor(principal * (1 + rate)).
func total(principal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(principal).Mul(one.Add(rate)).Floor().IntPart()
}

// interval is the spacing of the four schedule points, at least one day.
func interval(termDays int) int {
	if d := termDays / 4; d > 0 {
		return d
	}
	return 1
}

// point returns the i-th quarter point (1..4); the fourth is the due date.
func point(l *domain.Loan, i int) time.Time {
	if i >= 4 {
		return l.DueDate
	}
	return l.CreatedAt.AddDate(0, 0, i*interval(l.TermDays))
}

func clampPayment(l *domain.Loan, amount int64) Payment {
	if amount > l.RemainingAmount {
		amount = l.RemainingAmount
	}
	return Payment{Applied: amount, Charged: amount}
}

// Fixed repays in four equal instalments.
type Fixed struct{}

func (Fixed) Kind() domain.RepaymentStrategy { return domain.StrategyFixed }

func (Fixed) TotalRepayment(l *domain.Loan) int64 {
	return total(l.Principal, l.InterestRate)
}

func (s Fixed) Schedule(l *domain.Loan) []domain.Instalment {
	t := s.TotalRepayment(l)
	quarter := t / 4
	out := make([]domain.Instalment, 4)
	for i := 1; i <= 4; i++ {
		amount := quarter
		if i == 4 {
			amount = t - 3*quarter
		}
		out[i-1] = domain.Instalment{DueDate: point(l, i), Amount: amount, Description: fmt.Sprintf("Instalment %d of 4", i)}
	}
	return out
}

func (Fixed) ApplyPayment(l *domain.Loan, amount int64, _ time.Time) Payment {
	return clampPayment(l, amount)
}

// Dynamic follows a market-adjusted rate, repays on a graduated 10/20/30/40
// schedule and rewards payments made before the term midpoint with 5%.
type Dynamic struct{}

func (Dynamic) Kind() domain.RepaymentStrategy { return domain.StrategyDynamic }

// EffectiveRate is the nominal rate plus the market adjustment, floored at 0.01.
func (Dynamic) EffectiveRate(l *domain.Loan) decimal.Decimal {
	r := l.InterestRate.Add(l.MarketAdjustment)
	if r.LessThan(minRate) {
		return minRate
	}
	return r
}

func (s Dynamic) TotalRepayment(l *domain.Loan) int64 {
	return total(l.Principal, s.EffectiveRate(l))
}

func (s Dynamic) Schedule(l *domain.Loan) []domain.Instalment {
	t := s.TotalRepayment(l)
	base := t / 10
	amounts := [4]int64{base, 2 * base, 3 * base, t - 6*base}
	out := make([]domain.Instalment, 4)
	for i, amount := range amounts {
		out[i] = domain.Instalment{
			DueDate:     point(l, i+1),
			Amount:      amount,
			Description: fmt.Sprintf("Graduated payment %d of 4 (%d%%)", i+1, (i+1)*10),
		}
	}
	return out
}

func midpoint(l *domain.Loan) time.Time {
	return l.DueDate.AddDate(0, 0, -l.TermDays/2)
}

func (Dynamic) ApplyPayment(l *domain.Loan, amount int64, at time.Time) Payment {
	if !at.Before(midpoint(l)) {
		return clampPayment(l, amount)
	}
	effective := decimal.NewFromInt(amount).Mul(earlyBonus).Floor().IntPart()
	if effective < l.RemainingAmount {
		return Payment{Applied: effective, Charged: amount}
	}
	// Only charge what clears the balance once the bonus is added.
	charged := decimal.NewFromInt(l.RemainingAmount).Div(earlyBonus).Ceil().IntPart()
	if charged > amount {
		charged = amount
	}
	return Payment{Applied: l.RemainingAmount, Charged: charged}
}

// Early charges the nominal total but discounts a full payoff made early.
type Early struct{}

func (Early) Kind() domain.RepaymentStrategy { return domain.StrategyEarly }

func (Early) TotalRepayment(l *domain.Loan) int64 {
	return total(l.Principal, l.InterestRate)
}

var earlyOffers = []struct {
	percent  int64
	discount decimal.Decimal
}{
	{15, decimal.RequireFromString("0.15")},
	{10, decimal.RequireFromString("0.10")},
	{5, decimal.RequireFromString("0.05")},
}

func discounted(amount int64, discount decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(one.Sub(discount)).Floor().IntPart()
}

// Schedule lists the payoff offers at the quarter points followed by the
// undiscounted amount at the due date. Offers are priced on what is owed now.
func (Early) Schedule(l *domain.Loan) []domain.Instalment {
	owed := l.RemainingAmount
	out := make([]domain.Instalment, 0, 4)
	for i, offer := range earlyOffers {
		out = append(out, domain.Instalment{
			DueDate:     point(l, i+1),
			Amount:      discounted(owed, offer.discount),
			Description: fmt.Sprintf("Full payoff with %d%% discount", offer.percent),
		})
	}
	return append(out, domain.Instalment{DueDate: l.DueDate, Amount: owed, Description: "Full payoff at due date"})
}

// discountAt picks the payoff discount by the share of the term still ahead.
func discountAt(l *domain.Loan, at time.Time) (decimal.Decimal, bool) {
	if l.TermDays <= 0 || !at.Before(l.DueDate) {
		return decimal.Zero, false
	}
	left := int(l.DueDate.Sub(at) / (24 * time.Hour))
	switch {
	case left*4 >= 3*l.TermDays:
		return earlyOffers[0].discount, true
	case left*2 >= l.TermDays:
		return earlyOffers[1].discount, true
	case left*4 >= l.TermDays:
		return earlyOffers[2].discount, true
	}
	return decimal.Zero, false
}

func (Early) ApplyPayment(l *domain.Loan, amount int64, at time.Time) Payment {
	if amount < l.RemainingAmount {
		return clampPayment(l, amount)
	}
	d, ok := discountAt(l, at)
	if !ok {
		return clampPayment(l, amount)
	}
	return Payment{Applied: l.RemainingAmount, Charged: discounted(l.RemainingAmount, d)}
}
