package jobs

import (
	"context"

	"chronobank/internal/logger"
)

// SweepOverdueLoans defaults Active loans past their due date
func (jr *JobRunner) SweepOverdueLoans() {
	jr.runWithRecovery("SweepOverdueLoans", func() {
		n, err := jr.services.Loans.SweepOverdue(context.Background())
		if err != nil {
			logger.Error("Overdue loan sweep finished with errors", "defaulted", n, "error", err)
			return
		}
		logger.Info("Overdue loans defaulted", "count", n)
	})
}

// SweepMaturedInvestments marks investments past maturity as Matured
func (jr *JobRunner) SweepMaturedInvestments() {
	jr.runWithRecovery("SweepMaturedInvestments", func() {
		n, err := jr.services.Investments.SweepMatured(context.Background())
		if err != nil {
			logger.Error("Investment maturity sweep finished with errors", "matured", n, "error", err)
			return
		}
		logger.Info("Investments matured", "count", n)
	})
}
