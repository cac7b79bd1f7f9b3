package domain

// Result is returned by every public core operation.
type Result struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	ReferenceCode string    `json:"reference_code,omitempty"`
	RiskScore     *float64  `json:"risk_score,omitempty"`
	RiskFactors   []string  `json:"risk_factors,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	ResourceID    int64     `json:"resource_id,omitempty"` // account, loan or investment touched
}

func Succeeded(message string) Result {
	return Result{Success: true, Message: message}
}

// Failure converts a business error into a declined result.
func Failure(err error) Result {
	return Result{Success: false, Message: err.Error(), ErrorKind: KindOf(err)}
}

// WithTransaction attaches the transaction identifiers to r.
func (r Result) WithTransaction(tx *Transaction) Result {
	if tx == nil {
		return r
	}
	r.TransactionID = tx.ID
	r.ReferenceCode = tx.ReferenceCode
	r.Amount = tx.Amount
	return r
}

// WithResource attaches the id of the record the operation acted on.
func (r Result) WithResource(id int64) Result {
	r.ResourceID = id
	return r
}

// WithRisk attaches a risk assessment to r.
func (r Result) WithRisk(score float64, factors []string) Result {
	r.RiskScore = &score
	r.RiskFactors = factors
	return r
}
