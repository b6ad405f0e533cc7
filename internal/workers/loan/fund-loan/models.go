// internal/workers/loan/fund-loan/models.go
package fundloan

type Input struct {
	LoanID   string  `json:"loanId"`
	LenderID string  `json:"lenderId"`
	Amount   float64 `json:"amount"`
}

type Output struct {
	FundingID string `json:"fundingId"`
	LoanID    string `json:"loanId"`
	Status    string `json:"status"`
	FundedAt  string `json:"fundedAt"`
}
