// internal/workers/risk/recommend-lenders/models.go
package recommendlenders

type Input struct {
	LoanID     string `json:"loanId"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type LenderMatch struct {
	LenderID        string  `json:"lenderId"`
	Name            string  `json:"name"`
	ContactEmail    string  `json:"contactEmail,omitempty"`
	FundedLoanCount int     `json:"fundedLoanCount"`
	MatchScore      float64 `json:"matchScore"`
}

type Output struct {
	LoanID          string        `json:"loanId"`
	RiskScore       int           `json:"riskScore"`
	RiskBand        string        `json:"riskBand"`
	Lenders         []LenderMatch `json:"lenders"`
	TotalCandidates int           `json:"totalCandidates"`
}
