// internal/workers/loan/create-loan-request/models.go
package createloanrequest

type Input struct {
	BorrowerID string  `json:"borrowerId"`
	CompanyID  string  `json:"companyId"`
	Amount     float64 `json:"amount"`
	TermMonths int     `json:"termMonths"`
	Purpose    string  `json:"purpose"`
	Sector     string  `json:"sector,omitempty"`
}

type Output struct {
	LoanID    string `json:"loanId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}
