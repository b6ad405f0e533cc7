package models

type LoanStatus string

const (
	LoanStatusPending LoanStatus = "pending"
	LoanStatusFunded  LoanStatus = "funded"
	LoanStatusClosed  LoanStatus = "closed"
	LoanStatusExpired LoanStatus = "expired"
)

type LoanRequest struct {
	ID         string     `json:"id"`
	BorrowerID string     `json:"borrowerId"`
	CompanyID  string     `json:"companyId"`
	Amount     float64    `json:"amount"`
	TermMonths int        `json:"termMonths"`
	Purpose    string     `json:"purpose,omitempty"`
	Sector     string     `json:"sector,omitempty"`
	Status     LoanStatus `json:"status"`
	CreatedAt  string     `json:"createdAt"`
	UpdatedAt  string     `json:"updatedAt"`
}

// LoanCandidate is the slice of a loan request the recommendation pipeline
// needs: the amount, the (optionally denormalized) sector, and the company
// id used to resolve a risk assessment.
type LoanCandidate struct {
	ID        string  `json:"id"`
	CompanyID string  `json:"companyId"`
	Amount    float64 `json:"amount"`
	Sector    string  `json:"sector,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

type Funding struct {
	ID        string  `json:"id"`
	LoanID    string  `json:"loanId"`
	LenderID  string  `json:"lenderId"`
	Amount    float64 `json:"amount"`
	FundedAt  string  `json:"fundedAt"`
}
