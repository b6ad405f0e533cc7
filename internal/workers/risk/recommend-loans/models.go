// internal/workers/risk/recommend-loans/models.go
package recommendloans

import "lendmarket-workers/internal/models"

type Input struct {
	LenderID string `json:"lenderId"`
	// Pre-fetched profile; loaded from the database when absent.
	LenderProfile *models.LenderProfile `json:"lenderProfile,omitempty"`
	MaxResults    int                   `json:"maxResults,omitempty"`
}

type Recommendation struct {
	LoanID     string  `json:"loanId"`
	CompanyID  string  `json:"companyId"`
	Amount     float64 `json:"amount"`
	Sector     string  `json:"sector,omitempty"`
	RiskScore  int     `json:"riskScore"`
	RiskBand   string  `json:"riskBand"`
	MatchScore float64 `json:"matchScore"`
	CreatedAt  string  `json:"createdAt"`
}

type Output struct {
	LenderID        string           `json:"lenderId"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalCandidates int              `json:"totalCandidates"`
	ExcludedCount   int              `json:"excludedCount"`
}
