package models

// LenderProfile is a lender's declared risk appetite: which bands they fund,
// the amount range they lend in, and optional target sectors. Mutated only
// by the lender through profile settings.
type LenderProfile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	AcceptedBands   []string `json:"acceptedBands"`
	MinLoanAmount   *float64 `json:"minLoanAmount,omitempty"`
	MaxLoanAmount   *float64 `json:"maxLoanAmount,omitempty"`
	TargetSectors   []string `json:"targetSectors,omitempty"`
	IsActive        bool     `json:"isActive"`
	ContactEmail    string   `json:"contactEmail,omitempty"`
	FundedLoanCount int      `json:"fundedLoanCount"`
}
