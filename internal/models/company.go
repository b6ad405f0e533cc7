package models

type Company struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	Country   string `json:"country,omitempty"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// FinancialStatement is one yearly statement inside a company's financial
// snapshot. Stored as JSONB on the companies row; read-only to the workers.
type FinancialStatement struct {
	Year          int     `json:"year"`
	TotalAssets   float64 `json:"totalAssets"`
	Liabilities   float64 `json:"liabilities"`
	Equity        float64 `json:"equity"`
	GrossProfit   float64 `json:"grossProfit"`
	EBITDA        float64 `json:"ebitda"`
	CurrentAssets float64 `json:"currentAssets"`
}

type CompanyFinancials struct {
	CompanyID  string               `json:"companyId"`
	Statements []FinancialStatement `json:"statements"`
	// Raw covenant-ratio JSON as stored; decoded by the risk package.
	CovenantRatios []byte `json:"-"`
}
