// internal/workers/company/search-companies/models.go
package searchcompanies

type Input struct {
	QueryType   string      `json:"queryType,omitempty"`
	Keywords    string      `json:"keywords,omitempty"`
	Sector      string      `json:"sector,omitempty"`
	Country     string      `json:"country,omitempty"`
	RiskBands   []string    `json:"riskBands,omitempty"`
	AmountRange AmountRange `json:"amountRange,omitempty"`
	CompanyID   string      `json:"companyId,omitempty"`
	Pagination  Pagination  `json:"pagination,omitempty"`
}

type AmountRange struct {
	Min float64 `json:"min,omitempty"`
	Max float64 `json:"max,omitempty"`
}

type Pagination struct {
	From int `json:"from,omitempty"`
	Size int `json:"size,omitempty"`
}

type Output struct {
	Companies []map[string]interface{} `json:"companies"`
	TotalHits int64                    `json:"totalHits"`
	MaxScore  float64                  `json:"maxScore"`
	Took      int64                    `json:"took"` // milliseconds
}
