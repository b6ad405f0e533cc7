// internal/workers/loan/parse-search-filters/models.go
package parsesearchfilters

type Input struct {
	RawFilters map[string]interface{} `json:"rawFilters"`
}

type Output struct {
	ParsedFilters ParsedFilters `json:"parsedFilters"`
	Warnings      []string      `json:"warnings"`
}

type ParsedFilters struct {
	Sectors     []string    `json:"sectors"`
	RiskBands   []string    `json:"riskBands"`
	AmountRange AmountRange `json:"amountRange"`
	Keywords    string      `json:"keywords"`
	SortBy      string      `json:"sortBy"`
	Pagination  Pagination  `json:"pagination"`
}

type AmountRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Pagination struct {
	Page int `json:"page"`
	Size int `json:"size"`
}
