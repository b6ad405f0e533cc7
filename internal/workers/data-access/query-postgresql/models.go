// internal/workers/data-access/query-postgresql/models.go
package querypostgresql

import "lendmarket-workers/internal/models"

type Input struct {
	QueryType string                 `json:"queryType"`
	CompanyID string                 `json:"companyId,omitempty"`
	LenderID  string                 `json:"lenderId,omitempty"`
	LoanID    string                 `json:"loanId,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	Sector    string                 `json:"sector,omitempty"`
	Filters   map[string]interface{} `json:"filters,omitempty"`
}

type Output struct {
	Data               interface{} `json:"data"`
	RowCount           int         `json:"rowCount"`
	QueryExecutionTime int64       `json:"queryExecutionTime"` // milliseconds
}

type QueryType = models.QueryType

// Export constants for external use
var (
	QueryTypeCompanyFinancials = models.QueryTypeCompanyFinancials
	QueryTypeCompanyList       = models.QueryTypeCompanyList
	QueryTypeLenderProfile     = models.QueryTypeLenderProfile
	QueryTypeLoanCandidates    = models.QueryTypeLoanCandidates
	QueryTypeLoanDetail        = models.QueryTypeLoanDetail
	QueryTypeBorrowerProfile   = models.QueryTypeBorrowerProfile
)
