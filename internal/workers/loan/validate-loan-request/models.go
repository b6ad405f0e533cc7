// internal/workers/loan/validate-loan-request/models.go
package validateloanrequest

type Input struct {
	LoanRequest map[string]interface{} `json:"loanRequest"`
}

type Output struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
