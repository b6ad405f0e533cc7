// internal/workers/risk/evaluate-company-risk/models.go
package evaluatecompanyrisk

import "encoding/json"

type Input struct {
	CompanyID string `json:"companyId"`
	// Pre-fetched covenant ratios; loaded from the database when absent.
	CovenantRatios json.RawMessage `json:"covenantRatios,omitempty"`
}

type Output struct {
	CompanyID      string         `json:"companyId"`
	RiskScore      int            `json:"riskScore"`
	RiskBand       string         `json:"riskBand"`
	CategoryScores map[string]int `json:"categoryScores"`
	EvaluatedAt    string         `json:"evaluatedAt"`
}
