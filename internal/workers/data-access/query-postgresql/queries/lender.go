// internal/workers/data-access/query-postgresql/queries/lender.go
package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

func LenderProfile(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	lenderID, ok := params["lenderId"].(string)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	var id, name, contactEmail string
	var acceptedBands, targetSectors []byte
	var minAmount, maxAmount sql.NullFloat64
	var fundedLoanCount int

	err := db.QueryRowContext(ctx, `
		SELECT id, name, accepted_bands, min_loan_amount, max_loan_amount,
		       target_sectors, contact_email, funded_loan_count
		FROM lender_profiles
		WHERE id = $1 AND is_active = true`, lenderID).Scan(
		&id, &name, &acceptedBands, &minAmount, &maxAmount,
		&targetSectors, &contactEmail, &fundedLoanCount,
	)
	if err != nil {
		return nil, 0, 0, err
	}

	var bands, sectors []string
	if err := json.Unmarshal(acceptedBands, &bands); err != nil {
		bands = []string{}
	}
	if err := json.Unmarshal(targetSectors, &sectors); err != nil {
		sectors = []string{}
	}

	result := map[string]interface{}{
		"id":              id,
		"name":            name,
		"acceptedBands":   bands,
		"targetSectors":   sectors,
		"contactEmail":    contactEmail,
		"fundedLoanCount": fundedLoanCount,
	}
	if minAmount.Valid {
		result["minLoanAmount"] = minAmount.Float64
	}
	if maxAmount.Valid {
		result["maxLoanAmount"] = maxAmount.Float64
	}

	execTime := time.Since(start).Milliseconds()
	return result, 1, execTime, nil
}
