// internal/workers/data-access/query-postgresql/queries/company.go
package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// CompanyFinancials loads a company's covenant-ratio snapshot. The ratios
// column is returned raw; the risk evaluator owns its interpretation.
func CompanyFinancials(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	companyID, ok := params["companyId"].(string)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	var id, name, sector string
	var covenantRatios []byte
	err := db.QueryRowContext(ctx, `
		SELECT id, name, sector, covenant_ratios
		FROM companies
		WHERE id = $1 AND is_active = true`, companyID).Scan(
		&id, &name, &sector, &covenantRatios,
	)
	if err != nil {
		return nil, 0, 0, err
	}

	result := map[string]interface{}{
		"id":             id,
		"name":           name,
		"sector":         sector,
		"covenantRatios": json.RawMessage(covenantRatios),
	}

	execTime := time.Since(start).Milliseconds()
	return result, 1, execTime, nil
}

func CompanyList(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	query := `
		SELECT id, name, sector, country, created_at
		FROM companies
		WHERE is_active = true`
	args := []interface{}{}

	if sector, ok := params["sector"].(string); ok && sector != "" {
		query += ` AND sector = $1`
		args = append(args, sector)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	companies := []map[string]interface{}{}
	for rows.Next() {
		var id, name, sector, country, createdAt string
		if err := rows.Scan(&id, &name, &sector, &country, &createdAt); err != nil {
			return nil, 0, 0, err
		}
		companies = append(companies, map[string]interface{}{
			"id":        id,
			"name":      name,
			"sector":    sector,
			"country":   country,
			"createdAt": createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	execTime := time.Since(start).Milliseconds()
	return companies, len(companies), execTime, nil
}
