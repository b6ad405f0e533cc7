// internal/workers/data-access/query-postgresql/queries/loan.go
package queries

import (
	"context"
	"database/sql"
	"time"
)

// LoanCandidates returns open loan requests eligible for matching.
// Expired requests are excluded at query time rather than filtered later.
func LoanCandidates(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	query := `
		SELECT id, company_id, amount, sector, created_at
		FROM loan_requests
		WHERE status = 'pending' AND expires_at > NOW()`
	args := []interface{}{}

	if sector, ok := params["sector"].(string); ok && sector != "" {
		query += ` AND sector = $1`
		args = append(args, sector)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	candidates := []map[string]interface{}{}
	for rows.Next() {
		var id, companyID, sector, createdAt string
		var amount float64
		if err := rows.Scan(&id, &companyID, &amount, &sector, &createdAt); err != nil {
			return nil, 0, 0, err
		}
		candidates = append(candidates, map[string]interface{}{
			"id":        id,
			"companyId": companyID,
			"amount":    amount,
			"sector":    sector,
			"createdAt": createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	execTime := time.Since(start).Milliseconds()
	return candidates, len(candidates), execTime, nil
}

func LoanDetail(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	loanID, ok := params["loanId"].(string)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	var id, borrowerID, companyID, purpose, sector, status, createdAt string
	var amount float64
	var termMonths int

	err := db.QueryRowContext(ctx, `
		SELECT id, borrower_id, company_id, amount, term_months, purpose, sector, status, created_at
		FROM loan_requests
		WHERE id = $1`, loanID).Scan(
		&id, &borrowerID, &companyID, &amount, &termMonths,
		&purpose, &sector, &status, &createdAt,
	)
	if err != nil {
		return nil, 0, 0, err
	}

	result := map[string]interface{}{
		"id":         id,
		"borrowerId": borrowerID,
		"companyId":  companyID,
		"amount":     amount,
		"termMonths": termMonths,
		"purpose":    purpose,
		"sector":     sector,
		"status":     status,
		"createdAt":  createdAt,
	}

	execTime := time.Since(start).Milliseconds()
	return result, 1, execTime, nil
}

func BorrowerProfile(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	userID, ok := params["userId"].(string)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	var id, email, name, role, status string
	var companyID sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT id, email, name, role, company_id, status
		FROM users
		WHERE id = $1`, userID).Scan(
		&id, &email, &name, &role, &companyID, &status,
	)
	if err != nil {
		return nil, 0, 0, err
	}

	result := map[string]interface{}{
		"id":     id,
		"email":  email,
		"name":   name,
		"role":   role,
		"status": status,
	}
	if companyID.Valid {
		result["companyId"] = companyID.String
	}

	execTime := time.Since(start).Milliseconds()
	return result, 1, execTime, nil
}
