// internal/workers/data-access/query-postgresql/handler_test.go
package querypostgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"lendmarket-workers/internal/common/errors"
	"lendmarket-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock
}

func TestHandler_Execute_CompanyFinancials(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	ratios, _ := json.Marshal(map[string]float64{"currentRatio": 1.5, "debtRatio": 0.4})

	mock.ExpectQuery("SELECT id, name, sector, covenant_ratios").
		WithArgs("company-123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sector", "covenant_ratios"}).
			AddRow("company-123", "Acme Manufacturing", "manufacturing", ratios))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		QueryType: "company_financials",
		CompanyID: "company-123",
	})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.Equal(t, 1, output.RowCount)

	data, ok := output.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "Acme Manufacturing", data["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_LoanCandidates(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "amount", "sector", "created_at"}).
			AddRow("loan-1", "company-1", 250000.0, "retail", "2025-01-10T00:00:00Z").
			AddRow("loan-2", "company-2", 500000.0, "manufacturing", "2025-01-09T00:00:00Z"))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		QueryType: "loan_candidates",
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, output.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_LenderProfile(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	bands, _ := json.Marshal([]string{"low", "medium"})
	sectors, _ := json.Marshal([]string{"retail"})

	mock.ExpectQuery("SELECT id, name, accepted_bands").
		WithArgs("lender-9").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "accepted_bands", "min_loan_amount", "max_loan_amount",
			"target_sectors", "contact_email", "funded_loan_count",
		}).AddRow("lender-9", "North Capital", bands, 100000.0, 1000000.0, sectors, "ops@north.example", 12))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		QueryType: "lender_profile",
		LenderID:  "lender-9",
	})

	assert.NoError(t, err)
	data, ok := output.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, []string{"low", "medium"}, data["acceptedBands"])
	assert.Equal(t, 100000.0, data["minLoanAmount"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_InvalidQueryType(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		QueryType: "not_a_query",
	})

	assert.Error(t, err)
	var stdErr *errors.StandardError
	assert.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeInvalidQueryType, stdErr.Code)
	assert.Nil(t, output)
}

func TestHandler_Execute_MissingParam(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	// company_financials without companyId
	output, err := handler.Execute(context.Background(), &Input{
		QueryType: "company_financials",
	})

	assert.Error(t, err)
	var stdErr *errors.StandardError
	assert.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Nil(t, output)
}

func TestHandler_Execute_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, sector, covenant_ratios").
		WithArgs("missing-company").
		WillReturnError(sql.ErrNoRows)

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		QueryType: "company_financials",
		CompanyID: "missing-company",
	})

	assert.Error(t, err)
	assert.Nil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NilInput(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), nil)

	assert.Error(t, err)
	assert.Nil(t, output)
}
