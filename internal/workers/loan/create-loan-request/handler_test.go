// internal/workers/loan/create-loan-request/handler_test.go
package createloanrequest

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"lendmarket-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:    5 * time.Second,
		ExpiryDays: 30,
	}
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock
}

func validInput() *Input {
	return &Input{
		BorrowerID: "user-1",
		CompanyID:  "company-1",
		Amount:     150000,
		TermMonths: 36,
		Purpose:    "working capital for seasonal inventory",
		Sector:     "retail",
	}
}

func TestHandler_Execute_CreatesLoanRequest(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM loan_requests").
		WithArgs("user-1", "company-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO loan_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, "pending", output.Status)
	_, err = uuid.Parse(output.LoanID)
	assert.NoError(t, err)

	created, err := time.Parse(time.RFC3339, output.CreatedAt)
	require.NoError(t, err)
	expires, err := time.Parse(time.RFC3339, output.ExpiresAt)
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, expires.Sub(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_DuplicateRequest(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM loan_requests").
		WithArgs("user-1", "company-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("loan-existing"))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Nil(t, output)
}

func TestHandler_Execute_InsertFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM loan_requests").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO loan_requests").
		WillReturnError(errors.New("connection reset"))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInsertFailed)
	assert.Nil(t, output)
}

func TestHandler_Execute_AuditFailureIsNotFatal(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM loan_requests").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO loan_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnError(errors.New("audit table locked"))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, "pending", output.Status)
}

func TestHandler_Execute_MissingIdentifiers(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Amount: 1000})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, output)
}

func TestHandler_Execute_NonPositiveAmount(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		BorrowerID: "user-1",
		CompanyID:  "company-1",
		Amount:     0,
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, output)
}
