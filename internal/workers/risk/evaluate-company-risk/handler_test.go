// internal/workers/risk/evaluate-company-risk/handler_test.go
package evaluatecompanyrisk

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/risk"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func strongRatios(t *testing.T) json.RawMessage {
	raw, err := json.Marshal(map[string]float64{
		"currentRatio": 2.0, "quickRatio": 1.5, "cashRatio": 0.5,
		"debtRatio": 0.3, "debtToEquity": 0.8, "equityRatio": 0.6,
		"assetTurnover": 1.2, "workingCapitalRatio": 1.8, "receivablesTurnover": 6.0,
		"grossMargin": 0.4, "ebitdaMargin": 0.2, "returnOnAssets": 0.1, "returnOnEquity": 0.15,
	})
	require.NoError(t, err)
	return raw
}

func TestHandler_Execute_WithProvidedRatios(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	mock.ExpectExec("INSERT INTO risk_assessments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		CompanyID:      "company-1",
		CovenantRatios: strongRatios(t),
	})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.Equal(t, 100, output.RiskScore)
	assert.Equal(t, "low", output.RiskBand)
	assert.Len(t, output.CategoryScores, 4)
	assert.NoError(t, mock.ExpectationsWereMet())

	// cached best-effort
	assert.True(t, mr.Exists("risk:assessment:company-1"))
}

func TestHandler_Execute_LoadsRatiosFromDatabase(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	ratios, _ := json.Marshal(map[string]float64{
		"currentRatio": 0.5, "debtRatio": 0.9,
	})

	mock.ExpectQuery("SELECT covenant_ratios FROM companies").
		WithArgs("company-2").
		WillReturnRows(sqlmock.NewRows([]string{"covenant_ratios"}).AddRow(ratios))
	mock.ExpectExec("INSERT INTO risk_assessments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{CompanyID: "company-2"})

	assert.NoError(t, err)
	assert.Equal(t, "high", output.RiskBand)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CompanyNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectQuery("SELECT covenant_ratios FROM companies").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{CompanyID: "ghost"})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrCompanyNotFound)
	assert.Nil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_MalformedRatiosFailClosed(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	tests := []struct {
		name string
		raw  string
	}{
		{"truncated json", `{"currentRatio": 1.`},
		{"json array", `[1, 2, 3]`},
		{"whitespace only", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := handler.Execute(context.Background(), &Input{
				CompanyID:      "company-3",
				CovenantRatios: json.RawMessage(tt.raw),
			})
			assert.Error(t, err)
			assert.ErrorIs(t, err, risk.ErrDataUnavailable)
			assert.Nil(t, output)
		})
	}
}

func TestHandler_Execute_MissingCompanyID(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	assert.Error(t, err)
	assert.ErrorIs(t, err, risk.ErrDataUnavailable)
	assert.Nil(t, output)
}

func TestHandler_Execute_UpsertFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectExec("INSERT INTO risk_assessments").
		WillReturnError(sql.ErrConnDone)

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		CompanyID:      "company-4",
		CovenantRatios: strongRatios(t),
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrRiskUpsertFailed)
	assert.Nil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CacheWriteFailureIsNotFatal(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	redisMock.Regexp().
		ExpectSet("risk:assessment:company-6", `.*`, 10*time.Minute).
		SetErr(redis.ErrClosed)

	mock.ExpectExec("INSERT INTO risk_assessments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		CompanyID:      "company-6",
		CovenantRatios: strongRatios(t),
	})

	assert.NoError(t, err)
	assert.Equal(t, "low", output.RiskBand)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestHandler_Execute_Deterministic(t *testing.T) {
	rdb, _ := setupTestRedis(t)

	raw := strongRatios(t)

	var first *Output
	for i := 0; i < 3; i++ {
		db, mock := setupMockDB(t)
		mock.ExpectExec("INSERT INTO risk_assessments").
			WillReturnResult(sqlmock.NewResult(1, 1))

		handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))
		output, err := handler.Execute(context.Background(), &Input{
			CompanyID:      "company-5",
			CovenantRatios: raw,
		})
		require.NoError(t, err)
		db.Close()

		if first == nil {
			first = output
			continue
		}
		assert.Equal(t, first.RiskScore, output.RiskScore)
		assert.Equal(t, first.RiskBand, output.RiskBand)
		assert.Equal(t, first.CategoryScores, output.CategoryScores)
	}
}
