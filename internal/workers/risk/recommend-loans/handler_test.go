// internal/workers/risk/recommend-loans/handler_test.go
package recommendloans

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:               5 * time.Second,
		CacheTTL:              10 * time.Minute,
		EnrichmentConcurrency: 4,
		MaxCandidates:         50,
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

func seedAssessment(t *testing.T, mr *miniredis.Miniredis, companyID string, score int, band string) {
	data, err := json.Marshal(map[string]interface{}{"score": score, "band": band})
	require.NoError(t, err)
	require.NoError(t, mr.Set("risk:assessment:"+companyID, string(data)))
}

func candidateRows(loans ...[]driverValue) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "company_id", "amount", "sector", "created_at"})
	for _, l := range loans {
		rows.AddRow(l[0], l[1], l[2], l[3], l[4])
	}
	return rows
}

type driverValue = interface{}

func lenderProfile(bands []string, min, max *float64, sectors []string) *models.LenderProfile {
	return &models.LenderProfile{
		ID:            "lender-1",
		Name:          "North Capital",
		AcceptedBands: bands,
		MinLoanAmount: min,
		MaxLoanAmount: max,
		TargetSectors: sectors,
	}
}

func TestHandler_Execute_RanksByMatchScore(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	seedAssessment(t, mr, "company-a", 85, "low")
	seedAssessment(t, mr, "company-b", 55, "medium")
	seedAssessment(t, mr, "company-c", 20, "high")

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-b", "company-b", 200000.0, "retail", "2025-01-10T00:00:00Z"},
			[]driverValue{"loan-a", "company-a", 150000.0, "retail", "2025-01-09T00:00:00Z"},
			[]driverValue{"loan-c", "company-c", 100000.0, "retail", "2025-01-08T00:00:00Z"},
		))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{"low", "medium"}, nil, nil, nil),
	})

	require.NoError(t, err)
	require.Len(t, output.Recommendations, 2)

	// low-band loan ranks above medium regardless of candidate order
	assert.Equal(t, "loan-a", output.Recommendations[0].LoanID)
	assert.Equal(t, "loan-b", output.Recommendations[1].LoanID)
	assert.InDelta(t, 1.0, output.Recommendations[0].MatchScore, 1e-9)
	assert.InDelta(t, 0.72, output.Recommendations[1].MatchScore, 1e-9)
	assert.Equal(t, 3, output.TotalCandidates)
	assert.Equal(t, 0, output.ExcludedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_TieBreaksNewestFirst(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	seedAssessment(t, mr, "company-a", 85, "low")
	seedAssessment(t, mr, "company-b", 85, "low")

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-old", "company-a", 150000.0, "", "2025-01-05T00:00:00Z"},
			[]driverValue{"loan-new", "company-b", 150000.0, "", "2025-01-20T00:00:00Z"},
		))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{"low"}, nil, nil, nil),
	})

	require.NoError(t, err)
	require.Len(t, output.Recommendations, 2)
	assert.Equal(t, output.Recommendations[0].MatchScore, output.Recommendations[1].MatchScore)
	assert.Equal(t, "loan-new", output.Recommendations[0].LoanID)
	assert.Equal(t, "loan-old", output.Recommendations[1].LoanID)
}

func TestHandler_Execute_EmptyAppetiteRejectsAll(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	seedAssessment(t, mr, "company-a", 85, "low")

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-a", "company-a", 150000.0, "retail", "2025-01-09T00:00:00Z"},
		))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{}, nil, nil, nil),
	})

	require.NoError(t, err)
	assert.Empty(t, output.Recommendations)
	assert.Equal(t, 1, output.TotalCandidates)
}

func TestHandler_Execute_AmountBoundsInclusive(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	seedAssessment(t, mr, "company-a", 85, "low")
	seedAssessment(t, mr, "company-b", 85, "low")
	seedAssessment(t, mr, "company-c", 85, "low")

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-exact-min", "company-a", 100000.0, "", "2025-01-09T00:00:00Z"},
			[]driverValue{"loan-above-max", "company-b", 500000.0, "", "2025-01-08T00:00:00Z"},
			[]driverValue{"loan-exact-max", "company-c", 300000.0, "", "2025-01-07T00:00:00Z"},
		))

	min, max := 100000.0, 300000.0
	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{"low"}, &min, &max, nil),
	})

	require.NoError(t, err)
	require.Len(t, output.Recommendations, 2)
	ids := []string{output.Recommendations[0].LoanID, output.Recommendations[1].LoanID}
	assert.Contains(t, ids, "loan-exact-min")
	assert.Contains(t, ids, "loan-exact-max")
}

func TestHandler_Execute_SectorFilter(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	seedAssessment(t, mr, "company-a", 85, "low")
	seedAssessment(t, mr, "company-b", 85, "low")
	seedAssessment(t, mr, "company-c", 85, "low")

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-retail", "company-a", 150000.0, "retail", "2025-01-09T00:00:00Z"},
			[]driverValue{"loan-mfg", "company-b", 150000.0, "manufacturing", "2025-01-08T00:00:00Z"},
			[]driverValue{"loan-nosector", "company-c", 150000.0, "", "2025-01-07T00:00:00Z"},
		))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{"low"}, nil, nil, []string{"retail"}),
	})

	require.NoError(t, err)
	require.Len(t, output.Recommendations, 2)
	ids := []string{output.Recommendations[0].LoanID, output.Recommendations[1].LoanID}
	// undeclared sector passes the filter; mismatched sector does not
	assert.Contains(t, ids, "loan-retail")
	assert.Contains(t, ids, "loan-nosector")
}

func TestHandler_Execute_UnscoreableCandidateExcluded(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	cfg := createTestConfig()
	cfg.EnrichmentConcurrency = 1 // keep sqlmock expectation order deterministic

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-x", "company-x", 150000.0, "", "2025-01-09T00:00:00Z"},
		))
	mock.ExpectQuery("SELECT score, band FROM risk_assessments").
		WithArgs("company-x").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT covenant_ratios FROM companies").
		WithArgs("company-x").
		WillReturnRows(sqlmock.NewRows([]string{"covenant_ratios"}).AddRow([]byte(`not json`)))

	handler := NewHandler(cfg, db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{"low", "medium", "high"}, nil, nil, nil),
	})

	require.NoError(t, err)
	assert.Empty(t, output.Recommendations)
	assert.Equal(t, 1, output.ExcludedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_EvaluatesWhenNoStoredAssessment(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	cfg := createTestConfig()
	cfg.EnrichmentConcurrency = 1

	ratios, _ := json.Marshal(map[string]float64{
		"currentRatio": 2.0, "quickRatio": 1.5, "cashRatio": 0.5,
		"debtRatio": 0.3, "debtToEquity": 0.8, "equityRatio": 0.6,
		"assetTurnover": 1.2, "workingCapitalRatio": 1.8, "receivablesTurnover": 6.0,
		"grossMargin": 0.4, "ebitdaMargin": 0.2, "returnOnAssets": 0.1, "returnOnEquity": 0.15,
	})

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-y", "company-y", 150000.0, "", "2025-01-09T00:00:00Z"},
		))
	mock.ExpectQuery("SELECT score, band FROM risk_assessments").
		WithArgs("company-y").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT covenant_ratios FROM companies").
		WithArgs("company-y").
		WillReturnRows(sqlmock.NewRows([]string{"covenant_ratios"}).AddRow(ratios))

	handler := NewHandler(cfg, db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{"low"}, nil, nil, nil),
	})

	require.NoError(t, err)
	require.Len(t, output.Recommendations, 1)
	assert.Equal(t, 100, output.Recommendations[0].RiskScore)
	assert.Equal(t, "low", output.Recommendations[0].RiskBand)

	// fresh evaluation is cached for subsequent runs
	assert.True(t, mr.Exists("risk:assessment:company-y"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_FetchesLenderProfile(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	seedAssessment(t, mr, "company-a", 85, "low")

	bands, _ := json.Marshal([]string{"low"})
	sectors, _ := json.Marshal([]string{})

	mock.ExpectQuery("SELECT id, name, accepted_bands").
		WithArgs("lender-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "accepted_bands", "min_loan_amount", "max_loan_amount", "target_sectors",
		}).AddRow("lender-1", "North Capital", bands, nil, nil, sectors))
	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-a", "company-a", 150000.0, "", "2025-01-09T00:00:00Z"},
		))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{LenderID: "lender-1"})

	require.NoError(t, err)
	assert.Equal(t, "lender-1", output.LenderID)
	assert.Len(t, output.Recommendations, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_LenderNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectQuery("SELECT id, name, accepted_bands").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{LenderID: "ghost"})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrLenderNotFound)
	assert.Nil(t, output)
}

func TestHandler_Execute_MaxResultsTruncates(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	seedAssessment(t, mr, "company-a", 85, "low")
	seedAssessment(t, mr, "company-b", 85, "low")
	seedAssessment(t, mr, "company-c", 85, "low")

	mock.ExpectQuery("SELECT id, company_id, amount, sector, created_at").
		WillReturnRows(candidateRows(
			[]driverValue{"loan-a", "company-a", 150000.0, "", "2025-01-09T00:00:00Z"},
			[]driverValue{"loan-b", "company-b", 150000.0, "", "2025-01-08T00:00:00Z"},
			[]driverValue{"loan-c", "company-c", 150000.0, "", "2025-01-07T00:00:00Z"},
		))

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		LenderProfile: lenderProfile([]string{"low"}, nil, nil, nil),
		MaxResults:    2,
	})

	require.NoError(t, err)
	assert.Len(t, output.Recommendations, 2)
	assert.Equal(t, 3, output.TotalCandidates)
}
