// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendmarket-workers/internal/common/config"
	"lendmarket-workers/internal/common/database"
	"lendmarket-workers/internal/common/logger"

	rlc "lendmarket-workers/internal/workers/infrastructure/rate-limit-check"
	clr "lendmarket-workers/internal/workers/loan/create-loan-request"
	fl "lendmarket-workers/internal/workers/loan/fund-loan"
	ecr "lendmarket-workers/internal/workers/risk/evaluate-company-risk"
	rle "lendmarket-workers/internal/workers/risk/recommend-lenders"
	rlo "lendmarket-workers/internal/workers/risk/recommend-loans"
)

// Runs against live PostgreSQL and Redis. Set E2E_TESTS=1 and provide the
// usual connection env vars to enable.
func setupE2E(t *testing.T) (*config.Config, *sql.DB, *goredis.Client) {
	t.Helper()

	if os.Getenv("E2E_TESTS") == "" {
		t.Skip("E2E_TESTS not set; skipping live-infrastructure tests")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	require.NoError(t, pg.Ping(context.Background()), "PostgreSQL ping failed")
	t.Cleanup(func() { pg.Close() })

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis connection failed")
	require.NoError(t, rdb.Ping(context.Background()), "Redis ping failed")
	t.Cleanup(func() { rdb.Close() })

	createSchema(t, pg.GetDB())

	return cfg, pg.GetDB(), rdb.Client
}

func createSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	// Timestamps are stored as RFC3339 strings throughout the schema.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			sector VARCHAR(100),
			covenant_ratios JSONB,
			is_active BOOLEAN DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS risk_assessments (
			company_id VARCHAR(64) PRIMARY KEY,
			score INTEGER NOT NULL,
			band VARCHAR(16) NOT NULL,
			evaluated_at VARCHAR(40)
		)`,
		`CREATE TABLE IF NOT EXISTS loan_requests (
			id VARCHAR(64) PRIMARY KEY,
			borrower_id VARCHAR(64) NOT NULL,
			company_id VARCHAR(64) NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			term_months INTEGER,
			purpose TEXT,
			sector VARCHAR(100),
			status VARCHAR(32) NOT NULL,
			created_at VARCHAR(40),
			updated_at VARCHAR(40),
			expires_at VARCHAR(40)
		)`,
		`CREATE TABLE IF NOT EXISTS lender_profiles (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			accepted_bands JSONB,
			min_loan_amount DOUBLE PRECISION,
			max_loan_amount DOUBLE PRECISION,
			target_sectors JSONB,
			contact_email VARCHAR(255),
			funded_loan_count INTEGER DEFAULT 0,
			is_active BOOLEAN DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS fundings (
			id VARCHAR(64) PRIMARY KEY,
			loan_id VARCHAR(64) NOT NULL,
			lender_id VARCHAR(64) NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			funded_at VARCHAR(40)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(32),
			first_name VARCHAR(100),
			last_name VARCHAR(100),
			role VARCHAR(32),
			status VARCHAR(32),
			external_id VARCHAR(64),
			created_at VARCHAR(40),
			updated_at VARCHAR(40)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token VARCHAR(128) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			role VARCHAR(32),
			expires_at VARCHAR(40)
		)`,
		`CREATE TABLE IF NOT EXISTS contact_messages (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255),
			email VARCHAR(255),
			subject VARCHAR(255),
			message TEXT,
			status VARCHAR(32),
			created_at VARCHAR(40)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR(64) PRIMARY KEY,
			recipient_id VARCHAR(64),
			recipient_type VARCHAR(32),
			type VARCHAR(64),
			status VARCHAR(32),
			sent_at VARCHAR(40)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id SERIAL PRIMARY KEY,
			entity_type VARCHAR(64),
			entity_id VARCHAR(64),
			action VARCHAR(64),
			actor_id VARCHAR(64),
			created_at VARCHAR(40)
		)`,
	}

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "schema setup failed")
	}
}

func seedCompany(t *testing.T, db *sql.DB, id, sector string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO companies (id, name, sector, covenant_ratios, is_active)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (id) DO UPDATE SET covenant_ratios = EXCLUDED.covenant_ratios`,
		id, "Company "+id, sector,
		`{"currentRatio": 2.1, "quickRatio": 1.4, "cashRatio": 0.5,
		  "debtRatio": 0.35, "debtToEquity": 0.8, "equityRatio": 0.55,
		  "assetTurnover": 1.1, "workingCapitalRatio": 1.6,
		  "receivablesTurnover": 6.2, "grossMargin": 0.42,
		  "ebitdaMargin": 0.18, "returnOnAssets": 0.09, "returnOnEquity": 0.15}`)
	require.NoError(t, err)
}

func seedLender(t *testing.T, db *sql.DB, id string, bands, sectors string, min, max float64) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO lender_profiles
			(id, name, accepted_bands, min_loan_amount, max_loan_amount,
			 target_sectors, contact_email, funded_loan_count, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, true)
		ON CONFLICT (id) DO NOTHING`,
		id, "Lender "+id, bands, min, max, sectors, id+"@lender.example")
	require.NoError(t, err)
}

func TestLoanJourney(t *testing.T) {
	_, db, rdb := setupE2E(t)
	log := logger.NewTestLogger(t)
	ctx := context.Background()

	run := uuid.New().String()[:8]
	companyID := "e2e-co-" + run
	borrowerID := "e2e-user-" + run
	lenderID := "e2e-lender-" + run

	seedCompany(t, db, companyID, "manufacturing")
	seedLender(t, db, lenderID, `["low","medium"]`, `["manufacturing"]`, 10000, 500000)

	// 1. Risk evaluation from covenant ratios.
	riskHandler := ecr.NewHandler(
		&ecr.Config{Timeout: 30 * time.Second, CacheTTL: time.Minute},
		db, rdb, log,
	)
	assessment, err := riskHandler.Execute(ctx, &ecr.Input{CompanyID: companyID})
	require.NoError(t, err)
	assert.Equal(t, "low", assessment.RiskBand)
	assert.GreaterOrEqual(t, assessment.RiskScore, 70)

	// 2. Borrower opens a loan request.
	createHandler := clr.NewHandler(
		&clr.Config{Timeout: 30 * time.Second, ExpiryDays: 30},
		db, log,
	)
	created, err := createHandler.Execute(ctx, &clr.Input{
		BorrowerID: borrowerID,
		CompanyID:  companyID,
		Amount:     150000,
		TermMonths: 24,
		Purpose:    "Working capital for a new production line",
		Sector:     "manufacturing",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", created.Status)

	// 3. The request surfaces for matching lenders.
	lendersHandler := rle.NewHandler(
		&rle.Config{Timeout: 30 * time.Second, CacheTTL: time.Minute, MaxCandidates: 25},
		db, rdb, log,
	)
	matches, err := lendersHandler.Execute(ctx, &rle.Input{LoanID: created.LoanID})
	require.NoError(t, err)
	assert.Equal(t, "low", matches.RiskBand)

	found := false
	for _, m := range matches.Lenders {
		if m.LenderID == lenderID {
			found = true
			assert.Greater(t, m.MatchScore, 0.0)
		}
	}
	assert.True(t, found, "seeded lender should match the request")

	// 4. And from the lender's side, the request is recommended.
	loansHandler := rlo.NewHandler(
		&rlo.Config{
			Timeout:               30 * time.Second,
			CacheTTL:              time.Minute,
			EnrichmentConcurrency: 5,
			MaxCandidates:         25,
		},
		db, rdb, log,
	)
	recs, err := loansHandler.Execute(ctx, &rlo.Input{LenderID: lenderID})
	require.NoError(t, err)

	found = false
	for _, r := range recs.Recommendations {
		if r.LoanID == created.LoanID {
			found = true
		}
	}
	assert.True(t, found, "new request should appear in lender recommendations")

	// 5. The lender funds it.
	fundHandler := fl.NewHandler(&fl.Config{Timeout: 30 * time.Second}, db, log)
	funded, err := fundHandler.Execute(ctx, &fl.Input{
		LoanID:   created.LoanID,
		LenderID: lenderID,
		Amount:   150000,
	})
	require.NoError(t, err)
	assert.Equal(t, "funded", funded.Status)
	assert.NotEmpty(t, funded.FundingID)

	// 6. Funding is terminal: a second attempt is rejected.
	_, err = fundHandler.Execute(ctx, &fl.Input{
		LoanID:   created.LoanID,
		LenderID: lenderID,
		Amount:   150000,
	})
	assert.ErrorIs(t, err, fl.ErrLoanNotFundable)

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM loan_requests WHERE id = $1`,
		created.LoanID).Scan(&status))
	assert.Equal(t, "funded", status)
}

func TestRateLimitWindow(t *testing.T) {
	_, _, rdb := setupE2E(t)
	log := logger.NewTestLogger(t)
	ctx := context.Background()

	handler := rlc.NewHandler(
		&rlc.Config{Timeout: 10 * time.Second, RequestsPerWindow: 3, Window: 2 * time.Second},
		rdb, log,
	)

	clientID := "e2e-client-" + uuid.New().String()[:8]
	for i := 0; i < 3; i++ {
		out, err := handler.Execute(ctx, &rlc.Input{ClientID: clientID})
		require.NoError(t, err)
		assert.True(t, out.Allowed, fmt.Sprintf("request %d should be allowed", i+1))
	}

	out, err := handler.Execute(ctx, &rlc.Input{ClientID: clientID})
	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.Positive(t, out.RetryAfter)

	time.Sleep(2500 * time.Millisecond)

	out, err = handler.Execute(ctx, &rlc.Input{ClientID: clientID})
	require.NoError(t, err)
	assert.True(t, out.Allowed, "window expiry should reset the counter")
}
