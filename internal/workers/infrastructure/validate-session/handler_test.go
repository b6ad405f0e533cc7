// internal/workers/infrastructure/validate-session/handler_test.go
package validatesession

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"lendmarket-workers/internal/common/auth"
	"lendmarket-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: 5 * time.Minute,
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

type stubValidator struct {
	info *auth.TokenInfo
	err  error
}

func (s *stubValidator) ValidateToken(_ context.Context, _ string) (*auth.TokenInfo, error) {
	return s.info, s.err
}

func seedSession(t *testing.T, mr *miniredis.Miniredis, token string, s session) {
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, mr.Set("session:"+token, string(data)))
}

func TestHandler_Execute_CachedSession(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	seedSession(t, mr, "tok-1", session{UserID: "user-1", Role: "lender", ExpiresAt: expiry})

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SessionToken: "tok-1"})

	require.NoError(t, err)
	assert.True(t, output.Valid)
	assert.Equal(t, "user-1", output.UserID)
	assert.Equal(t, "lender", output.Role)
}

func TestHandler_Execute_DatabaseFallbackCaches(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	mock.ExpectQuery("SELECT user_id, role, expires_at FROM sessions").
		WithArgs("tok-2").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role", "expires_at"}).
			AddRow("user-2", "borrower", expiry))

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SessionToken: "tok-2"})

	require.NoError(t, err)
	assert.True(t, output.Valid)
	assert.Equal(t, "borrower", output.Role)
	assert.True(t, mr.Exists("session:tok-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ExpiredSession(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()
	rdb, mr := setupTestRedis(t)

	expiry := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	seedSession(t, mr, "tok-old", session{UserID: "user-1", Role: "lender", ExpiresAt: expiry})

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SessionToken: "tok-old"})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, output)
}

func TestHandler_Execute_BearerTokenIntrospection(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectQuery("SELECT user_id, role, expires_at FROM sessions").
		WithArgs("jwt-token").
		WillReturnError(sql.ErrNoRows)

	validator := &stubValidator{info: &auth.TokenInfo{Active: true, Username: "ana"}}
	handler := NewHandler(createTestConfig(), db, rdb, validator, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SessionToken: "jwt-token"})

	require.NoError(t, err)
	assert.True(t, output.Valid)
	assert.Equal(t, "ana", output.UserID)
	assert.Equal(t, "bearer", output.Role)
}

func TestHandler_Execute_UnknownToken(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectQuery("SELECT user_id, role, expires_at FROM sessions").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	validator := &stubValidator{info: &auth.TokenInfo{Active: false}}
	handler := NewHandler(createTestConfig(), db, rdb, validator, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SessionToken: "ghost"})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Nil(t, output)
}

func TestHandler_Execute_MissingToken(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Nil(t, output)
}
