// internal/workers/company/search-companies/handler_test.go
package searchcompanies

import (
	"context"
	"testing"
	"time"

	"lendmarket-workers/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
		Index:   "companies",
	}
}

func createTestClient(t *testing.T) *elasticsearch.Client {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
	})
	require.NoError(t, err)
	return client
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), createTestClient(t), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), nil)

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchQueryFailed)
	assert.Nil(t, output)
}

func TestHandler_Execute_MissingIndex(t *testing.T) {
	cfg := createTestConfig()
	cfg.Index = ""
	handler := NewHandler(cfg, createTestClient(t), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Keywords: "bakery"})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexNotFound)
	assert.Nil(t, output)
}

func TestHandler_Execute_AgainstLiveCluster(t *testing.T) {
	client := createTestClient(t)
	res, err := client.Info()
	if err != nil {
		t.Skipf("skipping: elasticsearch not reachable: %v", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		t.Skipf("skipping: elasticsearch error: %s", res.String())
	}

	handler := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Keywords:  "bakery",
		RiskBands: []string{"low"},
	})

	require.NoError(t, err)
	assert.NotNil(t, output)
	assert.GreaterOrEqual(t, output.TotalHits, int64(0))
}
