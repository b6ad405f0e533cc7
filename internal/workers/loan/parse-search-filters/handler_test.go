// internal/workers/loan/parse-search-filters/handler_test.go
package parsesearchfilters

import (
	"context"
	"testing"
	"time"

	"lendmarket-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:         5 * time.Second,
		DefaultPageSize: 20,
		MaxPageSize:     100,
		MaxAmount:       5000000,
	}
}

func newTestHandler(t *testing.T) *Handler {
	return NewHandler(createTestConfig(), logger.NewTestLogger(t))
}

func TestHandler_Execute_Defaults(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Empty(t, output.ParsedFilters.Sectors)
	assert.Empty(t, output.ParsedFilters.RiskBands)
	assert.Equal(t, "relevance", output.ParsedFilters.SortBy)
	assert.Equal(t, 1, output.ParsedFilters.Pagination.Page)
	assert.Equal(t, 20, output.ParsedFilters.Pagination.Size)
	assert.Equal(t, 0.0, output.ParsedFilters.AmountRange.Min)
	assert.Equal(t, 5000000.0, output.ParsedFilters.AmountRange.Max)
	assert.Empty(t, output.Warnings)
}

func TestHandler_Execute_ParsesFullFilterSet(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		RawFilters: map[string]interface{}{
			"sectors":   []interface{}{"retail", "logistics"},
			"riskBands": "low, medium",
			"amountRange": map[string]interface{}{
				"min": 50000.0,
				"max": 250000.0,
			},
			"keywords": "  equipment financing ",
			"sortBy":   "amount",
			"pagination": map[string]interface{}{
				"page": 2.0,
				"size": 50.0,
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"retail", "logistics"}, output.ParsedFilters.Sectors)
	assert.Equal(t, []string{"low", "medium"}, output.ParsedFilters.RiskBands)
	assert.Equal(t, 50000.0, output.ParsedFilters.AmountRange.Min)
	assert.Equal(t, 250000.0, output.ParsedFilters.AmountRange.Max)
	assert.Equal(t, "equipment financing", output.ParsedFilters.Keywords)
	assert.Equal(t, "amount", output.ParsedFilters.SortBy)
	assert.Equal(t, 2, output.ParsedFilters.Pagination.Page)
	assert.Equal(t, 50, output.ParsedFilters.Pagination.Size)
	assert.Empty(t, output.Warnings)
}

func TestHandler_Execute_DropsUnknownFragmentsWithWarnings(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		RawFilters: map[string]interface{}{
			"sectors":   []interface{}{"retail", "crypto"},
			"riskBands": []interface{}{"low", "extreme"},
			"sortBy":    "profitability",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"retail"}, output.ParsedFilters.Sectors)
	assert.Equal(t, []string{"low"}, output.ParsedFilters.RiskBands)
	assert.Equal(t, "relevance", output.ParsedFilters.SortBy)
	assert.Len(t, output.Warnings, 3)
}

func TestHandler_Execute_InvertedAmountRangeReset(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		RawFilters: map[string]interface{}{
			"amountRange": map[string]interface{}{
				"min": 300000.0,
				"max": 100000.0,
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 0.0, output.ParsedFilters.AmountRange.Min)
	assert.Equal(t, 5000000.0, output.ParsedFilters.AmountRange.Max)
	assert.NotEmpty(t, output.Warnings)
}

func TestHandler_Execute_CurrencyStringAmounts(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		RawFilters: map[string]interface{}{
			"amountRange": map[string]interface{}{
				"min": "$50,000",
				"max": "USD 250,000.00",
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 50000.0, output.ParsedFilters.AmountRange.Min)
	assert.Equal(t, 250000.0, output.ParsedFilters.AmountRange.Max)
}

func TestHandler_Execute_PageSizeCapped(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		RawFilters: map[string]interface{}{
			"pagination": map[string]interface{}{
				"size": 500.0,
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 100, output.ParsedFilters.Pagination.Size)
}

func TestHandler_Execute_CommaSeparatedDeduplicated(t *testing.T) {
	output, err := newTestHandler(t).Execute(context.Background(), &Input{
		RawFilters: map[string]interface{}{
			"sectors": "retail, retail , healthcare",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"retail", "healthcare"}, output.ParsedFilters.Sectors)
}
