// internal/workers/company/search-companies/queries/builders_test.go
package queries

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&decoded))
	return decoded
}

func TestBuildQuery_MissingIndex(t *testing.T) {
	_, err := BuildQuery(CompanySearch{QueryType: "company_directory"})
	assert.ErrorIs(t, err, ErrMissingIndex)
}

func TestBuildQuery_UnknownQueryType(t *testing.T) {
	_, err := BuildQuery(CompanySearch{Index: "companies", QueryType: "top_secret"})
	assert.ErrorIs(t, err, ErrUnknownQueryType)
}

func TestBuildQuery_DirectoryMatchAllWhenEmpty(t *testing.T) {
	req, err := BuildQuery(CompanySearch{Index: "companies", QueryType: "company_directory"})
	require.NoError(t, err)

	body := decodeBody(t, req.Body)
	query := body["query"].(map[string]interface{})
	assert.Contains(t, query, "match_all")
}

func TestBuildQuery_DirectoryKeywordsAndFilters(t *testing.T) {
	cs := CompanySearch{
		Index:     "companies",
		QueryType: "company_directory",
		Keywords:  "bakery",
		Sector:    "retail",
		RiskBands: []string{"low", "medium"},
		AmountMax: 250000,
	}
	req, err := BuildQuery(cs)
	require.NoError(t, err)
	assert.Equal(t, []string{"companies"}, req.Index)

	body := decodeBody(t, req.Body)
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})

	must := boolQuery["must"].([]interface{})
	require.Len(t, must, 1)
	multiMatch := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "bakery", multiMatch["query"])

	filters := boolQuery["filter"].([]interface{})
	assert.Len(t, filters, 3) // sector term, risk band terms, amount range
}

func TestBuildQuery_SimilarCompaniesExcludesSelf(t *testing.T) {
	cs := CompanySearch{
		Index:     "companies",
		QueryType: "similar_companies",
		Sector:    "manufacturing",
		CompanyID: "company-1",
	}
	req, err := BuildQuery(cs)
	require.NoError(t, err)

	body := decodeBody(t, req.Body)
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})

	mustNot := boolQuery["must_not"].([]interface{})
	require.Len(t, mustNot, 1)
	ids := mustNot[0].(map[string]interface{})["ids"].(map[string]interface{})
	assert.Equal(t, []interface{}{"company-1"}, ids["values"])
}
