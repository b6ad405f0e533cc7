// internal/workers/company/search-companies/queries/builders.go
package queries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrUnknownQueryType = errors.New("unknown query type")
	ErrMissingIndex     = errors.New("index name is required")
)

// CompanySearch describes one directory search request.
type CompanySearch struct {
	Index      string
	QueryType  string
	Keywords   string
	Sector     string
	Country    string
	RiskBands  []string
	AmountMin  float64
	AmountMax  float64
	CompanyID  string
	Pagination struct {
		From int
		Size int
	}
}

// BuildQuery assembles the search request for a query type.
func BuildQuery(cs CompanySearch) (*esapi.SearchRequest, error) {
	if cs.Index == "" {
		return nil, ErrMissingIndex
	}

	var queryBody map[string]interface{}

	switch cs.QueryType {
	case "company_directory":
		queryBody = buildDirectoryQuery(cs)
	case "similar_companies":
		queryBody = buildSimilarCompaniesQuery(cs)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueryType, cs.QueryType)
	}

	body, err := json.Marshal(queryBody)
	if err != nil {
		return nil, err
	}

	return &esapi.SearchRequest{
		Index: []string{cs.Index},
		Body:  bytes.NewReader(body),
		From:  &cs.Pagination.From,
		Size:  &cs.Pagination.Size,
	}, nil
}

func buildDirectoryQuery(cs CompanySearch) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	if cs.Keywords != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  cs.Keywords,
				"fields": []string{"name^3", "description^2", "sector"},
				"type":   "best_fields",
			},
		})
	}

	if cs.Sector != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"sector": cs.Sector},
		})
	}

	if cs.Country != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"country": cs.Country},
		})
	}

	if len(cs.RiskBands) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{"risk_band": cs.RiskBands},
		})
	}

	if cs.AmountMin > 0 || cs.AmountMax > 0 {
		bounds := map[string]interface{}{}
		if cs.AmountMin > 0 {
			bounds["gte"] = cs.AmountMin
		}
		if cs.AmountMax > 0 {
			bounds["lte"] = cs.AmountMax
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"requested_amount": bounds},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(mustClauses) > 0 {
		boolQuery["must"] = mustClauses
	}
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}
	if len(boolQuery) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

// buildSimilarCompaniesQuery returns peers from the same sector,
// excluding the company itself.
func buildSimilarCompaniesQuery(cs CompanySearch) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"filter": []interface{}{
			map[string]interface{}{
				"term": map[string]interface{}{"sector": cs.Sector},
			},
		},
	}

	if cs.CompanyID != "" {
		boolQuery["must_not"] = []interface{}{
			map[string]interface{}{
				"ids": map[string]interface{}{"values": []string{cs.CompanyID}},
			},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}
