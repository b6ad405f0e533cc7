// internal/workers/company/search-companies/queries/registry.go
package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

type SearchResult struct {
	Hits      []map[string]interface{}
	TotalHits int64
	MaxScore  float64
	Took      int64
}

func Execute(ctx context.Context, esClient *elasticsearch.Client, cs CompanySearch) (*SearchResult, error) {
	if cs.Pagination.Size < 1 {
		cs.Pagination.Size = 20
	}
	if cs.Pagination.Size > 100 {
		cs.Pagination.Size = 100
	}

	req, err := BuildQuery(cs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	hits, ok := r["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected response shape")
	}
	total := 0.0
	if t, ok := hits["total"].(map[string]interface{}); ok {
		if v, ok := t["value"].(float64); ok {
			total = v
		}
	}
	maxScore := 0.0
	if ms, ok := hits["max_score"].(float64); ok {
		maxScore = ms
	}

	var data []map[string]interface{}
	if hitList, ok := hits["hits"].([]interface{}); ok {
		for _, hit := range hitList {
			if m, ok := hit.(map[string]interface{}); ok {
				if source, ok := m["_source"].(map[string]interface{}); ok {
					if id, ok := m["_id"].(string); ok {
						source["id"] = id
					}
					data = append(data, source)
				}
			}
		}
	}

	return &SearchResult{
		Hits:      data,
		TotalHits: int64(total),
		MaxScore:  maxScore,
		Took:      time.Since(start).Milliseconds(),
	}, nil
}
