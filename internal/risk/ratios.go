package risk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDataUnavailable marks a company whose stored covenant-ratio JSON is
// missing or unparseable. Callers must treat this as "risk unknown" and
// exclude the company from band-filtered results rather than guessing.
var ErrDataUnavailable = errors.New("DATA_UNAVAILABLE")

// CovenantRatios is the typed view of a company's stored ratio blob. The
// blob is free-form JSON written by the ingestion pipeline; only top-level
// numeric fields become metrics, everything else is ignored so a check
// against a non-numeric value fails closed.
type CovenantRatios struct {
	metrics map[string]float64
}

func ParseCovenantRatios(raw []byte) (*CovenantRatios, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty covenant ratio document", ErrDataUnavailable)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	metrics := make(map[string]float64, len(doc))
	for name, value := range doc {
		if f, ok := value.(float64); ok {
			metrics[name] = f
		}
	}

	return &CovenantRatios{metrics: metrics}, nil
}

// Metric returns the named ratio and whether it was present and numeric.
func (c *CovenantRatios) Metric(name string) (float64, bool) {
	v, ok := c.metrics[name]
	return v, ok
}

func (c *CovenantRatios) Len() int {
	return len(c.metrics)
}
