package risk

import "math"

type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

type Category string

const (
	CategoryLiquidity     Category = "liquidity"
	CategorySolvency      Category = "solvency"
	CategoryEfficiency    Category = "efficiency"
	CategoryProfitability Category = "profitability"
)

// Band cut points over the aggregate score. Single source of truth: every
// worker that bands a score goes through BandFor.
const (
	lowBandMinScore    = 70
	mediumBandMinScore = 40
)

type op byte

const (
	opGreater op = '>'
	opLess    op = '<'
)

type check struct {
	metric    string
	op        op
	threshold float64
	category  Category
}

// The fixed covenant check table. A check passes when the stored metric is
// present, numeric, and satisfies the comparison; anything else fails.
var checks = []check{
	{"currentRatio", opGreater, 1.2, CategoryLiquidity},
	{"quickRatio", opGreater, 0.9, CategoryLiquidity},
	{"cashRatio", opGreater, 0.2, CategoryLiquidity},

	{"debtRatio", opLess, 0.6, CategorySolvency},
	{"debtToEquity", opLess, 2.0, CategorySolvency},
	{"equityRatio", opGreater, 0.3, CategorySolvency},

	{"assetTurnover", opGreater, 0.5, CategoryEfficiency},
	{"workingCapitalRatio", opGreater, 1.0, CategoryEfficiency},
	{"receivablesTurnover", opGreater, 4.0, CategoryEfficiency},

	{"grossMargin", opGreater, 0.2, CategoryProfitability},
	{"ebitdaMargin", opGreater, 0.1, CategoryProfitability},
	{"returnOnAssets", opGreater, 0.05, CategoryProfitability},
	{"returnOnEquity", opGreater, 0.08, CategoryProfitability},
}

var categories = []Category{
	CategoryLiquidity,
	CategorySolvency,
	CategoryEfficiency,
	CategoryProfitability,
}

// Assessment is the derived risk view of a company: an aggregate score, its
// band, and the per-category pass percentages the score was built from.
type Assessment struct {
	Score          int              `json:"score"`
	Band           Band             `json:"band"`
	CategoryScores map[Category]int `json:"categoryScores"`
}

// Evaluate runs the fixed check table over the company's covenant ratios.
// Pure and deterministic: the same ratios always produce the same
// assessment.
func Evaluate(ratios *CovenantRatios) Assessment {
	passed := make(map[Category]int)
	total := make(map[Category]int)

	for _, c := range checks {
		total[c.category]++
		value, ok := ratios.Metric(c.metric)
		if !ok {
			continue
		}
		switch c.op {
		case opGreater:
			if value > c.threshold {
				passed[c.category]++
			}
		case opLess:
			if value < c.threshold {
				passed[c.category]++
			}
		}
	}

	categoryScores := make(map[Category]int, len(categories))
	sum := 0.0
	for _, cat := range categories {
		pct := int(math.Round(float64(passed[cat]) / float64(total[cat]) * 100))
		categoryScores[cat] = pct
		sum += float64(pct)
	}

	score := int(math.Round(sum / float64(len(categories))))

	return Assessment{
		Score:          score,
		Band:           BandFor(score),
		CategoryScores: categoryScores,
	}
}

// BandFor maps an aggregate score to its band. Monotonic: a higher score
// never yields a worse band.
func BandFor(score int) Band {
	switch {
	case score >= lowBandMinScore:
		return BandLow
	case score >= mediumBandMinScore:
		return BandMedium
	default:
		return BandHigh
	}
}

// ValidBand reports whether s names one of the three bands.
func ValidBand(s string) bool {
	switch Band(s) {
	case BandLow, BandMedium, BandHigh:
		return true
	}
	return false
}
