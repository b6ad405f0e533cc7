package risk

import "math"

const (
	appetiteWeight  = 0.7
	proximityWeight = 0.3
)

var bandAppetiteScore = map[Band]float64{
	BandLow:    1.0,
	BandMedium: 0.6,
	BandHigh:   0.2,
}

// AppetiteScore maps a band to the scalar used in match scoring.
func AppetiteScore(band Band) float64 {
	return bandAppetiteScore[band]
}

// AmountProximity scores how close a requested amount sits to the midpoint
// of the lender's declared range, in [0, 1]. With no declared center (one or
// both bounds absent) the midpoint is the requested amount itself, so the
// proximity is 1 and the score collapses to the appetite component alone.
func AmountProximity(amount float64, min, max *float64) float64 {
	midpoint := amount
	if min != nil && max != nil {
		midpoint = (*min + *max) / 2
	}
	if midpoint == 0 {
		return 0
	}
	return 1 - math.Min(1, math.Abs(amount-midpoint)/midpoint)
}

// MatchScore combines the appetite scalar with amount proximity into the
// composite used to rank candidates.
func MatchScore(band Band, amount float64, min, max *float64) float64 {
	return appetiteWeight*AppetiteScore(band) + proximityWeight*AmountProximity(amount, min, max)
}

// AmountWithin applies the lender's amount bounds, both inclusive; a nil
// bound is unbounded on that side.
func AmountWithin(amount float64, min, max *float64) bool {
	if min != nil && amount < *min {
		return false
	}
	if max != nil && amount > *max {
		return false
	}
	return true
}

// SectorAccepted applies a lender's target-sector filter. No declared
// sectors, or an unknown candidate sector, makes the filter a no-op.
func SectorAccepted(targets []string, sector string) bool {
	if len(targets) == 0 || sector == "" {
		return true
	}
	for _, t := range targets {
		if t == sector {
			return true
		}
	}
	return false
}
