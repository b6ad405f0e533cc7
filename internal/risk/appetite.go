package risk

// Accepts reports whether a computed band is inside a lender's declared
// appetite. Pure set membership: no ordering preference between bands. An
// empty or malformed appetite set rejects every band, never the reverse.
func Accepts(appetite []string, band Band) bool {
	if len(appetite) == 0 {
		return false
	}
	for _, a := range appetite {
		if !ValidBand(a) {
			continue
		}
		if Band(a) == band {
			return true
		}
	}
	return false
}
