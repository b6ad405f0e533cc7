package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccepts(t *testing.T) {
	tests := []struct {
		name     string
		appetite []string
		band     Band
		want     bool
	}{
		{"member", []string{"low", "medium"}, BandMedium, true},
		{"not member", []string{"low", "medium"}, BandHigh, false},
		{"single band", []string{"high"}, BandHigh, true},
		{"empty set rejects low", nil, BandLow, false},
		{"empty set rejects medium", []string{}, BandMedium, false},
		{"empty set rejects high", []string{}, BandHigh, false},
		{"malformed entries ignored", []string{"LOW", "moderate", ""}, BandLow, false},
		{"malformed beside valid", []string{"bogus", "high"}, BandHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accepts(tt.appetite, tt.band))
		})
	}
}
