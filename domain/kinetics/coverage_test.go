package kinetics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeValue(t *testing.T) {
	const eps = 1e-9

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"negative noise", -3.2e-14, 0},
		{"below epsilon", 1e-12, 0},
		{"normal", 0.42, 0.42},
		{"above cap", 1.7, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeValue(tt.in, eps, 1.0))
		})
	}
}

func TestSnapshot_Sanitize(t *testing.T) {
	snap := CoverageSnapshot{"CO*": -1e-15, "OH*": 0.3, "H*": 2.0}
	got := snap.Sanitize(1e-9, 1.0)

	assert.Equal(t, 0.0, got["CO*"])
	assert.Equal(t, 0.3, got["OH*"])
	assert.Equal(t, 1.0, got["H*"])
	// original untouched
	assert.Equal(t, -1e-15, snap["CO*"])
}

func TestSnapshot_Rebalance(t *testing.T) {
	snap := CoverageSnapshot{"CO*": 0.3, "OH*": 0.2, "*": 0.9}
	got := snap.Rebalance([]string{"CO*", "OH*"}, 1e-9, 1.0)

	assert.InDelta(t, 0.5, got["*"], 1e-12)
	assert.Equal(t, 0.3, got["CO*"])
	assert.Equal(t, 0.2, got["OH*"])
}

func TestSnapshot_Rebalance_Oversaturated(t *testing.T) {
	// numerical noise can push the occupied total past one; the free site
	// must never go negative
	snap := CoverageSnapshot{"CO*": 0.8, "OH*": 0.4}
	got := snap.Rebalance([]string{"CO*", "OH*"}, 1e-9, 1.0)

	assert.Equal(t, 0.0, got["*"])
}

func TestSnapshot_Clone(t *testing.T) {
	snap := CoverageSnapshot{"CO*": 0.5}
	clone := snap.Clone()
	clone["CO*"] = 0.1

	assert.Equal(t, 0.5, snap["CO*"])
}
