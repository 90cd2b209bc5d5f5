package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 100},
		{"abc", "", 0},
		{"abcd", "abcd", 100},
		{"abcd", "abce", 75},
		{"kitten", "sitting", 100 * 8.0 / 13.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, Ratio(tt.b, tt.a), 1e-9)
		})
	}
}

func TestTokenSortRatio(t *testing.T) {
	assert.InDelta(t, 100, TokenSortRatio("BOLT M8 STEEL", "STEEL  BOLT M8"), 1e-9)
	assert.Less(t, TokenSortRatio("BOLT M8 STEEL", "bolt m8 steel"), 50.0)
	// "BOLT M8 STEEL" vs "BOLT M8 STEL": one deletion out of 25 runes.
	assert.InDelta(t, 100*24.0/25.0, TokenSortRatio("BOLT M8 STEEL", "BOLT M8 STEL"), 1e-9)
}

func TestExtract(t *testing.T) {
	choices := []string{"PUMP SEAL KIT", "PUMP SEAL KITT", "GASKET", "SEAL KIT PUMP"}
	got := Extract("PUMP SEAL KIT", choices, TokenSortRatio, 3)
	require.Len(t, got, 3)
	assert.Equal(t, Match{Choice: "PUMP SEAL KIT", Score: 100, Index: 0}, got[0])
	assert.Equal(t, "SEAL KIT PUMP", got[1].Choice)
	assert.Equal(t, "PUMP SEAL KITT", got[2].Choice)

	assert.Len(t, Extract("x", choices, nil, 0), 4)
}
