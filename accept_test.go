package lahc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccept(t *testing.T) {
	tests := []struct {
		name                          string
		current, candidate, threshold float64
		mode                          Comparison
		want                          bool
	}{
		{"better than current", 10, 9, 5, CompareNonStrict, true},
		{"equal to current", 10, 10, 5, CompareNonStrict, true},
		{"worse than both", 10, 11, 5, CompareNonStrict, false},
		{"late acceptance", 10, 11, 12, CompareNonStrict, true},
		{"equal to threshold", 10, 12, 12, CompareNonStrict, true},
		{"equal to threshold strict", 10, 12, 12, CompareStrictHistory, false},
		{"below threshold strict", 10, 11, 12, CompareStrictHistory, true},
		{"equal to current strict", 10, 10, 5, CompareStrictHistory, true},
		{"empty mode is non-strict", 10, 12, 12, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accept(tt.current, tt.candidate, tt.threshold, tt.mode))
		})
	}
}

func TestParseComparison(t *testing.T) {
	c, err := ParseComparison("")
	require.NoError(t, err)
	assert.Equal(t, CompareNonStrict, c)

	c, err = ParseComparison("strict-history")
	require.NoError(t, err)
	assert.Equal(t, CompareStrictHistory, c)

	_, err = ParseComparison("lenient")
	assert.ErrorIs(t, err, ErrConfiguration)
}
