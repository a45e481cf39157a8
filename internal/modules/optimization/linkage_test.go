package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkage(t *testing.T) {
	testCases := []struct {
		input    string
		expected Linkage
		wantErr  bool
	}{
		{"", LinkageWard, false},
		{"ward", LinkageWard, false},
		{" Single ", LinkageSingle, false},
		{"COMPLETE", LinkageComplete, false},
		{"average", LinkageAverage, false},
		{"centroid", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseLinkage(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestLinkageUpdate(t *testing.T) {
	// k is 0.2 from i and 0.6 from j; i and j are 0.4 apart.
	assert.Equal(t, 0.2, LinkageSingle.update(0.2, 0.6, 0.4, 1, 1, 1))
	assert.Equal(t, 0.6, LinkageComplete.update(0.2, 0.6, 0.4, 1, 1, 1))
	assert.InDelta(t, (2*0.2+1*0.6)/3, LinkageAverage.update(0.2, 0.6, 0.4, 2, 1, 1), 1e-15)

	ward := LinkageWard.update(0.2, 0.6, 0.4, 1, 1, 1)
	assert.InDelta(t, math.Sqrt((2*0.04+2*0.36-0.16)/3), ward, 1e-15)

	// Ward never goes negative under the square root.
	assert.Equal(t, 0.0, LinkageWard.update(0, 0, 10, 1, 1, 1))
}
