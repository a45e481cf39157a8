package historical

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPricesCSV(t *testing.T) {
	input := `date,BTC,ETH
2024-01-03,102,51
2024-01-01,100,50
2024-01-02,101,
`
	ts, err := ReadPricesCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH"}, ts.Symbols)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, ts.Dates)
	assert.Equal(t, []float64{100, 101, 102}, ts.Data["BTC"])
	assert.Equal(t, 50.0, ts.Data["ETH"][0])
	assert.True(t, math.IsNaN(ts.Data["ETH"][1]))

	filled, dropped := ts.FillMissing()
	assert.Empty(t, dropped)
	assert.Equal(t, []float64{50, 50, 51}, filled.Data["ETH"])
}

func TestReadReturnsCSV(t *testing.T) {
	input := `date,A,B,C
# comment lines are ignored
2024-01-01,0.01,-0.02,0.005
2024-01-02,-0.01,0.03,NaN
`
	rm, err := ReadReturnsCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, rm.Assets)
	assert.Equal(t, 2, rm.Periods())
	assert.Equal(t, []float64{0.01, -0.01}, rm.Column("A"))
	assert.True(t, math.IsNaN(rm.Column("C")[1]))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only date", "date\n2024-01-01\n"},
		{"duplicate asset", "date,A,A\n2024-01-01,1,2\n"},
		{"empty asset name", "date,A,\n2024-01-01,1,2\n"},
		{"bad date", "date,A\n01/02/2024,1\n"},
		{"duplicate date", "date,A\n2024-01-01,1\n2024-01-01,2\n"},
		{"not a number", "date,A\n2024-01-01,abc\n"},
		{"infinite", "date,A\n2024-01-01,Inf\n"},
		{"ragged row", "date,A,B\n2024-01-01,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPricesCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCSV), "got %v", err)
		})
	}
}
