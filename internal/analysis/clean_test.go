package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messy = "name,score,city\nann,1,Oslo\nbob,,Rome\ncid,3,\ndan,8,Oslo\n"

func TestCleanDrop(t *testing.T) {
	tb := csvTable(t, messy)
	out, res, err := Clean(tb, CleanOptions{Method: CleanDrop})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsDropped)
	assert.Equal(t, []string{"ann", "dan"}, out.Column(0))
	assert.Equal(t, 4, tb.NumRows(), "input must not be modified")

	out, res, err = Clean(tb, CleanOptions{Method: CleanDrop, Columns: []string{"city"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsDropped)
	assert.Equal(t, []string{"ann", "bob", "dan"}, out.Column(0))
}

func TestCleanMeanAndMedianSkipNonNumeric(t *testing.T) {
	tb := csvTable(t, messy)
	out, res, err := Clean(tb, CleanOptions{Method: CleanMean})
	require.NoError(t, err)
	assert.Equal(t, "4", out.Rows[1][1])
	assert.Equal(t, "", out.Rows[2][2], "categorical column is left alone by mean")
	assert.ElementsMatch(t, []string{"name", "city"}, res.Skipped)
	assert.Equal(t, 1, res.CellsFilled)

	out, _, err = Clean(tb, CleanOptions{Method: CleanMedian, Columns: []string{"score"}})
	require.NoError(t, err)
	assert.Equal(t, "3", out.Rows[1][1])
}

func TestCleanModeAndValue(t *testing.T) {
	tb := csvTable(t, messy)
	out, _, err := Clean(tb, CleanOptions{Method: CleanMode, Columns: []string{"city", "score"}})
	require.NoError(t, err)
	assert.Equal(t, "Oslo", out.Rows[2][2])
	// scores 1,3,8 tie: smallest wins
	assert.Equal(t, "1", out.Rows[1][1])

	out, res, err := Clean(tb, CleanOptions{Method: CleanValue, Value: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CellsFilled)
	assert.Equal(t, "unknown", out.Rows[1][1])
	assert.Equal(t, "unknown", out.Rows[2][2])

	_, _, err = Clean(tb, CleanOptions{Method: CleanValue})
	assert.Error(t, err)
}

func TestCleanUnknownColumn(t *testing.T) {
	_, _, err := Clean(csvTable(t, messy), CleanOptions{Method: CleanDrop, Columns: []string{"nope"}})
	assert.ErrorContains(t, err, "nope")
}

func TestParseCleanMethod(t *testing.T) {
	m, err := ParseCleanMethod(" Median ")
	require.NoError(t, err)
	assert.Equal(t, CleanMedian, m)
	_, err = ParseCleanMethod("interpolate")
	assert.Error(t, err)
}

func TestCapOutliers(t *testing.T) {
	tb := numericTable(t, []string{"v"}, []float64{1, 2, 2, 3, 3, 3, 4, 4, 100})
	out, res, err := CapOutliers(tb, "v")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Handled)
	assert.Equal(t, "Handled 1 outliers in v", res.String())
	assert.Equal(t, "7", out.Rows[8][0])
	assert.Equal(t, "100", tb.Rows[8][0])

	_, _, err = CapOutliers(csvTable(t, messy), "city")
	assert.ErrorContains(t, err, "not numeric")
}

func TestNormalize(t *testing.T) {
	tb := csvTable(t, "a,b,c\n0,2,x\n5,2,y\n10,2,z\n,2,w\n")
	out, err := Normalize(tb, nil, NormalizeMinMax)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "0.5", "1", ""}, out.Column(0))
	assert.Equal(t, []string{"0", "0", "0", "0"}, out.Column(1))
	assert.Equal(t, []string{"x", "y", "z", "w"}, out.Column(2))

	out, err = Normalize(tb, []string{"a"}, NormalizeStandard)
	require.NoError(t, err)
	vals, _ := out.Floats(0)
	require.Len(t, vals, 3)
	assert.InDelta(t, -1.224745, vals[0], 1e-6)
	assert.InDelta(t, 0, vals[1], 1e-9)
	assert.InDelta(t, 1.224745, vals[2], 1e-6)

	_, err = Normalize(tb, []string{"c"}, NormalizeMinMax)
	assert.ErrorContains(t, err, "not numeric")
	_, err = Normalize(tb, nil, "log")
	assert.Error(t, err)
}
