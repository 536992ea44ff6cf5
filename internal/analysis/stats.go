package analysis

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// errStatistic marks a per-column statistic that cannot be computed. Callers
// skip the column instead of failing the batch.
var errStatistic = errors.New("statistic undefined for column")

// quantile interpolates linearly between closest ranks (pos = q*(n-1)).
// sorted must be ascending.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func sortedCopy(vals []float64) []float64 {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	return cp
}

// IQRBounds returns the Tukey fences [Q1-1.5*IQR, Q3+1.5*IQR].
func IQRBounds(vals []float64) (lower, upper float64, err error) {
	if len(vals) == 0 {
		return 0, 0, errStatistic
	}
	s := sortedCopy(vals)
	q1, q3 := quantile(s, 0.25), quantile(s, 0.75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr, nil
}

// skewness is the adjusted Fisher-Pearson sample skewness. It needs at least
// three values and non-zero variance.
func skewness(vals []float64) (float64, error) {
	if len(vals) < 3 {
		return 0, errStatistic
	}
	s := stat.Skew(vals, nil)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, errStatistic
	}
	return s, nil
}

// pearson returns the correlation of two aligned samples.
func pearson(x, y []float64) (float64, error) {
	if len(x) < 2 || len(x) != len(y) {
		return 0, errStatistic
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, errStatistic
	}
	return r, nil
}

// Quantiles returns the requested quantiles of vals (unsorted input is fine).
func Quantiles(vals []float64, qs ...float64) []float64 {
	s := sortedCopy(vals)
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = quantile(s, q)
	}
	return out
}
