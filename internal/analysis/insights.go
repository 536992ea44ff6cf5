package analysis

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

// InsightKind names the heuristic that produced an insight.
type InsightKind string

const (
	InsightMissing        InsightKind = "missing"
	InsightSkew           InsightKind = "skew"
	InsightOutliers       InsightKind = "outliers"
	InsightConstant       InsightKind = "constant"
	InsightLowCardinality InsightKind = "low_cardinality"
	InsightImbalance      InsightKind = "imbalance"
	InsightDateSpan       InsightKind = "date_span"
	InsightCorrelation    InsightKind = "correlation"
)

// Thresholds used by the heuristics.
const (
	SkewThreshold        = 1.0
	ImbalanceShare       = 0.80
	LowCardinalityLimit  = 5
	CorrelationThreshold = 0.70
)

// Insight is one generated observation together with the statistic behind it.
type Insight struct {
	Kind    InsightKind `json:"kind"`
	Columns []string    `json:"columns,omitempty"`
	Text    string      `json:"text"`
	Value   float64     `json:"value"`
}

func (i Insight) String() string { return i.Text }

// Texts flattens insights to their sentences.
func Texts(in []Insight) []string {
	out := make([]string, len(in))
	for i, x := range in {
		out[i] = x.Text
	}
	return out
}

// Insights scans the profiled columns. Order: dataset missing values, numeric
// columns, categorical columns, date spans, then correlations between numeric
// pairs. A column whose statistic cannot be computed contributes nothing.
func Insights(t *dataset.Table, p *Profile) []Insight {
	var out []Insight
	if p.MissingValuesPct > 0 {
		out = append(out, Insight{
			Kind:  InsightMissing,
			Text:  fmt.Sprintf("Dataset contains %.2f%% missing values.", p.MissingValuesPct),
			Value: p.MissingValuesPct,
		})
	}
	for _, col := range p.Numerical {
		out = append(out, numericInsights(t, col)...)
	}
	for _, col := range p.Categorical {
		out = append(out, categoricalInsights(t, col)...)
	}
	for _, col := range p.Datetime {
		if in, ok := dateSpanInsight(t, col); ok {
			out = append(out, in)
		}
	}
	out = append(out, correlationInsights(t, p.Numerical)...)
	return out
}

func numericInsights(t *dataset.Table, col string) []Insight {
	i := t.ColumnIndex(col)
	if i < 0 {
		return nil
	}
	vals, _ := t.Floats(i)
	var out []Insight
	if s, err := skewness(vals); err == nil && math.Abs(s) > SkewThreshold {
		dir := "left"
		if s > 0 {
			dir = "right"
		}
		out = append(out, Insight{
			Kind:    InsightSkew,
			Columns: []string{col},
			Text:    fmt.Sprintf("%s is significantly skewed to the %s (skewness: %.2f).", col, dir, s),
			Value:   s,
		})
	}
	if n, err := countOutliers(vals); err == nil && n > 0 && t.NumRows() > 0 {
		pct := float64(n) / float64(t.NumRows()) * 100
		out = append(out, Insight{
			Kind:    InsightOutliers,
			Columns: []string{col},
			Text:    fmt.Sprintf("%s has %d potential outliers (%.2f%% of data).", col, n, pct),
			Value:   float64(n),
		})
	}
	return out
}

func countOutliers(vals []float64) (int, error) {
	lo, hi, err := IQRBounds(vals)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range vals {
		if v < lo || v > hi {
			n++
		}
	}
	return n, nil
}

func categoricalInsights(t *dataset.Table, col string) []Insight {
	i := t.ColumnIndex(col)
	if i < 0 {
		return nil
	}
	counts := t.ValueCounts(i)
	if len(counts) == 0 {
		return nil
	}
	var out []Insight
	switch u := len(counts); {
	case u == 1:
		out = append(out, Insight{
			Kind:    InsightConstant,
			Columns: []string{col},
			Text:    fmt.Sprintf("%s has only one unique value: '%s'.", col, counts[0].Value),
			Value:   1,
		})
	case u < LowCardinalityLimit:
		out = append(out, Insight{
			Kind:    InsightLowCardinality,
			Columns: []string{col},
			Text:    fmt.Sprintf("%s has low cardinality with only %d unique values.", col, u),
			Value:   float64(u),
		})
	}
	present := 0
	for _, c := range counts {
		present += c.Count
	}
	if share := float64(counts[0].Count) / float64(present); share > ImbalanceShare {
		out = append(out, Insight{
			Kind:    InsightImbalance,
			Columns: []string{col},
			Text:    fmt.Sprintf("%s is imbalanced with '%s' representing %.2f%% of values.", col, counts[0].Value, share*100),
			Value:   share,
		})
	}
	return out
}

func dateSpanInsight(t *dataset.Table, col string) (Insight, bool) {
	i := t.ColumnIndex(col)
	if i < 0 {
		return Insight{}, false
	}
	minY, maxY, seen := 0, 0, false
	for _, c := range t.Present(i) {
		ts, ok := dataset.ParseTime(c)
		if !ok {
			// mixed content: not a valid date series
			return Insight{}, false
		}
		y := ts.Year()
		if !seen || y < minY {
			minY = y
		}
		if !seen || y > maxY {
			maxY = y
		}
		seen = true
	}
	if !seen || minY == maxY {
		return Insight{}, false
	}
	span := maxY - minY
	return Insight{
		Kind:    InsightDateSpan,
		Columns: []string{col},
		Text:    fmt.Sprintf("Data spans %d years, from %d to %d.", span, minY, maxY),
		Value:   float64(span),
	}, true
}

func correlationInsights(t *dataset.Table, numeric []string) []Insight {
	var out []Insight
	for a := 0; a < len(numeric); a++ {
		for b := a + 1; b < len(numeric); b++ {
			x, y := alignedPairs(t, numeric[a], numeric[b])
			r, err := pearson(x, y)
			if err != nil || math.Abs(r) <= CorrelationThreshold {
				continue
			}
			dir := "negative"
			if r > 0 {
				dir = "positive"
			}
			out = append(out, Insight{
				Kind:    InsightCorrelation,
				Columns: []string{numeric[a], numeric[b]},
				Text:    fmt.Sprintf("Strong %s correlation (%.2f) between %s and %s.", dir, r, numeric[a], numeric[b]),
				Value:   r,
			})
		}
	}
	return out
}

// alignedPairs returns the values of two columns on rows where both parse.
func alignedPairs(t *dataset.Table, colA, colB string) (x, y []float64) {
	ia, ib := t.ColumnIndex(colA), t.ColumnIndex(colB)
	if ia < 0 || ib < 0 {
		return nil, nil
	}
	for _, row := range t.Rows {
		if dataset.IsMissing(row[ia]) || dataset.IsMissing(row[ib]) {
			continue
		}
		va, okA := dataset.ParseFloat(row[ia])
		vb, okB := dataset.ParseFloat(row[ib])
		if okA && okB {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return x, y
}

// Correlation returns the Pearson coefficient between two numeric columns.
func Correlation(t *dataset.Table, colA, colB string) (float64, bool) {
	r, err := pearson(alignedPairs(t, colA, colB))
	return r, err == nil
}
