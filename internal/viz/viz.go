// Package viz builds declarative chart specifications together with the data
// needed to draw them.
package viz

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

// Kind is a chart type.
type Kind string

const (
	KindHistogram Kind = "histogram"
	KindLine      Kind = "line"
	KindBar       Kind = "bar"
	KindBox       Kind = "box"
	KindScatter   Kind = "scatter"
)

// DefaultBins is the histogram bin count when none is configured.
const DefaultBins = 20

// ClampBins maps a configured bin count into [MinBins, MaxBins]. Zero or a
// negative count means DefaultBins.
func ClampBins(n int) int {
	switch {
	case n <= 0:
		return DefaultBins
	case n < MinBins:
		return MinBins
	case n > MaxBins:
		return MaxBins
	}
	return n
}

// Bin is one histogram bucket covering [Lo, Hi).
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Bar is one labelled bar.
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Point is one x/y sample. Label carries the original x text for time axes.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// Box is the five-number summary of one group.
type Box struct {
	Group    string    `json:"group"`
	N        int       `json:"n"`
	Min      float64   `json:"min"`
	Q1       float64   `json:"q1"`
	Median   float64   `json:"median"`
	Q3       float64   `json:"q3"`
	Max      float64   `json:"max"`
	Outliers []float64 `json:"outliers,omitempty"`
}

// Visualization is a chart specification plus its data. Only the series
// matching Kind is populated.
type Visualization struct {
	Kind    Kind    `json:"kind"`
	Title   string  `json:"title"`
	X       string  `json:"x"`
	Y       string  `json:"y,omitempty"`
	GroupBy string  `json:"group_by,omitempty"`
	Bins    []Bin   `json:"bins,omitempty"`
	Bars    []Bar   `json:"bars,omitempty"`
	Points  []Point `json:"points,omitempty"`
	Boxes   []Box   `json:"boxes,omitempty"`
	YSuffix string  `json:"y_label,omitempty"`
}

// ErrNoData is returned when a chart has nothing to plot.
var ErrNoData = errors.New("no plottable values")

func column(t *dataset.Table, name string) (int, error) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return -1, fmt.Errorf("unknown column %q", name)
	}
	return i, nil
}

// Histogram buckets a numeric column into equal-width bins.
func Histogram(t *dataset.Table, col string, bins int) (Visualization, error) {
	i, err := column(t, col)
	if err != nil {
		return Visualization{}, err
	}
	vals, _ := t.Floats(i)
	if len(vals) == 0 {
		return Visualization{}, fmt.Errorf("histogram of %q: %w", col, ErrNoData)
	}
	return Visualization{
		Kind:    KindHistogram,
		Title:   "Distribution of " + col,
		X:       col,
		Bins:    bucket(vals, ClampBins(bins)),
		YSuffix: "count",
	}, nil
}

func bucket(vals []float64, n int) []Bin {
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: len(vals)}}
	}
	width := (hi - lo) / float64(n)
	out := make([]Bin, n)
	for b := range out {
		out[b].Lo = lo + float64(b)*width
		out[b].Hi = lo + float64(b+1)*width
	}
	out[n-1].Hi = hi
	for _, v := range vals {
		b := int((v - lo) / width)
		if b >= n {
			b = n - 1
		}
		out[b].Count++
	}
	return out
}

// CountBar charts the value counts of a column, most frequent first.
func CountBar(t *dataset.Table, col string) (Visualization, error) {
	i, err := column(t, col)
	if err != nil {
		return Visualization{}, err
	}
	vc := t.ValueCounts(i)
	if len(vc) == 0 {
		return Visualization{}, fmt.Errorf("counts of %q: %w", col, ErrNoData)
	}
	bars := make([]Bar, len(vc))
	for k, c := range vc {
		bars[k] = Bar{Label: c.Value, Value: float64(c.Count)}
	}
	return Visualization{Kind: KindBar, Title: "Count by " + col, X: col, Y: "count", Bars: bars}, nil
}

// MeanBar charts the mean of value per distinct group.
func MeanBar(t *dataset.Table, group, value string) (Visualization, error) {
	g, err := column(t, group)
	if err != nil {
		return Visualization{}, err
	}
	v, err := column(t, value)
	if err != nil {
		return Visualization{}, err
	}
	groups := t.GroupMean(g, v)
	if len(groups) == 0 {
		return Visualization{}, fmt.Errorf("%s by %s: %w", value, group, ErrNoData)
	}
	bars := make([]Bar, len(groups))
	for k, gv := range groups {
		bars[k] = Bar{Label: gv.Key, Value: gv.Value}
	}
	return Visualization{Kind: KindBar, Title: value + " by " + group, X: group, Y: value, Bars: bars, YSuffix: "mean"}, nil
}

// Line plots a numeric column against a date column, ordered by time.
func Line(t *dataset.Table, dateCol, value string) (Visualization, error) {
	d, err := column(t, dateCol)
	if err != nil {
		return Visualization{}, err
	}
	v, err := column(t, value)
	if err != nil {
		return Visualization{}, err
	}
	var pts []Point
	for _, row := range t.Rows {
		ts, ok := dataset.ParseTime(row[d])
		if !ok {
			continue
		}
		y, ok := dataset.ParseFloat(row[v])
		if !ok {
			continue
		}
		pts = append(pts, Point{X: float64(ts.Unix()), Y: y, Label: row[d]})
	}
	if len(pts) == 0 {
		return Visualization{}, fmt.Errorf("%s over %s: %w", value, dateCol, ErrNoData)
	}
	sort.SliceStable(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
	return Visualization{Kind: KindLine, Title: value + " Over Time", X: dateCol, Y: value, Points: pts}, nil
}

// Scatter plots y against x on rows where both are numeric.
func Scatter(t *dataset.Table, x, y string) (Visualization, error) {
	xi, err := column(t, x)
	if err != nil {
		return Visualization{}, err
	}
	yi, err := column(t, y)
	if err != nil {
		return Visualization{}, err
	}
	var pts []Point
	for _, row := range t.Rows {
		xv, okX := dataset.ParseFloat(row[xi])
		yv, okY := dataset.ParseFloat(row[yi])
		if okX && okY {
			pts = append(pts, Point{X: xv, Y: yv})
		}
	}
	if len(pts) == 0 {
		return Visualization{}, fmt.Errorf("%s vs %s: %w", y, x, ErrNoData)
	}
	return Visualization{Kind: KindScatter, Title: y + " vs " + x, X: x, Y: y, Points: pts}, nil
}

// BoxPlot summarizes value per group in first-appearance order. An empty
// group column yields one box over all rows.
func BoxPlot(t *dataset.Table, group, value string) (Visualization, error) {
	v, err := column(t, value)
	if err != nil {
		return Visualization{}, err
	}
	g := -1
	if group != "" {
		if g, err = column(t, group); err != nil {
			return Visualization{}, err
		}
	}
	var order []string
	byGroup := map[string][]float64{}
	for _, row := range t.Rows {
		key := value
		if g >= 0 {
			if dataset.IsMissing(row[g]) {
				continue
			}
			key = row[g]
		}
		f, ok := dataset.ParseFloat(row[v])
		if !ok {
			continue
		}
		if _, seen := byGroup[key]; !seen {
			order = append(order, key)
		}
		byGroup[key] = append(byGroup[key], f)
	}
	if len(order) == 0 {
		return Visualization{}, fmt.Errorf("%s by %s: %w", value, group, ErrNoData)
	}
	boxes := make([]Box, 0, len(order))
	for _, key := range order {
		boxes = append(boxes, summarize(key, byGroup[key]))
	}
	title := value
	if group != "" {
		title = value + " by " + group
	}
	return Visualization{Kind: KindBox, Title: title, X: group, Y: value, GroupBy: group, Boxes: boxes}, nil
}

// summarize computes a Tukey box: whiskers reach the most extreme values
// inside the 1.5*IQR fences, the rest are outliers.
func summarize(group string, vals []float64) Box {
	q := analysis.Quantiles(vals, 0, 0.25, 0.5, 0.75, 1)
	b := Box{Group: group, N: len(vals), Q1: q[1], Median: q[2], Q3: q[3], Min: q[4], Max: q[0]}
	lo, hi, _ := analysis.IQRBounds(vals)
	for _, v := range vals {
		if v < lo || v > hi {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		b.Min = math.Min(b.Min, v)
		b.Max = math.Max(b.Max, v)
	}
	sort.Float64s(b.Outliers)
	return b
}
