package viz

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/log"
	"go.uber.org/zap"
)

const (
	// MaxAutoColumns caps how many numeric and how many categorical columns
	// the automatic generator considers.
	MaxAutoColumns = 5
	// MaxBarCategories is the exclusive unique-count limit for count charts.
	MaxBarCategories = 15

	MinBins = 5
	MaxBins = 50
)

// Auto derives the default chart set for a profiled table. Charts that cannot
// be built for a column are skipped.
func Auto(t *dataset.Table, p *analysis.Profile, bins int) []Visualization {
	if t == nil || p == nil {
		return nil
	}
	out := []Visualization{}
	add := func(v Visualization, err error) {
		if err != nil {
			log.Debug("skipping chart", zap.Error(err))
			return
		}
		out = append(out, v)
	}

	bins = ClampBins(bins)
	nums := firstN(p.Numerical, MaxAutoColumns)
	cats := firstN(p.Categorical, MaxAutoColumns)
	dateCol := ""
	if len(p.Datetime) > 0 {
		dateCol = p.Datetime[0]
	}

	for _, col := range nums {
		add(Histogram(t, col, bins))
		if dateCol != "" {
			add(Line(t, dateCol, col))
		}
	}
	for _, col := range cats {
		i := t.ColumnIndex(col)
		if i < 0 || t.Unique(i) >= MaxBarCategories {
			continue
		}
		add(CountBar(t, col))
		if len(p.Numerical) > 0 {
			v, err := BoxPlot(t, col, p.Numerical[0])
			if err == nil {
				v.Title = p.Numerical[0] + " by " + col
			}
			add(v, err)
		}
	}
	if len(p.Numerical) >= 2 {
		add(Scatter(t, p.Numerical[0], p.Numerical[1]))
	}
	return out
}

func firstN(cols []string, n int) []string {
	if len(cols) > n {
		return cols[:n]
	}
	return cols
}

// Request describes a user-built chart.
type Request struct {
	Kind Kind   `json:"kind"`
	X    string `json:"x"`
	Y    string `json:"y,omitempty"`
	// Aggregate set to "mean" turns a bar chart into per-group means of Y.
	Aggregate string `json:"aggregate,omitempty"`
	Bins      int    `json:"bins,omitempty"`
}

// ParseKind maps a user-facing chart name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindHistogram, KindLine, KindBar, KindBox, KindScatter:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart type %q (use histogram, line, bar, box or scatter)", s)
}

// Build creates a chart from an explicit request.
func Build(t *dataset.Table, req Request) (Visualization, error) {
	if t == nil {
		return Visualization{}, dataset.ErrNoColumns
	}
	if req.X == "" {
		return Visualization{}, fmt.Errorf("%s chart needs an x column", req.Kind)
	}
	needY := func() error {
		if req.Y == "" {
			return fmt.Errorf("%s chart needs a y column", req.Kind)
		}
		return nil
	}
	switch req.Kind {
	case KindHistogram:
		bins := req.Bins
		if bins == 0 {
			bins = DefaultBins
		}
		if bins < MinBins || bins > MaxBins {
			return Visualization{}, fmt.Errorf("bins must be between %d and %d, got %d", MinBins, MaxBins, bins)
		}
		return Histogram(t, req.X, bins)
	case KindScatter:
		if err := needY(); err != nil {
			return Visualization{}, err
		}
		return Scatter(t, req.X, req.Y)
	case KindLine:
		if err := needY(); err != nil {
			return Visualization{}, err
		}
		return Line(t, req.X, req.Y)
	case KindBox:
		if req.Y == "" {
			return BoxPlot(t, "", req.X)
		}
		return BoxPlot(t, req.X, req.Y)
	case KindBar:
		if req.Y != "" && strings.EqualFold(req.Aggregate, "mean") {
			return MeanBar(t, req.X, req.Y)
		}
		if req.Y != "" {
			return sumBar(t, req.X, req.Y)
		}
		return CountBar(t, req.X)
	}
	return Visualization{}, fmt.Errorf("unknown chart type %q", req.Kind)
}

// sumBar totals y per x group, the unaggregated bar view.
func sumBar(t *dataset.Table, x, y string) (Visualization, error) {
	xi, err := column(t, x)
	if err != nil {
		return Visualization{}, err
	}
	yi, err := column(t, y)
	if err != nil {
		return Visualization{}, err
	}
	var bars []Bar
	idx := map[string]int{}
	for _, row := range t.Rows {
		if dataset.IsMissing(row[xi]) {
			continue
		}
		f, ok := dataset.ParseFloat(row[yi])
		if !ok {
			continue
		}
		k, seen := idx[row[xi]]
		if !seen {
			k = len(bars)
			idx[row[xi]] = k
			bars = append(bars, Bar{Label: row[xi]})
		}
		bars[k].Value += f
	}
	if len(bars) == 0 {
		return Visualization{}, fmt.Errorf("%s by %s: %w", y, x, ErrNoData)
	}
	return Visualization{Kind: KindBar, Title: y + " by " + x, X: x, Y: y, Bars: bars}, nil
}
