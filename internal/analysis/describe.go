package analysis

import (
	"github.com/montanaflynn/stats"

	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

// ColumnStats is the descriptive summary of one numeric column.
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
	// HasStd is false when fewer than two values exist.
	HasStd bool `json:"has_std"`
}

// Describe summarizes every numeric column that has at least one value.
// Std is the sample standard deviation; quartiles interpolate linearly.
func Describe(t *dataset.Table, p *Profile) []ColumnStats {
	var out []ColumnStats
	for _, col := range p.Numerical {
		i := t.ColumnIndex(col)
		if i < 0 {
			continue
		}
		vals, _ := t.Floats(i)
		if cs, err := describeValues(col, vals); err == nil {
			out = append(out, cs)
		}
	}
	return out
}

func describeValues(col string, vals []float64) (ColumnStats, error) {
	data := stats.Float64Data(vals)
	if data.Len() == 0 {
		return ColumnStats{}, errStatistic
	}
	cs := ColumnStats{Column: col, Count: data.Len()}
	var err error
	if cs.Mean, err = data.Mean(); err != nil {
		return ColumnStats{}, err
	}
	if cs.Min, err = data.Min(); err != nil {
		return ColumnStats{}, err
	}
	if cs.Max, err = data.Max(); err != nil {
		return ColumnStats{}, err
	}
	if data.Len() > 1 {
		if cs.Std, err = stats.StandardDeviationSample(data); err == nil {
			cs.HasStd = true
		}
	}
	s := sortedCopy(vals)
	cs.Q25, cs.Median, cs.Q75 = quantile(s, 0.25), quantile(s, 0.5), quantile(s, 0.75)
	return cs, nil
}

// ColumnSummary returns count/mean/min/max/median for a numeric column.
func ColumnSummary(t *dataset.Table, col string) (ColumnStats, bool) {
	i := t.ColumnIndex(col)
	if i < 0 {
		return ColumnStats{}, false
	}
	vals, _ := t.Floats(i)
	cs, err := describeValues(col, vals)
	return cs, err == nil
}
