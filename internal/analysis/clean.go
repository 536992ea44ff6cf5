package analysis

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

// CleanMethod selects how missing values are handled.
type CleanMethod string

const (
	CleanDrop   CleanMethod = "drop"
	CleanMean   CleanMethod = "mean"
	CleanMedian CleanMethod = "median"
	CleanMode   CleanMethod = "mode"
	CleanValue  CleanMethod = "value"
)

// ParseCleanMethod validates a user-supplied method name.
func ParseCleanMethod(s string) (CleanMethod, error) {
	switch m := CleanMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case CleanDrop, CleanMean, CleanMedian, CleanMode, CleanValue:
		return m, nil
	default:
		return "", fmt.Errorf("unknown cleaning method %q (want drop, mean, median, mode or value)", s)
	}
}

// CleanOptions configures Clean. Empty Columns means every column.
type CleanOptions struct {
	Method  CleanMethod
	Value   string
	Columns []string
}

// CleanResult reports what a cleaning pass changed.
type CleanResult struct {
	RowsDropped int      `json:"rows_dropped"`
	CellsFilled int      `json:"cells_filled"`
	Skipped     []string `json:"skipped,omitempty"`
}

// Clean returns a cleaned copy of t; t itself is not modified. Mean and
// median only apply to numeric columns, other columns are reported in
// Skipped. A column whose fill statistic cannot be computed is skipped too.
func Clean(t *dataset.Table, opt CleanOptions) (*dataset.Table, CleanResult, error) {
	idx, err := resolveColumns(t, opt.Columns)
	if err != nil {
		return nil, CleanResult{}, err
	}
	out := t.Clone()
	var res CleanResult
	switch opt.Method {
	case CleanDrop:
		kept := out.Rows[:0]
		for _, row := range out.Rows {
			if rowMissingAny(row, idx) {
				res.RowsDropped++
				continue
			}
			kept = append(kept, row)
		}
		out.Rows = kept
	case CleanMean, CleanMedian, CleanMode:
		for _, i := range idx {
			fill, ok := fillValue(out, i, opt.Method)
			if !ok {
				res.Skipped = append(res.Skipped, out.Columns[i])
				continue
			}
			res.CellsFilled += fillMissing(out, i, fill)
		}
	case CleanValue:
		if strings.TrimSpace(opt.Value) == "" {
			return nil, CleanResult{}, fmt.Errorf("fill value is required for method %q", CleanValue)
		}
		for _, i := range idx {
			res.CellsFilled += fillMissing(out, i, opt.Value)
		}
	default:
		return nil, CleanResult{}, fmt.Errorf("unknown cleaning method %q", opt.Method)
	}
	return out, res, nil
}

func resolveColumns(t *dataset.Table, names []string) ([]int, error) {
	if len(names) == 0 {
		idx := make([]int, t.NumCols())
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, 0, len(names))
	for _, n := range names {
		i := t.ColumnIndex(n)
		if i < 0 {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		idx = append(idx, i)
	}
	return idx, nil
}

func rowMissingAny(row []string, idx []int) bool {
	for _, i := range idx {
		if dataset.IsMissing(row[i]) {
			return true
		}
	}
	return false
}

func fillMissing(t *dataset.Table, i int, v string) int {
	n := 0
	for _, row := range t.Rows {
		if dataset.IsMissing(row[i]) {
			row[i] = v
			n++
		}
	}
	return n
}

func fillValue(t *dataset.Table, i int, m CleanMethod) (string, bool) {
	if m == CleanMode {
		return modeOf(t, i)
	}
	if dataset.InferKind(t.Columns[i], t.Column(i)) != dataset.KindNumeric {
		return "", false
	}
	vals, _ := t.Floats(i)
	var (
		f   float64
		err error
	)
	if m == CleanMean {
		f, err = stats.Mean(vals)
	} else {
		f, err = stats.Median(vals)
	}
	if err != nil {
		return "", false
	}
	return dataset.FormatFloat(f), true
}

// modeOf returns the most frequent value, the smallest one on ties.
func modeOf(t *dataset.Table, i int) (string, bool) {
	counts := t.ValueCounts(i)
	if len(counts) == 0 {
		return "", false
	}
	top := counts[0].Count
	var tied []dataset.ValueCount
	for _, c := range counts {
		if c.Count == top {
			tied = append(tied, c)
		}
	}
	dataset.SortKeys(tied, func(c dataset.ValueCount) string { return c.Value })
	return tied[0].Value, true
}

// OutlierResult reports an IQR capping pass.
type OutlierResult struct {
	Column  string  `json:"column"`
	Handled int     `json:"handled"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
}

func (r OutlierResult) String() string {
	return fmt.Sprintf("Handled %d outliers in %s", r.Handled, r.Column)
}

// CapOutliers clips the values of a numeric column to its IQR fences and
// returns the modified copy.
func CapOutliers(t *dataset.Table, col string) (*dataset.Table, OutlierResult, error) {
	i := t.ColumnIndex(col)
	if i < 0 {
		return nil, OutlierResult{}, fmt.Errorf("unknown column %q", col)
	}
	if dataset.InferKind(col, t.Column(i)) != dataset.KindNumeric {
		return nil, OutlierResult{}, fmt.Errorf("column %q is not numeric", col)
	}
	vals, _ := t.Floats(i)
	lo, hi, err := IQRBounds(vals)
	if err != nil {
		return nil, OutlierResult{}, fmt.Errorf("column %q has no values", col)
	}
	out := t.Clone()
	res := OutlierResult{Column: col, Lower: lo, Upper: hi}
	for _, row := range out.Rows {
		v, ok := dataset.ParseFloat(row[i])
		if !ok || dataset.IsMissing(row[i]) {
			continue
		}
		switch {
		case v < lo:
			row[i] = dataset.FormatFloat(lo)
			res.Handled++
		case v > hi:
			row[i] = dataset.FormatFloat(hi)
			res.Handled++
		}
	}
	return out, res, nil
}

// NormalizeMethod selects a scaling transform.
type NormalizeMethod string

const (
	NormalizeMinMax   NormalizeMethod = "minmax"
	NormalizeStandard NormalizeMethod = "standard"
)

// Normalize rescales numeric columns of a copy of t. Empty columns means all
// numeric columns. Min-max maps to [0,1]; standard subtracts the mean and
// divides by the population standard deviation. Constant columns become 0.
func Normalize(t *dataset.Table, columns []string, method NormalizeMethod) (*dataset.Table, error) {
	if method != NormalizeMinMax && method != NormalizeStandard {
		return nil, fmt.Errorf("unknown normalization method %q (want minmax or standard)", method)
	}
	var idx []int
	if len(columns) == 0 {
		for i, k := range t.Kinds() {
			if k == dataset.KindNumeric {
				idx = append(idx, i)
			}
		}
	} else {
		var err error
		if idx, err = resolveColumns(t, columns); err != nil {
			return nil, err
		}
		for _, i := range idx {
			if dataset.InferKind(t.Columns[i], t.Column(i)) != dataset.KindNumeric {
				return nil, fmt.Errorf("column %q is not numeric", t.Columns[i])
			}
		}
	}
	out := t.Clone()
	for _, i := range idx {
		vals, rows := out.Floats(i)
		if len(vals) == 0 {
			continue
		}
		scaled, err := scale(vals, method)
		if err != nil {
			return nil, fmt.Errorf("normalize %q: %w", out.Columns[i], err)
		}
		for k, r := range rows {
			out.Rows[r][i] = dataset.FormatFloat(scaled[k])
		}
	}
	return out, nil
}

func scale(vals []float64, method NormalizeMethod) ([]float64, error) {
	data := stats.Float64Data(vals)
	out := make([]float64, len(vals))
	switch method {
	case NormalizeMinMax:
		lo, err := data.Min()
		if err != nil {
			return nil, err
		}
		hi, err := data.Max()
		if err != nil {
			return nil, err
		}
		span := hi - lo
		for i, v := range vals {
			if span != 0 {
				out[i] = (v - lo) / span
			}
		}
	default:
		mean, err := data.Mean()
		if err != nil {
			return nil, err
		}
		sd, err := stats.StandardDeviationPopulation(data)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if sd != 0 {
				out[i] = (v - mean) / sd
			}
		}
	}
	return out, nil
}
