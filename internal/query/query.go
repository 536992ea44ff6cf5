// Package query answers free-text questions about a table with a small set of
// keyword rules, without calling a language model.
package query

import (
	"strconv"
	"strings"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

// RankLimit is the number of rows or categories a ranking answer returns.
const RankLimit = 5

const (
	msgNoColumns = "Couldn't identify any columns in your query. Please be more specific."
	msgNoNumeric = "None of the mentioned columns are numeric, so no average can be computed."
)

// Result is one of Statistic, Visualization, TableSlice or Error.
type Result interface {
	Message() string
	Type() string
	sealed()
}

// ColumnMean is one entry of a Statistic.
type ColumnMean struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
}

// Statistic maps columns to their means, in table column order.
type Statistic struct {
	Text   string       `json:"message"`
	Values []ColumnMean `json:"values"`
}

// Visualization carries a chart answer.
type Visualization struct {
	Text  string            `json:"message"`
	Chart viz.Visualization `json:"chart"`
}

// TableSlice carries a small derived table: ranked rows or value counts.
type TableSlice struct {
	Text  string         `json:"message"`
	Table *dataset.Table `json:"table"`
}

// Error is returned when the question cannot be mapped to a rule.
type Error struct {
	Text string `json:"message"`
}

func (r Statistic) Message() string     { return r.Text }
func (r Visualization) Message() string { return r.Text }
func (r TableSlice) Message() string    { return r.Text }
func (r Error) Message() string         { return r.Text }

func (Statistic) Type() string     { return "statistic" }
func (Visualization) Type() string { return "visualization" }
func (TableSlice) Type() string    { return "table" }
func (Error) Type() string         { return "error" }

func (Statistic) sealed()     {}
func (Visualization) sealed() {}
func (TableSlice) sealed()    {}
func (Error) sealed()         {}

// Interpret maps a question onto the first matching rule:
// average/mean, "show ... by", ranking words, and finally the distribution
// of the first mentioned column. A ranking or grouping rule that cannot
// produce an answer falls through to the distribution rule.
func Interpret(question string, t *dataset.Table, p *analysis.Profile) Result {
	if t == nil || p == nil {
		return Error{Text: msgNoColumns}
	}
	q := strings.ToLower(question)
	cols := mentioned(q, t)
	if len(cols) == 0 {
		return Error{Text: msgNoColumns}
	}
	var numeric, other []string
	for _, c := range cols {
		if p.IsNumeric(c) {
			numeric = append(numeric, c)
		} else {
			other = append(other, c)
		}
	}

	var res Result
	switch {
	case has(q, "average", "mean"):
		return average(t, numeric)
	case has(q, "show") && has(q, "by"):
		res = groupMeans(t, p, cols)
	case has(q, "where", "most", "highest", "top", "lowest", "bottom"):
		res = rank(q, t, numeric, other)
	}
	if res != nil {
		return res
	}
	return distribution(t, p, cols[0])
}

// mentioned lists the columns whose lowercase name occurs in q, in table order.
func mentioned(q string, t *dataset.Table) []string {
	var out []string
	for _, c := range t.Columns {
		if strings.Contains(q, strings.ToLower(c)) {
			out = append(out, c)
		}
	}
	return out
}

func has(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

func average(t *dataset.Table, numeric []string) Result {
	var vals []ColumnMean
	var names []string
	for _, c := range numeric {
		s, ok := analysis.ColumnSummary(t, c)
		if !ok {
			continue
		}
		vals = append(vals, ColumnMean{Column: c, Mean: s.Mean})
		names = append(names, c)
	}
	if len(vals) == 0 {
		return Error{Text: msgNoNumeric}
	}
	return Statistic{Text: "Average of " + strings.Join(names, ", "), Values: vals}
}

func groupMeans(t *dataset.Table, p *analysis.Profile, cols []string) Result {
	if len(cols) < 2 {
		return nil
	}
	group, value := cols[0], cols[1]
	if !p.IsNumeric(value) {
		return nil
	}
	chart, err := viz.MeanBar(t, group, value)
	if err != nil {
		return nil
	}
	return Visualization{Text: "Showing " + value + " by " + group, Chart: chart}
}

func rank(q string, t *dataset.Table, numeric, other []string) Result {
	if len(numeric) > 0 {
		col := numeric[0]
		i := t.ColumnIndex(col)
		switch {
		case has(q, "highest", "top"):
			return TableSlice{Text: "Showing top values by " + col, Table: t.SortByNumeric(i, true).Head(RankLimit)}
		case has(q, "lowest", "bottom"):
			return TableSlice{Text: "Showing lowest values by " + col, Table: t.SortByNumeric(i, false).Head(RankLimit)}
		}
	}
	if len(other) == 0 {
		return nil
	}
	col := other[0]
	return TableSlice{Text: "Showing counts for " + col, Table: countsTable(t, col, RankLimit)}
}

// countsTable is a two-column table of the most frequent values of col.
func countsTable(t *dataset.Table, col string, limit int) *dataset.Table {
	vc := t.ValueCounts(t.ColumnIndex(col))
	if limit > 0 && len(vc) > limit {
		vc = vc[:limit]
	}
	rows := make([][]string, len(vc))
	for k, c := range vc {
		rows[k] = []string{c.Value, strconv.Itoa(c.Count)}
	}
	return &dataset.Table{Name: t.Name, Columns: []string{col, "count"}, Rows: rows}
}

func distribution(t *dataset.Table, p *analysis.Profile, col string) Result {
	if p.IsNumeric(col) {
		chart, err := viz.Histogram(t, col, viz.DefaultBins)
		if err == nil {
			return Visualization{Text: "Showing distribution of " + col, Chart: chart}
		}
	}
	chart, err := viz.CountBar(t, col)
	if err != nil {
		return Error{Text: "Column " + col + " has no values to show."}
	}
	return Visualization{Text: "Showing counts for " + col, Chart: chart}
}
