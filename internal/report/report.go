// Package report renders a self-contained HTML analysis report.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

// DefaultTitle is used when no title is given.
const DefaultTitle = "Data Analysis Report"

// SampleRows is the size of the data sample shown in the overview.
const SampleRows = 5

const dateLayout = "January 02, 2006 at 15:04"

//go:embed templates/*.html
var templateFS embed.FS

var page = template.Must(template.New("").Funcs(template.FuncMap{
	"num": formatStat,
	"svg": viz.SVG,
}).ParseFS(templateFS, "templates/*.html"))

// Input is everything a report shows. Empty Summary, Visualizations,
// Insights and Recommendations omit their sections.
type Input struct {
	Table           *dataset.Table
	Profile         *analysis.Profile
	Visualizations  []viz.Visualization
	Insights        []string
	Summary         string
	Recommendations []string
	Title           string
	GeneratedAt     time.Time
}

// Sections toggles optional report sections.
type Sections struct {
	Summary         bool
	Visualizations  bool
	Insights        bool
	Recommendations bool
}

// AllSections enables every optional section.
var AllSections = Sections{Summary: true, Visualizations: true, Insights: true, Recommendations: true}

// Filter clears the content of disabled sections.
func (in Input) Filter(s Sections) Input {
	if !s.Summary {
		in.Summary = ""
	}
	if !s.Visualizations {
		in.Visualizations = nil
	}
	if !s.Insights {
		in.Insights = nil
	}
	if !s.Recommendations {
		in.Recommendations = nil
	}
	return in
}

type statRow struct {
	Label  string
	Values []float64
	Valid  []bool
}

type view struct {
	Title           string
	Generated       string
	Summary         string
	HasSummary      bool
	Profile         *analysis.Profile
	Sample          *dataset.Table
	Info            []analysis.ColumnInfo
	StatColumns     []string
	Stats           []statRow
	Visualizations  []viz.Visualization
	Insights        []string
	Recommendations []string
}

// Compose renders the report document.
func Compose(in Input) ([]byte, error) {
	if in.Table == nil || in.Profile == nil {
		return nil, fmt.Errorf("compose report: %w", dataset.ErrNoColumns)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultTitle
	}
	at := in.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	v := view{
		Title:           title,
		Generated:       at.Format(dateLayout),
		Summary:         in.Summary,
		HasSummary:      strings.TrimSpace(in.Summary) != "",
		Profile:         in.Profile,
		Sample:          in.Table.Head(SampleRows),
		Info:            in.Profile.Info,
		Visualizations:  in.Visualizations,
		Insights:        nonEmpty(in.Insights),
		Recommendations: nonEmpty(in.Recommendations),
	}
	v.StatColumns, v.Stats = statTable(analysis.Describe(in.Table, in.Profile))

	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "report.html", v); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// statTable pivots per-column statistics into describe-style rows.
func statTable(cs []analysis.ColumnStats) ([]string, []statRow) {
	if len(cs) == 0 {
		return nil, nil
	}
	cols := make([]string, len(cs))
	for i, c := range cs {
		cols[i] = c.Column
	}
	row := func(label string, get func(analysis.ColumnStats) (float64, bool)) statRow {
		r := statRow{Label: label, Values: make([]float64, len(cs)), Valid: make([]bool, len(cs))}
		for i, c := range cs {
			r.Values[i], r.Valid[i] = get(c)
		}
		return r
	}
	always := func(f func(analysis.ColumnStats) float64) func(analysis.ColumnStats) (float64, bool) {
		return func(c analysis.ColumnStats) (float64, bool) { return f(c), true }
	}
	return cols, []statRow{
		row("count", always(func(c analysis.ColumnStats) float64 { return float64(c.Count) })),
		row("mean", always(func(c analysis.ColumnStats) float64 { return c.Mean })),
		row("std", func(c analysis.ColumnStats) (float64, bool) { return c.Std, c.HasStd }),
		row("min", always(func(c analysis.ColumnStats) float64 { return c.Min })),
		row("25%", always(func(c analysis.ColumnStats) float64 { return c.Q25 })),
		row("50%", always(func(c analysis.ColumnStats) float64 { return c.Median })),
		row("75%", always(func(c analysis.ColumnStats) float64 { return c.Q75 })),
		row("max", always(func(c analysis.ColumnStats) float64 { return c.Max })),
	}
}

func formatStat(f float64) string {
	return fmt.Sprintf("%.6f", f)
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Filename derives the download name for a report title.
func Filename(title string) string {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return r.Replace(title) + ".html"
}
