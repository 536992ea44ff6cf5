package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

// Markdown renders a compact, prompt-friendly summary of a table: schema with
// per-kind statistics, strongest correlations and the first sampleRows rows.
func Markdown(t *dataset.Table, p *Profile, sampleRows int) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if t.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", t.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\nColumns: %d\nMissing values: %.2f%%\n\n", p.Rows, p.Columns, p.MissingValuesPct)

	b.WriteString("[SCHEMA]\n")
	for i, c := range p.Info {
		fmt.Fprintf(&b, "- %s: %s (missing %.1f%%)", safeName(c.Name), c.Kind, c.MissingPct)
		switch c.Kind {
		case dataset.KindNumeric:
			if cs, ok := ColumnSummary(t, c.Name); ok {
				fmt.Fprintf(&b, ": min %.4g, max %.4g, mean %.4g, median %.4g", cs.Min, cs.Max, cs.Mean, cs.Median)
			}
		case dataset.KindCategorical:
			vc := t.ValueCounts(i)
			if len(vc) > 0 {
				b.WriteString(": top ")
				for j, kv := range vc[:min(3, len(vc))] {
					if j > 0 {
						b.WriteString(", ")
					}
					fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
				}
				if c.Unique > 3 {
					fmt.Fprintf(&b, "; unique=%d", c.Unique)
				}
			}
		}
		b.WriteString("\n")
	}

	if pairs := topCorrelations(t, p.Numerical, 10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, pr := range pairs {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", pr.A, pr.B, pr.R)
		}
	}

	if sampleRows > 0 && t.NumRows() > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		WriteMarkdownTable(&b, t.Head(sampleRows))
	}
	return b.String()
}

// WriteMarkdownTable writes t as a pipe table. Long cells are shortened.
func WriteMarkdownTable(b *strings.Builder, t *dataset.Table) {
	b.WriteString("| ")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(safeName(c))
	}
	b.WriteString(" |\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString("| ")
		for i, val := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			if r := []rune(val); len(r) > 80 {
				val = string(r[:77]) + "..."
			}
			b.WriteString(safeVal(val))
		}
		b.WriteString(" |\n")
	}
}

type corrPair struct {
	A, B string
	R    float64
}

func topCorrelations(t *dataset.Table, numeric []string, limit int) []corrPair {
	var pairs []corrPair
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			if r, ok := Correlation(t, numeric[i], numeric[j]); ok {
				pairs = append(pairs, corrPair{A: numeric[i], B: numeric[j], R: r})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return math.Abs(pairs[i].R) > math.Abs(pairs[j].R) })
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
