package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/chat"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

const (
	promptColumns      = 5
	answerValueColumns = 2
	answerMaxUnique    = 100
	answerTopValues    = 5
)

var rankingWords = []string{"top", "highest", "max", "greatest", "lowest", "min"}

// sampleText renders the first n rows as an aligned plain-text table.
func sampleText(t *dataset.Table, n int) string {
	h := t.Head(n)
	widths := make([]int, len(h.Columns))
	for i, c := range h.Columns {
		widths[i] = len([]rune(c))
	}
	for _, row := range h.Rows {
		for i, cell := range row {
			if w := len([]rune(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	var b strings.Builder
	line := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(c)
			b.WriteString(strings.Repeat(" ", widths[i]-len([]rune(c))))
		}
		b.WriteString("\n")
	}
	line(h.Columns)
	for _, row := range h.Rows {
		line(row)
	}
	return strings.TrimRight(b.String(), " \n")
}

func firstCols(cols []string, n int) []string {
	if len(cols) > n {
		return cols[:n]
	}
	return cols
}

func summaryPrompt(t *dataset.Table, p *analysis.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %d rows, %d columns.\n", p.Rows, p.Columns)
	fmt.Fprintf(&b, "Missing: %v%%\n", p.MissingValuesPct)
	fmt.Fprintf(&b, "Numerical columns: %s\n", strings.Join(firstCols(p.Numerical, promptColumns), ", "))
	fmt.Fprintf(&b, "Categorical columns: %s\n\n", strings.Join(firstCols(p.Categorical, promptColumns), ", "))
	fmt.Fprintf(&b, "Sample data:\n%s\n\n", sampleText(t, 3))
	b.WriteString("Summarize the key characteristics of this dataset in 3-4 sentences.")
	return b.String()
}

func numericStats(t *dataset.Table, cols []string) []string {
	var out []string
	for _, c := range cols {
		s, ok := analysis.ColumnSummary(t, c)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("%s (min: %.2f, max: %.2f, mean: %.2f, median: %.2f)", c, s.Min, s.Max, s.Mean, s.Median))
	}
	return out
}

func categoricalStats(t *dataset.Table, cols []string) []string {
	var out []string
	rows := t.NumRows()
	for _, c := range cols {
		vc := t.ValueCounts(t.ColumnIndex(c))
		if len(vc) == 0 || rows == 0 {
			continue
		}
		var parts []string
		for _, v := range vc[:min(2, len(vc))] {
			parts = append(parts, fmt.Sprintf("'%s': %d (%.1f%%)", v.Value, v.Count, float64(v.Count)/float64(rows)*100))
		}
		out = append(out, fmt.Sprintf("%s (top values: %s)", c, strings.Join(parts, ", ")))
	}
	return out
}

func insightsPrompt(t *dataset.Table, p *analysis.Profile) string {
	var b strings.Builder
	b.WriteString("Generate 4-5 key insights about this dataset:\n\n")
	fmt.Fprintf(&b, "Dataset: %d rows, %d columns.\n", p.Rows, p.Columns)
	fmt.Fprintf(&b, "Missing values: %v%%\n\n", p.MissingValuesPct)
	fmt.Fprintf(&b, "All columns: %s\n\n", strings.Join(t.Columns, ", "))
	fmt.Fprintf(&b, "Numerical columns with stats:\n%s\n\n", strings.Join(numericStats(t, firstCols(p.Numerical, promptColumns)), "\n"))
	fmt.Fprintf(&b, "Categorical columns with distributions:\n%s\n\n", strings.Join(categoricalStats(t, firstCols(p.Categorical, promptColumns)), "\n"))
	fmt.Fprintf(&b, "Sample data (first 5 rows):\n%s\n\n", sampleText(t, 5))
	b.WriteString(`Each insight should be:
1. Data-driven and specific with actual values and statistics
2. Focused on patterns, outliers, or interesting relationships
3. Clear and direct without vague statements
4. Actionable where possible

Format each insight as a separate point.`)
	return b.String()
}

// answerContext describes the dataset for question answering. It is the part
// of the prompt that gets truncated when over budget.
func answerContext(t *dataset.Table, p *analysis.Profile) string {
	nums := firstCols(p.Numerical, promptColumns)
	cats := firstCols(p.Categorical, promptColumns)

	types := make(map[string]string, len(t.Columns))
	for _, ci := range p.Info {
		types[ci.Name] = string(ci.Kind)
	}
	typeJSON, _ := json.MarshalIndent(types, "", "  ")

	var b strings.Builder
	b.WriteString("You are a data analysis assistant. I have a dataset with the following details:\n\n")
	fmt.Fprintf(&b, "Dataset has %d rows and %d columns.\n\n", p.Rows, p.Columns)
	fmt.Fprintf(&b, "All available columns: %s\n\n", strings.Join(t.Columns, ", "))
	fmt.Fprintf(&b, "Column data types:\n%s\n\n", typeJSON)
	fmt.Fprintf(&b, "Numerical columns: %s\n", strings.Join(nums, ", "))
	fmt.Fprintf(&b, "Categorical columns: %s\n\n", strings.Join(cats, ", "))
	b.WriteString("Statistics:\n")
	for _, c := range nums {
		if s, ok := analysis.ColumnSummary(t, c); ok {
			fmt.Fprintf(&b, "%s: min=%.2f, max=%.2f, mean=%.2f\n", c, s.Min, s.Max, s.Mean)
		} else {
			fmt.Fprintf(&b, "%s: error calculating stats\n", c)
		}
	}
	if len(nums) >= 2 {
		b.WriteString("\nCorrelations:\n")
		for i := 0; i < len(nums); i++ {
			for j := i + 1; j < len(nums); j++ {
				if r, ok := analysis.Correlation(t, nums[i], nums[j]); ok {
					fmt.Fprintf(&b, "%s ~ %s: %.2f\n", nums[i], nums[j], r)
				}
			}
		}
	}
	fmt.Fprintf(&b, "\nSample data (first 5 rows):\n%s\n\n", sampleText(t, 5))
	b.WriteString("Categorical column value counts:\n")
	for _, c := range firstCols(cats, answerValueColumns) {
		i := t.ColumnIndex(c)
		if t.Unique(i) >= answerMaxUnique {
			fmt.Fprintf(&b, "%s: too many unique values\n", c)
			continue
		}
		fmt.Fprintf(&b, "Top values for %s:\n", c)
		vc := t.ValueCounts(i)
		for _, v := range vc[:min(answerTopValues, len(vc))] {
			fmt.Fprintf(&b, "  %s: %d\n", v.Value, v.Count)
		}
	}
	return b.String()
}

func answerInstructions(question string, history []chat.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nPrevious conversation:\n%s\n\n", chat.Transcript(history))
	fmt.Fprintf(&b, "User question: %s\n\n", question)
	b.WriteString(`Answer with specific information from the dataset. Follow these steps:
1. First, understand what analysis is needed based on the question
2. Show the calculation or code that would perform this analysis (using actual column names from this dataset)
3. Explain what it does in a simple way
4. Provide a direct answer based on the data

For any grouping operations, do NOT list every single group - focus on the top 5-10 results at most.
Keep the response concise and focused on answering the specific question.`)
	q := strings.ToLower(question)
	for _, w := range rankingWords {
		if strings.Contains(q, w) {
			b.WriteString(`

If the user is asking for the top/highest/lowest values or rankings:
1. Identify which column they want to rank by and which column contains the categories
2. Group by the category column, aggregate the value column, sort, and keep the first N
   (for example: top 5 countries by average income, or lowest 3 products by total sales)
Show both the method and the results to answer the question directly.`)
			break
		}
	}
	return b.String()
}

func questionsPrompt(p *analysis.Profile) string {
	var b strings.Builder
	b.WriteString("Generate 5 interesting questions that could be asked about a dataset with the following characteristics:\n\n")
	fmt.Fprintf(&b, "Dataset has %d rows and %d columns.\n\n", p.Rows, p.Columns)
	fmt.Fprintf(&b, "Numerical columns: %s\n", strings.Join(firstCols(p.Numerical, 3), ", "))
	fmt.Fprintf(&b, "Categorical columns: %s\n\n", strings.Join(firstCols(p.Categorical, 3), ", "))
	b.WriteString(`Generate specific, data-focused questions that would lead to valuable insights.
Make the questions concise and direct.
Format each question as a separate line with no numbering or bullets.`)
	return b.String()
}

func recommendationsPrompt(p *analysis.Profile, insights []string) string {
	key := "No insights available."
	if len(insights) > 0 {
		key = strings.Join(firstCols(insights, 3), ". ")
	}
	var b strings.Builder
	b.WriteString("Based on the following dataset information, provide 3-5 actionable recommendations:\n\n")
	fmt.Fprintf(&b, "Dataset has %d rows and %d columns.\n\n", p.Rows, p.Columns)
	fmt.Fprintf(&b, "Numerical columns: %s\n", strings.Join(firstCols(p.Numerical, promptColumns), ", "))
	fmt.Fprintf(&b, "Categorical columns: %s\n\n", strings.Join(firstCols(p.Categorical, promptColumns), ", "))
	fmt.Fprintf(&b, "Key insights:\n%s\n\n", key)
	b.WriteString(`Provide specific, actionable recommendations for further analysis or business decisions.
Each recommendation should be concise and data-driven.
Format each recommendation as a separate point.`)
	return b.String()
}
