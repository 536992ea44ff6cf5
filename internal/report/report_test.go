package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

const data = "city,amount,qty\nOslo,10,1\nRome,,2\nOslo,30,3\nParis,40,4\nOslo,50,5\nRome,60,6\n"

func input(t *testing.T) Input {
	t.Helper()
	tb, err := dataset.Load(strings.NewReader(data), "d.csv")
	require.NoError(t, err)
	p, err := analysis.NewProfile(tb)
	require.NoError(t, err)
	return Input{
		Table:       tb,
		Profile:     p,
		Title:       "Quarterly <Sales>",
		GeneratedAt: time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC),
	}
}

func render(t *testing.T, in Input) *goquery.Document {
	t.Helper()
	out, err := Compose(in)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)
	return doc
}

func TestComposeCoreSections(t *testing.T) {
	doc := render(t, input(t))

	assert.Equal(t, "Quarterly <Sales>", doc.Find(".header h1").Text())
	assert.Equal(t, "Generated on March 05, 2024 at 14:07", doc.Find(".header p").Text())
	assert.Equal(t, 4, doc.Find(".metric-card").Length())
	assert.Contains(t, doc.Find(".data-metrics").Text(), "5.56%")
	assert.Contains(t, doc.Find(".data-metrics").Text(), "2/1")

	assert.Equal(t, SampleRows, doc.Find("table.sample tbody tr").Length())
	assert.Equal(t, 3, doc.Find("table.column-info tbody tr").Length())
	assert.Equal(t, "amount, qty", doc.Find("#profile p").First().Text())

	stats := doc.Find("table.summary-stats tbody tr")
	assert.Equal(t, 8, stats.Length())
	assert.Equal(t, "count", stats.First().Find("th").Text())
	assert.Equal(t, "5.000000", stats.First().Find("td").First().Text())
	assert.Equal(t, "Report generated using AI-powered Data Analysis", doc.Find(".footer p").Text())
}

func TestComposeOmitsEmptySections(t *testing.T) {
	doc := render(t, input(t))
	for _, id := range []string{"#executive-summary", "#visualizations", "#insights", "#recommendations"} {
		assert.Equal(t, 0, doc.Find(id).Length(), id)
	}

	in := input(t)
	in.Summary = "   "
	doc = render(t, in)
	assert.Equal(t, 0, doc.Find("#executive-summary").Length())
}

func TestComposeKeepsSummaryVerbatim(t *testing.T) {
	in := input(t)
	in.Summary = "  Revenue rose 12%.\n\nUnits were flat.  "
	doc := render(t, in)
	require.Equal(t, 1, doc.Find("#executive-summary").Length())
	assert.Equal(t, in.Summary, doc.Find(".summary-card p").Text())
}

func TestComposeOptionalSections(t *testing.T) {
	in := input(t)
	in.Summary = "Sales <b>grew</b> steadily."
	in.Insights = []string{"amount is skewed.", "", "qty has no outliers."}
	in.Recommendations = []string{"Collect more data."}
	in.Visualizations = viz.Auto(in.Table, in.Profile, viz.DefaultBins)
	require.NotEmpty(t, in.Visualizations)

	doc := render(t, in)
	assert.Equal(t, "Sales <b>grew</b> steadily.", doc.Find(".summary-card p").Text())
	assert.Equal(t, 0, doc.Find(".summary-card b").Length())
	assert.Equal(t, 2, doc.Find(".insight-card").Length())
	assert.Equal(t, "💡 Collect more data.", doc.Find(".recommendation-card p").Text())
	assert.Equal(t, len(in.Visualizations), doc.Find(".visualization svg").Length())

	doc = render(t, in.Filter(Sections{Insights: true}))
	assert.Equal(t, 0, doc.Find("#executive-summary").Length())
	assert.Equal(t, 0, doc.Find("#visualizations").Length())
	assert.Equal(t, 0, doc.Find("#recommendations").Length())
	assert.Equal(t, 1, doc.Find("#insights").Length())
}

func TestComposeDefaultTitle(t *testing.T) {
	in := input(t)
	in.Title = ""
	doc := render(t, in)
	assert.Equal(t, DefaultTitle, doc.Find("title").Text())
}

func TestComposeRequiresTable(t *testing.T) {
	_, err := Compose(Input{})
	assert.ErrorIs(t, err, dataset.ErrNoColumns)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Data_Analysis_Report.html", Filename(""))
	assert.Equal(t, "Q1_Sales_Review.html", Filename("Q1 Sales Review"))
	assert.Equal(t, ".._.._etc_passwd.html", Filename("../../etc/passwd"))
}
