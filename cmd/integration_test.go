package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

func TestMain(m *testing.M) {
	cobra.OnInitialize(loadConfig)
	os.Exit(m.Run())
}

const salesCSV = "region,product,revenue\nNorth,A,100\nSouth,B,200\nNorth,B,\nEast,A,400\n"

// resetFlags restores every flag to its default so invocations don't leak
// state into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points HOME at a temp dir and clears credentials.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("INSIGHTGENIE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	return home
}

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, "", args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestCLI_ProfileBatchWritesSummariesWithCollisionSuffix(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "d1", "metrics.csv"), "col1,col2\nA,1\nB,2\nC,3\n")
	writeFile(t, filepath.Join(home, "d2", "metrics.csv"), "col1,col2\nA,1\nB,2\nC,3\n")
	outDir := filepath.Join(home, "summaries")

	mustRun(t, "profile", filepath.Join(home, "d*", "metrics.csv"),
		"--format", "markdown", "--output-dir", outDir, "--sample-rows", "0")

	for _, name := range []string{"metrics.summary.md", "metrics__2.summary.md"} {
		body, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing summary %s: %v", name, err)
		}
		if !strings.Contains(string(body), "[SCHEMA]") {
			t.Fatalf("expected schema section in %s", name)
		}
		if strings.Contains(string(body), "[HEAD AND SAMPLE ROWS]") {
			t.Fatalf("expected no sample rows in %s", name)
		}
	}
}

func TestCLI_ProfileRejectsUnsupportedFormat(t *testing.T) {
	home := isolate(t)
	p := writeFile(t, filepath.Join(home, "notes.txt"), "hello")
	_, err := runCmd(t, "", "profile", p)
	if err == nil || !strings.Contains(err.Error(), "unsupported file format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestCLI_Ask(t *testing.T) {
	home := isolate(t)
	p := writeFile(t, filepath.Join(home, "sales.csv"), salesCSV)

	out := mustRun(t, "ask", p, "What is the average revenue?")
	if !strings.Contains(out, "Average of revenue") || !strings.Contains(out, "revenue: 233.3333") {
		t.Fatalf("unexpected answer:\n%s", out)
	}
	out = mustRun(t, "ask", p, "top", "regions", "by", "revenue")
	if !strings.Contains(out, "Showing top values by revenue") || !strings.Contains(out, "| East |") {
		t.Fatalf("unexpected ranking:\n%s", out)
	}
}

func TestCLI_CleanExportsXLSX(t *testing.T) {
	home := isolate(t)
	p := writeFile(t, filepath.Join(home, "sales.csv"), salesCSV)
	dest := filepath.Join(home, "out", "clean.xlsx")

	mustRun(t, "clean", p, "--method", "drop", "-o", dest)

	tb, err := dataset.LoadFile(dest)
	if err != nil {
		t.Fatalf("reload export: %v", err)
	}
	if tb.NumRows() != 3 {
		t.Fatalf("expected 3 rows after drop, got %d", tb.NumRows())
	}
}

func TestCLI_ReportWithoutCredentials(t *testing.T) {
	home := isolate(t)
	p := writeFile(t, filepath.Join(home, "sales.csv"), salesCSV)
	dir := filepath.Join(home, "reports")

	mustRun(t, "report", p, "--title", "Q1 Sales", "--output-dir", dir)

	body, err := os.ReadFile(filepath.Join(dir, "Q1_Sales.html"))
	if err != nil {
		t.Fatalf("missing report: %v", err)
	}
	html := string(body)
	if !strings.Contains(html, "<h1>Q1 Sales</h1>") {
		t.Fatalf("missing title")
	}
	if strings.Contains(html, `id="executive-summary"`) || strings.Contains(html, `id="recommendations"`) {
		t.Fatalf("narrative sections should be omitted without a model")
	}
	if !strings.Contains(html, `id="insights"`) {
		t.Fatalf("missing insights section")
	}
}

func TestCLI_ChatResumesSession(t *testing.T) {
	home := isolate(t)
	p := writeFile(t, filepath.Join(home, "sales.csv"), salesCSV)
	sess := filepath.Join(home, "session")

	out, err := runCmd(t, "What is the top region?\n/quit\n", "chat", p, "--session", sess)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(out, "not available") {
		t.Fatalf("expected degraded answer, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(sess, "session.json")); err != nil {
		t.Fatalf("session not saved: %v", err)
	}

	out, err = runCmd(t, "/quit\n", "chat", p, "--session", sess)
	if err != nil {
		t.Fatalf("chat resume: %v", err)
	}
	if !strings.Contains(out, "Resumed conversation with 2 messages.") {
		t.Fatalf("expected resumed conversation, got:\n%s", out)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "config.yaml")

	mustRun(t, "--config", cfgPath, "config", "set", "histogram_bins", "30")
	out := mustRun(t, "--config", cfgPath, "config", "show")
	if !strings.Contains(out, "histogram_bins: 30") {
		t.Fatalf("expected saved value, got:\n%s", out)
	}
	if _, err := runCmd(t, "", "--config", cfgPath, "config", "set", "provider", "ollama"); err == nil {
		t.Fatalf("expected invalid provider error")
	}
}
