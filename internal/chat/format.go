package chat

import (
	"html/template"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Reply grammar, applied line by line:
//
//	fence    = "```" [lang] NL { line NL } "```"
//	heading  = digits ". **" title "**" [rest]
//	output   = output-label ":" text { NL text }   (ends at a blank line)
//	answer   = [digits ". "] answer-label ":" text { NL text }
//	prose    = any other run of lines, rendered as markdown
//
// Raw HTML in model text is never passed through, and only http(s), mailto
// and relative links stay clickable.

var (
	headingRe = regexp.MustCompile(`^(\d+)\.\s+\*\*([^*]+)\*\*\s*(.*)$`)
	outputRe  = regexp.MustCompile(`^(?i)(output|result|example output|the output would be|the result is|returns|resulting dataframe|prints|example result):\s*(.*)$`)
	answerRe  = regexp.MustCompile(`^(?i)(?:\d+\.\s+)?(answer|conclusion|final answer|in conclusion|to summarize|key finding|summary):\s*(.*)$`)
	fenceRe   = regexp.MustCompile("^```\\s*([A-Za-z0-9_+-]*)\\s*$")
)

type blockKind int

const (
	blockProse blockKind = iota
	blockCode
	blockHeading
	blockOutput
	blockAnswer
)

type block struct {
	kind  blockKind
	lang  string
	title string
	lines []string
}

// parse splits a reply into blocks following the grammar above.
func parse(text string) []block {
	var out []block
	var cur *block
	flush := func() {
		if cur != nil && (cur.kind != blockProse || strings.TrimSpace(strings.Join(cur.lines, "")) != "") {
			out = append(out, *cur)
		}
		cur = nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			b := block{kind: blockCode, lang: m[1]}
			for i++; i < len(lines) && strings.TrimSpace(lines[i]) != "```"; i++ {
				b.lines = append(b.lines, lines[i])
			}
			out = append(out, b)
			continue
		}
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			out = append(out, block{kind: blockHeading, title: m[1] + ". " + strings.TrimSpace(m[2])})
			if rest := strings.TrimSpace(m[3]); rest != "" {
				cur = &block{kind: blockProse, lines: []string{rest}}
			}
			continue
		}
		if m := outputRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			cur = &block{kind: blockOutput, lines: nonBlank(m[2])}
			continue
		}
		if m := answerRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			cur = &block{kind: blockAnswer, lines: nonBlank(m[2])}
			continue
		}
		if trimmed == "" {
			if cur != nil && cur.kind != blockProse {
				flush()
				continue
			}
		}
		if cur == nil {
			cur = &block{kind: blockProse}
		}
		cur.lines = append(cur.lines, line)
	}
	flush()
	return out
}

func nonBlank(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []string{s}
}

// Format renders a model reply as HTML.
func Format(text string) template.HTML {
	var b strings.Builder
	for _, blk := range parse(text) {
		switch blk.kind {
		case blockCode:
			class := ""
			if blk.lang != "" {
				class = ` class="language-` + template.HTMLEscapeString(blk.lang) + `"`
			}
			b.WriteString(`<div class="code-block"><pre><code` + class + `>`)
			b.WriteString(template.HTMLEscapeString(strings.Join(blk.lines, "\n")))
			b.WriteString("</code></pre></div>\n")
		case blockHeading:
			b.WriteString(`<h4 class="reply-heading">` + template.HTMLEscapeString(blk.title) + "</h4>\n")
		case blockOutput:
			b.WriteString(`<strong class="output-label">Output:</strong><div class="results-block">`)
			b.WriteString(template.HTMLEscapeString(strings.Join(blk.lines, "\n")))
			b.WriteString("</div>\n")
		case blockAnswer:
			b.WriteString(`<div class="answer-block"><strong>Answer:</strong>`)
			b.Write(renderMarkdown(strings.Join(blk.lines, "\n")))
			b.WriteString("</div>\n")
		default:
			b.Write(renderMarkdown(strings.Join(blk.lines, "\n")))
		}
	}
	return template.HTML(b.String())
}

const linkFlags = mdhtml.Safelink | mdhtml.NofollowLinks | mdhtml.NoreferrerLinks | mdhtml.NoopenerLinks | mdhtml.HrefTargetBlank

var safeLinkPrefixes = []string{"http://", "https://", "mailto:", "/", "#"}

// safeURL accepts web, mail and same-site links. Anything else, including
// javascript: and data: URLs, is rendered as plain text.
func safeURL(u []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(u)))
	for _, p := range safeLinkPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// renderMarkdown converts prose with raw HTML and unsafe links dropped.
func renderMarkdown(src string) []byte {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	p := parser.NewWithExtensions(parser.CommonExtensions &^ parser.MathJax)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.SkipHTML | linkFlags})
	r.IsSafeURLOverride = safeURL
	return markdown.ToHTML([]byte(src), p, r)
}
