package viz

import (
	"fmt"
	"html/template"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	svgWidth  = 640
	svgHeight = 320
	padLeft   = 60
	padRight  = 16
	padTop    = 36
	padBottom = 56

	maxDrawnBars   = 30
	maxDrawnPoints = 1500

	fillColor   = "#4e79a7"
	accentColor = "#e15759"
)

// plot maps data coordinates into the drawing area.
type plot struct {
	b             strings.Builder
	xLo, xHi      float64
	yLo, yHi      float64
	left, top     float64
	width, height float64
}

func newPlot() *plot {
	return &plot{
		left:   padLeft,
		top:    padTop,
		width:  svgWidth - padLeft - padRight,
		height: svgHeight - padTop - padBottom,
	}
}

func scale(v, lo, hi, a, b float64) float64 {
	if hi == lo {
		return (a + b) / 2
	}
	return a + (v-lo)/(hi-lo)*(b-a)
}

func (p *plot) px(x float64) float64 { return scale(x, p.xLo, p.xHi, p.left, p.left+p.width) }
func (p *plot) py(y float64) float64 { return scale(y, p.yLo, p.yHi, p.top+p.height, p.top) }

func (p *plot) printf(format string, args ...any) { fmt.Fprintf(&p.b, format, args...) }

func (p *plot) text(x, y float64, anchor, s string, size int) {
	p.printf(`<text x="%.1f" y="%.1f" text-anchor="%s" font-size="%d">%s</text>`,
		x, y, anchor, size, template.HTMLEscapeString(s))
}

func (p *plot) axes(v Visualization) {
	base := p.top + p.height
	p.printf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`, p.left, base, p.left+p.width, base)
	p.printf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`, p.left, p.top, p.left, base)
	p.text(p.left-6, p.py(p.yHi)+4, "end", tick(p.yHi), 10)
	p.text(p.left-6, p.py(p.yLo)+4, "end", tick(p.yLo), 10)
	p.text(svgWidth/2, 20, "middle", v.Title, 14)
	p.text(p.left+p.width/2, svgHeight-8, "middle", v.X, 11)
	ylabel := v.Y
	if ylabel == "" {
		ylabel = v.YSuffix
	}
	p.printf(`<text x="14" y="%.1f" text-anchor="middle" font-size="11" transform="rotate(-90 14 %.1f)">%s</text>`,
		p.top+p.height/2, p.top+p.height/2, template.HTMLEscapeString(ylabel))
}

func (p *plot) xTicks() {
	base := p.top + p.height
	p.text(p.left, base+16, "start", tick(p.xLo), 10)
	p.text(p.left+p.width, base+16, "end", tick(p.xHi), 10)
}

func tick(v float64) string {
	switch {
	case math.Abs(v) >= 1e6 || (v != 0 && math.Abs(v) < 1e-2):
		return fmt.Sprintf("%.2g", v)
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// SVG renders a chart as a standalone inline <svg> element.
func SVG(v Visualization) template.HTML {
	p := newPlot()
	switch v.Kind {
	case KindHistogram:
		p.histogram(v)
	case KindBar:
		p.bars(v)
	case KindLine, KindScatter:
		p.points(v)
	case KindBox:
		p.boxes(v)
	default:
		return ""
	}
	return template.HTML(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="100%%" role="img" font-family="sans-serif">%s</svg>`,
		svgWidth, svgHeight, p.b.String()))
}

func (p *plot) histogram(v Visualization) {
	if len(v.Bins) == 0 {
		return
	}
	p.xLo, p.xHi = v.Bins[0].Lo, v.Bins[len(v.Bins)-1].Hi
	for _, b := range v.Bins {
		p.yHi = math.Max(p.yHi, float64(b.Count))
	}
	if p.xLo == p.xHi {
		p.xLo, p.xHi = p.xLo-0.5, p.xHi+0.5
	}
	for _, b := range v.Bins {
		lo, hi := b.Lo, b.Hi
		if lo == hi {
			lo, hi = p.xLo, p.xHi
		}
		x0, x1 := p.px(lo), p.px(hi)
		y := p.py(float64(b.Count))
		p.printf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" stroke="#fff"/>`,
			x0, y, math.Max(x1-x0, 1), p.top+p.height-y, fillColor)
	}
	p.axes(v)
	p.xTicks()
}

func (p *plot) bars(v Visualization) {
	bars := v.Bars
	if len(bars) > maxDrawnBars {
		bars = bars[:maxDrawnBars]
	}
	if len(bars) == 0 {
		return
	}
	for _, b := range bars {
		p.yLo = math.Min(p.yLo, b.Value)
		p.yHi = math.Max(p.yHi, b.Value)
	}
	slot := p.width / float64(len(bars))
	zero := p.py(0)
	for i, b := range bars {
		x := p.left + float64(i)*slot
		y := p.py(b.Value)
		top, h := math.Min(y, zero), math.Abs(zero-y)
		p.printf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s: %s</title></rect>`,
			x+slot*0.1, top, slot*0.8, h, fillColor, template.HTMLEscapeString(b.Label), tick(b.Value))
		p.text(x+slot/2, p.top+p.height+14, "middle", shorten(b.Label, 10), 9)
	}
	p.axes(v)
}

func (p *plot) points(v Visualization) {
	pts := v.Points
	if len(pts) == 0 {
		return
	}
	p.xLo, p.xHi = pts[0].X, pts[0].X
	p.yLo, p.yHi = pts[0].Y, pts[0].Y
	for _, pt := range pts {
		p.xLo, p.xHi = math.Min(p.xLo, pt.X), math.Max(p.xHi, pt.X)
		p.yLo, p.yHi = math.Min(p.yLo, pt.Y), math.Max(p.yHi, pt.Y)
	}
	stride := 1
	if len(pts) > maxDrawnPoints {
		stride = (len(pts) + maxDrawnPoints - 1) / maxDrawnPoints
	}
	if v.Kind == KindLine {
		var coords []string
		for i := 0; i < len(pts); i += stride {
			coords = append(coords, fmt.Sprintf("%.1f,%.1f", p.px(pts[i].X), p.py(pts[i].Y)))
		}
		p.printf(`<polyline fill="none" stroke="%s" stroke-width="1.5" points="%s"/>`, fillColor, strings.Join(coords, " "))
		base := p.top + p.height
		p.text(p.left, base+16, "start", pts[0].Label, 10)
		p.text(p.left+p.width, base+16, "end", pts[len(pts)-1].Label, 10)
	} else {
		for i := 0; i < len(pts); i += stride {
			p.printf(`<circle cx="%.1f" cy="%.1f" r="2.5" fill="%s" fill-opacity="0.6"/>`, p.px(pts[i].X), p.py(pts[i].Y), fillColor)
		}
		p.xTicks()
	}
	p.axes(v)
}

func (p *plot) boxes(v Visualization) {
	boxes := v.Boxes
	if len(boxes) > maxDrawnBars {
		boxes = boxes[:maxDrawnBars]
	}
	if len(boxes) == 0 {
		return
	}
	p.yLo, p.yHi = boxes[0].Min, boxes[0].Max
	for _, b := range boxes {
		p.yLo, p.yHi = math.Min(p.yLo, b.Min), math.Max(p.yHi, b.Max)
		for _, o := range b.Outliers {
			p.yLo, p.yHi = math.Min(p.yLo, o), math.Max(p.yHi, o)
		}
	}
	slot := p.width / float64(len(boxes))
	for i, b := range boxes {
		cx := p.left + float64(i)*slot + slot/2
		half := math.Min(slot*0.3, 40)
		p.printf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`, cx, p.py(b.Min), cx, p.py(b.Max))
		q3, q1 := p.py(b.Q3), p.py(b.Q1)
		p.printf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" fill-opacity="0.7" stroke="#333"/>`,
			cx-half, q3, 2*half, math.Max(q1-q3, 1), fillColor)
		p.printf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#fff" stroke-width="2"/>`, cx-half, p.py(b.Median), cx+half, p.py(b.Median))
		for _, o := range b.Outliers {
			p.printf(`<circle cx="%.1f" cy="%.1f" r="2.5" fill="%s"/>`, cx, p.py(o), accentColor)
		}
		p.text(cx, p.top+p.height+14, "middle", shorten(b.Group, 10), 9)
	}
	p.axes(v)
}
