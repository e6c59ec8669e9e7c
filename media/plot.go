// Package media renders the line plot animation and muxes it with the
// soundtrack. Both are done with ffmpeg: frames are drawn in process and
// piped to ffmpeg as raw video.
package media

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style of the plot.
type Style struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Title      string `yaml:"title"`
	XLabel     string `yaml:"x_label"`
	YLabel     string `yaml:"y_label"`
	Color      string `yaml:"color"`
	Background string `yaml:"background"`
}

// DefaultStyle returns style of math mode plots.
func DefaultStyle() Style {
	return Style{
		Width:      640,
		Height:     480,
		Title:      "y vs x",
		XLabel:     "x [rad]",
		YLabel:     "y",
		Color:      "navy",
		Background: "white",
	}
}

// Plot margins in pixels.
const (
	marginLeft   = 60
	marginRight  = 20
	marginTop    = 40
	marginBottom = 50
	gridLines    = 5
)

var (
	axisColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	gridColor = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
)

// Color returns named color, e.g. "navy".
func Color(name string) (color.RGBA, error) {
	c, ok := colornames.Map[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown color %q", name)
	}
	return c, nil
}

// Plot draws a line plot point by point.
type Plot struct {
	style      Style
	xs, ys     []float64
	xMin, xMax float64
	yMin, yMax float64
	line       color.RGBA
	background color.RGBA
	canvas     *image.RGBA
	drawn      int
}

// NewPlot creates plot of ys against xs. Y axis is padded by 1 on both
// sides.
func NewPlot(style Style, xs, ys []float64) (*Plot, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%d x values for %d y values", len(xs), len(ys))
	}
	if style.Width <= marginLeft+marginRight || style.Height <= marginTop+marginBottom {
		return nil, fmt.Errorf("plot size %dx%d is too small", style.Width, style.Height)
	}
	if style.Width%2 != 0 || style.Height%2 != 0 {
		return nil, fmt.Errorf("plot size %dx%d must be even", style.Width, style.Height)
	}
	line, err := Color(style.Color)
	if err != nil {
		return nil, err
	}
	background, err := Color(style.Background)
	if err != nil {
		return nil, err
	}
	p := Plot{
		style:      style,
		xs:         xs,
		ys:         ys,
		line:       line,
		background: background,
	}
	p.xMin, p.xMax = bounds(xs)
	p.yMin, p.yMax = bounds(ys)
	p.yMin--
	p.yMax++
	p.reset()
	return &p, nil
}

// Len returns number of points.
func (p *Plot) Len() int {
	return len(p.ys)
}

// Next draws the next point and returns the canvas. Canvas is reused by
// subsequent calls. False is returned when all points are drawn.
func (p *Plot) Next() (*image.RGBA, bool) {
	if p.drawn >= len(p.ys) {
		return p.canvas, false
	}
	x, y := p.point(p.drawn)
	if p.drawn == 0 {
		p.canvas.Set(x, y, p.line)
	} else {
		px, py := p.point(p.drawn - 1)
		drawLine(p.canvas, px, py, x, y, p.line)
	}
	p.drawn++
	return p.canvas, true
}

// point returns pixel coordinates of point i.
func (p *Plot) point(i int) (int, int) {
	w := float64(p.style.Width - marginLeft - marginRight)
	h := float64(p.style.Height - marginTop - marginBottom)
	x := marginLeft + scale(p.xs[i], p.xMin, p.xMax)*w
	y := float64(p.style.Height-marginBottom) - scale(p.ys[i], p.yMin, p.yMax)*h
	return int(math.Round(x)), int(math.Round(y))
}

// reset draws an empty plot: background, grid, axes and labels.
func (p *Plot) reset() {
	s := p.style
	p.canvas = image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(p.canvas, p.canvas.Bounds(), &image.Uniform{C: p.background}, image.Point{}, draw.Src)

	left, right := marginLeft, s.Width-marginRight
	top, bottom := marginTop, s.Height-marginBottom
	for i := 0; i <= gridLines; i++ {
		x := left + (right-left)*i/gridLines
		y := top + (bottom-top)*i/gridLines
		drawLine(p.canvas, x, top, x, bottom, gridColor)
		drawLine(p.canvas, left, y, right, y, gridColor)
	}
	drawLine(p.canvas, left, top, left, bottom, axisColor)
	drawLine(p.canvas, left, bottom, right, bottom, axisColor)

	face := basicfont.Face7x13
	p.text(s.Title, (s.Width-textWidth(face, s.Title))/2, marginTop/2+5)
	p.text(s.XLabel, (s.Width-textWidth(face, s.XLabel))/2, s.Height-10)
	p.text(s.YLabel, 5, s.Height/2)
	p.text(formatTick(p.yMax), 5, top+5)
	p.text(formatTick(p.yMin), 5, bottom)
	p.text(formatTick(p.xMin), left, bottom+15)
	last := formatTick(p.xMax)
	p.text(last, right-textWidth(face, last), bottom+15)
	p.drawn = 0
}

func (p *Plot) text(s string, x, y int) {
	d := font.Drawer{
		Dst:  p.canvas,
		Src:  image.NewUniform(axisColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Round()
}

func formatTick(v float64) string {
	return fmt.Sprintf("%.3g", v)
}

func bounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// scale maps v into [0, 1]. Zero-width range maps to the middle.
func scale(v, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

// drawLine draws a line with Bresenham's algorithm.
func drawLine(img draw.Image, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
