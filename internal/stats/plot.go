package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series is one named line of a timeline plot. Lo and Hi fix the plotted
// range; when they are equal the range is taken from the data.
type Series struct {
	Name   string
	Values []float64
	Lo     float64
	Hi     float64
}

// PlotOptions controls timeline rendering. Zero values select defaults.
type PlotOptions struct {
	Title  string
	Width  int
	Height int
	// Color forces ANSI colors even when w is not a terminal.
	Color bool
}

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 10
	axisLabelTop        = "100%"
	axisLabelMid        = "50%"
	axisLabelBottom     = "0%"
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var colorPalette = []string{
	"\x1b[36m", // cyan
	"\x1b[35m", // magenta
	"\x1b[33m", // yellow
	"\x1b[32m", // green
}

// brailleDots maps a dot position (column, row) inside a 2x4 braille cell to
// its bit.
var brailleDots = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// PlotTimeline renders per-second series as a braille chart. Every series is
// scaled to its own range; the legend lists those ranges.
func PlotTimeline(w io.Writer, series []Series, opts PlotOptions) error {
	series = nonEmpty(series)
	if len(series) == 0 {
		return nil
	}
	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	width := opts.Width
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)

	seconds := 0
	layers := make([][][]uint8, len(series))
	ranges := make([][2]float64, len(series))
	for i, s := range series {
		seconds = max(seconds, len(s.Values))
		lo, hi := seriesRange(s)
		ranges[i] = [2]float64{lo, hi}
		layers[i] = rasterize(resample(s.Values, width), lo, hi, width, height)
	}

	useColor := shouldUseColor(w, opts.Color)
	if opts.Title != "" {
		if _, err := fmt.Fprintln(w, opts.Title); err != nil {
			return err
		}
	}
	labelWidth := runewidth.StringWidth(axisLabelTop)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(axisLabel(y, height), labelWidth))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, layer := composeCell(layers, x, y)
			ch := rune(0x2800 + int(mask))
			if useColor && layer >= 0 {
				row.WriteString(colorPalette[layer%len(colorPalette)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	axis := fmt.Sprintf("0s%*ds", width-3, seconds)
	if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", labelWidth+runewidth.StringWidth(axisSeparator)), axis); err != nil {
		return err
	}
	for i, s := range series {
		label := fmt.Sprintf("%c %s [%.2f..%.2f]", rune(0x2800+int(brailleDots[0][0])), s.Name, ranges[i][0], ranges[i][1])
		if useColor {
			label = colorPalette[i%len(colorPalette)] + label + colorReset
		}
		if _, err := fmt.Fprintln(w, label); err != nil {
			return err
		}
	}
	return nil
}

// PlotWidthFor returns the plot width that fits totalWidth columns beside the
// axis labels.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := runewidth.StringWidth(axisLabelTop) + runewidth.StringWidth(axisSeparator)
	return max(totalWidth-axisWidth, minPlotWidth)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func nonEmpty(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func seriesRange(s Series) (float64, float64) {
	lo, hi := s.Lo, s.Hi
	if lo == hi {
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, v := range s.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi-lo < 1e-9 {
		hi = lo + 1
	}
	return lo, hi
}

func axisLabel(row, height int) string {
	switch {
	case row == 0:
		return axisLabelTop
	case row == height-1:
		return axisLabelBottom
	case height > 2 && row == height/2:
		return axisLabelMid
	default:
		return ""
	}
}

// resample maps per-second values onto width columns. Shrinking keeps the
// peak of every bucket; stretching repeats each second.
func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	n := len(values)
	for x := 0; x < width; x++ {
		start := x * n / width
		end := max((x+1)*n/width, start+1)
		peak := values[start]
		for _, v := range values[start:min(end, n)] {
			peak = math.Max(peak, v)
		}
		out[x] = peak
	}
	return out
}

// rasterize draws values as a connected line into a height x width grid of
// braille cells.
func rasterize(values []float64, lo, hi float64, width, height int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	dotRows := height * 4
	prevX, prevY := -1, -1
	for x, v := range values {
		pos := (math.Min(math.Max(v, lo), hi) - lo) / (hi - lo)
		py := int(math.Round((1 - pos) * float64(dotRows-1)))
		px := x * 2
		if prevX < 0 {
			setDot(cells, px, py)
		} else {
			drawLine(prevX, prevY, px, py, func(dx, dy int) { setDot(cells, dx, dy) })
		}
		prevX, prevY = px, py
	}
	return cells
}

func composeCell(layers [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	first := -1
	for i, cells := range layers {
		m := cells[y][x]
		if m == 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		mask |= m
	}
	return mask, first
}

func setDot(cells [][]uint8, x, y int) {
	cy, cx := y/4, x/2
	if x < 0 || y < 0 || cy >= len(cells) || cx >= len(cells[cy]) {
		return
	}
	cells[cy][cx] |= brailleDots[x%2][y%4]
}

// drawLine plots the integer points between two dots (Bresenham).
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
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
		plot(x0, y0)
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
