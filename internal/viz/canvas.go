package viz

import "strings"

const brailleBlank = 0x2800

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille dot canvas of Width x Height cells, so Width*2 by
// Height*4 addressable dots.
type Canvas struct {
	Width, Height int
	cells         [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the canvas size in dots.
func (c *Canvas) Dots() (w, h int) { return c.Width * 2, c.Height * 4 }

// Set turns on the dot at (x, y). Dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.cells[row][col] |= dotBits[y%4][x%2]
}

func (c *Canvas) Clear() {
	for _, row := range c.cells {
		for j := range row {
			row[j] = brailleBlank
		}
	}
}

// Line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x1 < x0 {
		sx = -1
	}
	if y1 < y0 {
		sy = -1
	}
	e := dx + dy
	for {
		c.Set(x0, y0)
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

func (c *Canvas) String() string {
	var sb strings.Builder
	for _, row := range c.cells {
		sb.WriteString(string(row))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
