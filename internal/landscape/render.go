package landscape

import (
	"bufio"
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Output file names written by Render.
const (
	ContourFile       = "landscape_contour.png"
	HeatmapFile       = "landscape_heatmap.png"
	SurfaceFile       = "landscape_surface.png"
	CrossSectionsFile = "landscape_cross_sections.png"
)

// RenderOptions controls titles and image geometry.
type RenderOptions struct {
	Title  string
	ZLabel string
	Levels int
	DPI    int
	// Width and Height are in inches.
	Width, Height float64
	// Elevation and Azimuth set the surface view, in degrees.
	Elevation, Azimuth float64
	Logger             *slog.Logger
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Title:     "Objective Function Landscape",
		ZLabel:    "Range (ft)",
		Levels:    20,
		DPI:       300,
		Width:     8,
		Height:    6,
		Elevation: 25,
		Azimuth:   45,
	}
}

// Report lists the written files and the statistics of the rendered grid.
// Min and Max are taken from the input values, not from the images.
type Report struct {
	Dir   string
	Files []string
	Stats
}

// Render writes the contour, heatmap, projected surface and cross-section
// images of g into dir.
func Render(ctx context.Context, g *Grid, dir string, opts RenderOptions) (*Report, error) {
	def := DefaultRenderOptions()
	if opts.Levels <= 0 {
		opts.Levels = def.Levels
	}
	if opts.DPI <= 0 {
		opts.DPI = def.DPI
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	st := g.Stats()
	if st.Max == st.Min {
		return nil, fmt.Errorf("%w: flat landscape (all values %g)", ErrInvalidData, st.Min)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	rep := &Report{Dir: dir, Stats: st}
	steps := []struct {
		file  string
		build func(*Grid, Stats, RenderOptions) (*plot.Plot, error)
	}{
		{ContourFile, contourPlot},
		{HeatmapFile, heatmapPlot},
		{SurfaceFile, surfacePlot},
		{CrossSectionsFile, crossSectionPlot},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		p, err := s.build(g, st, opts)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", s.file, err)
		}
		path := filepath.Join(dir, s.file)
		if err := savePlotPNG(p, opts.Width, opts.Height, opts.DPI, path); err != nil {
			return rep, err
		}
		rep.Files = append(rep.Files, path)
		log.Debug("landscape image written", "file", path)
	}
	return rep, nil
}

func savePlotPNG(p *plot.Plot, widthIn, heightIn float64, dpi int, filename string) error {
	w := vg.Length(widthIn) * vg.Inch
	h := vg.Length(heightIn) * vg.Inch

	c := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

func axisLabels(p *plot.Plot, g *Grid) {
	p.X.Label.Text = fmt.Sprintf("Principal Direction 1 (λ1 = %.2f)", g.Eigen[0])
	p.Y.Label.Text = fmt.Sprintf("Principal Direction 2 (λ2 = %.2f)", g.Eigen[1])
}

func optimumMarker(x, y float64, c color.Color) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Shape = draw.PyramidGlyph{}
	s.GlyphStyle.Radius = vg.Points(7)
	s.GlyphStyle.Color = c
	return s, nil
}

// contourLevels spaces n levels evenly inside (lo, hi).
func contourLevels(lo, hi float64, n int) []float64 {
	levels := make([]float64, n)
	step := (hi - lo) / float64(n)
	for i := range levels {
		levels[i] = lo + step*(float64(i)+0.5)
	}
	return levels
}

func contourPlot(g *Grid, st Stats, opts RenderOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title + "\nContour Plot"
	axisLabels(p, g)

	c := plotter.NewContour(g, contourLevels(st.Min, st.Max, opts.Levels), palette.Heat(opts.Levels, 1))
	p.Add(plotter.NewGrid(), c)

	m, err := optimumMarker(0, 0, color.Black)
	if err != nil {
		return nil, err
	}
	p.Add(m)
	p.Legend.Add("Optimum", m)
	return p, nil
}

func heatmapPlot(g *Grid, st Stats, opts RenderOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title + "\nHeatmap"
	axisLabels(p, g)

	h := plotter.NewHeatMap(g, palette.Heat(64, 1))
	h.Min, h.Max = st.Min, st.Max
	p.Add(h)

	m, err := optimumMarker(0, 0, color.White)
	if err != nil {
		return nil, err
	}
	p.Add(m)
	p.Legend.Add("Optimum", m)
	return p, nil
}

type projected struct {
	pts   plotter.XYs
	depth float64
	z     float64
}

// surfacePlot draws the grid as shaded quads projected onto the view plane
// and painted far to near.
func surfacePlot(g *Grid, st Stats, opts RenderOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s\n3D Surface (elev %.0f, azim %.0f)", opts.Title, opts.Elevation, opts.Azimuth)
	p.HideAxes()

	n := g.Size()
	el, az := opts.Elevation*math.Pi/180, opts.Azimuth*math.Pi/180
	xr := math.Max(math.Abs(g.X(0)), math.Abs(g.X(n-1)))
	yr := math.Max(math.Abs(g.Y(0)), math.Abs(g.Y(n-1)))
	zmid, zr := (st.Max+st.Min)/2, (st.Max-st.Min)/2

	project := func(c, r int) (sx, sy, depth float64) {
		x, y, z := g.X(c)/xr, g.Y(r)/yr, (g.Z(c, r)-zmid)/zr
		sx = -x*math.Sin(az) + y*math.Cos(az)
		sy = -x*math.Sin(el)*math.Cos(az) - y*math.Sin(el)*math.Sin(az) + z*math.Cos(el)
		depth = x*math.Cos(el)*math.Cos(az) + y*math.Cos(el)*math.Sin(az) + z*math.Sin(el)
		return sx, sy, depth
	}

	quads := make([]projected, 0, (n-1)*(n-1))
	for r := 0; r < n-1; r++ {
		for c := 0; c < n-1; c++ {
			var q projected
			for _, k := range [][2]int{{c, r}, {c + 1, r}, {c + 1, r + 1}, {c, r + 1}} {
				sx, sy, d := project(k[0], k[1])
				q.pts = append(q.pts, plotter.XY{X: sx, Y: sy})
				q.depth += d / 4
				q.z += g.Z(k[0], k[1]) / 4
			}
			quads = append(quads, q)
		}
	}
	sort.Slice(quads, func(i, j int) bool { return quads[i].depth < quads[j].depth })

	colors := palette.Heat(64, 1).Colors()
	for _, q := range quads {
		poly, err := plotter.NewPolygon(q.pts)
		if err != nil {
			return nil, err
		}
		idx := int((q.z - st.Min) / (st.Max - st.Min) * float64(len(colors)-1))
		poly.Color = colors[max(0, min(idx, len(colors)-1))]
		poly.LineStyle.Width = vg.Points(0.2)
		poly.LineStyle.Color = color.Gray{Y: 60}
		p.Add(poly)
	}

	cc, cr := g.Center()
	sx, sy, _ := project(cc, cr)
	m, err := optimumMarker(sx, sy, color.RGBA{R: 255, A: 255})
	if err != nil {
		return nil, err
	}
	p.Add(m)
	p.Legend.Add("Optimum", m)
	p.Legend.Left = true
	return p, nil
}

func crossSectionPlot(g *Grid, st Stats, opts RenderOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Cross-Sections Through Optimum"
	p.X.Label.Text = "Distance from Optimum"
	p.Y.Label.Text = opts.ZLabel
	p.Add(plotter.NewGrid())

	dir1, dir2 := g.CrossSections()
	n := g.Size()
	xs1, xs2 := make(plotter.XYs, n), make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		xs1[i] = plotter.XY{X: g.X(i), Y: dir1[i]}
		xs2[i] = plotter.XY{X: g.Y(i), Y: dir2[i]}
	}

	series := []struct {
		name  string
		xys   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
	}{
		{"Along Principal Direction 1", xs1, color.RGBA{B: 255, A: 255}, draw.CircleGlyph{}},
		{"Along Principal Direction 2", xs2, color.RGBA{R: 255, A: 255}, draw.SquareGlyph{}},
	}
	for _, s := range series {
		l, pts, err := plotter.NewLinePoints(s.xys)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Width = vg.Points(2)
		l.LineStyle.Color = s.color
		pts.GlyphStyle.Shape = s.shape
		pts.GlyphStyle.Color = s.color
		pts.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(l, pts)
		p.Legend.Add(s.name, l, pts)
	}

	opt, err := plotter.NewLine(plotter.XYs{{X: 0, Y: st.Min}, {X: 0, Y: st.Max}})
	if err != nil {
		return nil, err
	}
	opt.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(opt)
	p.Legend.Add("Optimum", opt)

	lo := math.Min(g.X(0), g.Y(0))
	hi := math.Max(g.X(n-1), g.Y(n-1))
	level, err := plotter.NewLine(plotter.XYs{{X: lo, Y: st.Optimum}, {X: hi, Y: st.Optimum}})
	if err != nil {
		return nil, err
	}
	level.LineStyle.Color = color.RGBA{G: 128, A: 255}
	level.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(3)}
	p.Add(level)

	p.Legend.Top = false
	return p, nil
}
