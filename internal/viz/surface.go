package viz

import "math"

// Surface is a regular grid of heights. landscape.Grid satisfies it.
type Surface interface {
	Dims() (c, r int)
	X(c int) float64
	Y(r int) float64
	Z(c, r int) float64
}

type vec3 struct{ X, Y, Z float64 }

// Camera is an orthographic view set by elevation and azimuth in degrees.
type Camera struct {
	Elevation, Azimuth float64
}

// project rotates p about the vertical axis by azimuth, then tilts it by
// elevation.
func (c Camera) project(p vec3) (sx, sy float64) {
	az := c.Azimuth * math.Pi / 180
	el := c.Elevation * math.Pi / 180
	x := p.X*math.Cos(az) - p.Y*math.Sin(az)
	y := p.X*math.Sin(az) + p.Y*math.Cos(az)
	return x, p.Z*math.Cos(el) + y*math.Sin(el)
}

type segment struct{ x0, y0, x1, y1 float64 }

// Wireframe draws s as grid lines on a width x height braille canvas.
// Axes and heights are normalised to [-0.5, 0.5] before projection.
func Wireframe(s Surface, cam Camera, width, height int) string {
	nc, nr := s.Dims()
	c := NewCanvas(width, height)
	if nc < 2 || nr < 2 || width < 1 || height < 1 {
		return c.String()
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < nc; i++ {
		for j := 0; j < nr; j++ {
			lo, hi = min(lo, s.Z(i, j)), max(hi, s.Z(i, j))
		}
	}
	norm := func(v, a, b float64) float64 {
		if b == a {
			return 0
		}
		return (v-a)/(b-a) - 0.5
	}
	x0, x1 := s.X(0), s.X(nc-1)
	y0, y1 := s.Y(0), s.Y(nr-1)
	point := func(i, j int) vec3 {
		return vec3{norm(s.X(i), x0, x1), norm(s.Y(j), y0, y1), norm(s.Z(i, j), lo, hi)}
	}

	var segs []segment
	add := func(a, b vec3) {
		ax, ay := cam.project(a)
		bx, by := cam.project(b)
		segs = append(segs, segment{ax, ay, bx, by})
	}
	for i := 0; i < nc; i++ {
		for j := 0; j < nr; j++ {
			if i+1 < nc {
				add(point(i, j), point(i+1, j))
			}
			if j+1 < nr {
				add(point(i, j), point(i, j+1))
			}
		}
	}

	dw, dh := c.Dots()
	scale := float64(min(dw, dh*2)-1) / 1.8
	toDot := func(x, y float64) (int, int) {
		return int(math.Round(x*scale)) + dw/2, dh/2 - int(math.Round(y*scale/2))
	}
	for _, sg := range segs {
		ax, ay := toDot(sg.x0, sg.y0)
		bx, by := toDot(sg.x1, sg.y1)
		c.Line(ax, ay, bx, by)
	}
	return c.String()
}
