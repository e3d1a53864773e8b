package landscape

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
)

// Preview plots both cross-sections through the optimum in the terminal.
func Preview(g *Grid, width, height int) string {
	dir1, dir2 := g.CrossSections()
	return asciigraph.PlotMany([][]float64{dir1, dir2},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption("cross-sections: direction 1 (blue), direction 2 (red)"),
	)
}

// Summary is the one-paragraph description printed after loading a grid.
func Summary(g *Grid) string {
	st := g.Stats()
	return fmt.Sprintf(
		"Loaded %d data points (%dx%d)\nEigenvalue 1: %.2f, Eigenvalue 2: %.2f\nScale 1: %.2f, Scale 2: %.2f\nObjective range: %.1f - %.1f (optimum %.1f)",
		st.Points, g.Size(), g.Size(), g.Eigen[0], g.Eigen[1], g.Scale1, g.Scale2, st.Min, st.Max, st.Optimum)
}
