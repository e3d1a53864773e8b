package constraints_test

import (
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/symbolic"
)

func drumPreset() constraints.Vector {
	return constraints.Vector{
		"x1": 436, "y1": 622,
		"x2": 536, "y2": 472.7,
		"x3": 578, "y3": 515,
		"r": 60, "L": 13,
		"vx1": 0, "vy1": 0, "vx2": 0, "vy2": 0, "vx3": 0, "vy3": 0,
	}
}

// centralPartial differentiates e numerically along one symbol.
func centralPartial(e symbolic.Expr, v constraints.Vector, name string) float64 {
	h := 1e-6 * math.Max(1, math.Abs(v[name]))
	plus, minus := v.Clone(), v.Clone()
	plus[name] += h
	minus[name] -= h
	fp, err := e.Eval(plus)
	Expect(err).NotTo(HaveOccurred())
	fm, err := e.Eval(minus)
	Expect(err).NotTo(HaveOccurred())
	return (fp - fm) / (2 * h)
}

var _ = Describe("Registry", func() {
	It("resolves every listed family", func() {
		for _, name := range constraints.Names() {
			f, err := constraints.New(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Name()).To(Equal(name))
		}
	})

	It("rejects unknown names", func() {
		_, err := constraints.New("pulley")
		Expect(err).To(MatchError(ContainSubstring("unknown constraint family")))
	})

	It("parses axis orders", func() {
		o, err := constraints.ParseAxisOrder("YX")
		Expect(err).NotTo(HaveOccurred())
		Expect(o).To(Equal(constraints.YX))
		_, err = constraints.ParseAxisOrder("zx")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Colinear", func() {
	var (
		fam *constraints.Colinear
		rng *rand.Rand
	)

	BeforeEach(func() {
		fam = constraints.NewColinear(constraints.XY)
		rng = rand.New(rand.NewSource(7))
	})

	It("evaluates to the signed perpendicular offset", func() {
		for i := 0; i < 20; i++ {
			v := fam.Sample(rng)
			want, err := fam.Offset(v)
			Expect(err).NotTo(HaveOccurred())
			got, err := fam.Residual().Eval(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNumerically("~", want, 1e-9))
		}
	})

	It("is zero for a slide on the line", func() {
		v := fam.Sample(rng)
		v["x"] = v["xbase"] + 0.37*(v["xref"]-v["xbase"])
		v["y"] = v["ybase"] + 0.37*(v["yref"]-v["ybase"])
		got, err := fam.Residual().Eval(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNumerically("~", 0, 1e-9))
	})

	It("matches the reference gradient numerically", func() {
		v := fam.Sample(rng)
		for _, ref := range fam.References() {
			if ref.Target == constraints.AccelTarget {
				continue
			}
			want := centralPartial(fam.Residual(), v, ref.Target)
			got, err := ref.Expr.Eval(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNumerically("~", want, 1e-6), ref.Name)
		}
	})

	It("rejects reference coincident with base", func() {
		v := fam.Sample(rng)
		v["xref"], v["yref"] = v["xbase"], v["ybase"]
		err := fam.Check(v)
		var de *symbolic.DomainError
		Expect(errors.As(err, &de)).To(BeTrue())
		Expect(de.Guard).To(Equal(symbolic.GuardDegenerate))
	})

	It("lists coordinates slide, reference, base", func() {
		Expect(constraints.Coordinates(fam)).To(Equal([]string{"x", "y", "xref", "yref", "xbase", "ybase"}))
	})
})

var _ = Describe("RopeDrum", func() {
	var fam *constraints.RopeDrum

	BeforeEach(func() {
		fam = constraints.NewRopeDrum(constraints.XY)
	})

	Context("at the drum counterweight preset", func() {
		It("has the expected tangent length and arc angle", func() {
			tl, err := fam.TangentLength(drumPreset())
			Expect(err).NotTo(HaveOccurred())
			Expect(tl).To(BeNumerically("~", 169.3826732579, 1e-8))

			arc, err := fam.ArcAngle(drumPreset(), true)
			Expect(err).NotTo(HaveOccurred())
			Expect(arc).To(BeNumerically("~", -2.6023632277, 1e-8))
		})

		It("fits the rope length that zeroes the residual", func() {
			v := drumPreset()
			L, err := fam.FitLength(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(L).To(BeNumerically("~", 13.240879597, 1e-8))

			v["L"] = L
			c, err := fam.Residual().Eval(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNumerically("~", 0, 1e-6))
		})

		It("leaves a residual with the unfitted length", func() {
			c, err := fam.Residual().Eval(drumPreset())
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNumerically("~", 0.240879597, 1e-6))
		})

		It("evaluates the reference gradient", func() {
			want := map[string]float64{
				"x1": -0.247139865, "y1": 0.968979818,
				"x2": 0.961407487, "y2": -1.678181712,
				"x3": -0.714267622, "y3": 0.709201895,
			}
			for _, ref := range fam.References() {
				w, ok := want[ref.Target]
				if !ok {
					continue
				}
				got, err := ref.Expr.Eval(drumPreset())
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(BeNumerically("~", w, 1e-8), ref.Name)
				Expect(got).To(BeNumerically("~", centralPartial(fam.Residual(), drumPreset(), ref.Target), 1e-6), ref.Name)
			}
		})
	})

	It("raises a domain error when the free end is inside the drum", func() {
		v := drumPreset()
		v["x1"], v["y1"] = 540, 480

		_, err := fam.TangentLength(v)
		var de *symbolic.DomainError
		Expect(errors.As(err, &de)).To(BeTrue())
		Expect(de.Guard).To(Equal(symbolic.GuardSqrt))
		Expect(de.Values).To(HaveKey("r"))

		err = fam.Check(v)
		Expect(errors.As(err, &de)).To(BeTrue())
		Expect(de.Guard).To(Equal(symbolic.GuardDegenerate))

		_, err = fam.FitLength(v)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an arc angle that crosses the atan2 branch", func() {
		v := constraints.Vector{
			"x1": 200 * math.Cos(2.5), "y1": 200 * math.Sin(2.5),
			"x2": 0, "y2": 0,
			"x3": 10 * math.Cos(-2.5), "y3": 10 * math.Sin(-2.5),
			"r": 10, "L": 0,
			"vx1": 0, "vy1": 0, "vx2": 0, "vy2": 0, "vx3": 0, "vy3": 0,
		}
		raw, err := fam.ArcAngle(v, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(BeNumerically("<", -math.Pi))

		var de *symbolic.DomainError
		err = fam.Check(v)
		Expect(errors.As(err, &de)).To(BeTrue())
		Expect(de.Guard).To(Equal(symbolic.GuardDegenerate))
		Expect(de.Arg).To(BeNumerically("~", raw, 1e-12))
		Expect(de.Values).To(HaveKey("x3"))

		_, err = fam.FitLength(v)
		Expect(errors.As(err, &de)).To(BeTrue())
	})

	It("fits a length that zeroes the residual wherever Check passes", func() {
		rng := rand.New(rand.NewSource(5))
		accepted := 0
		for i := 0; i < 200; i++ {
			v := constraints.Vector{
				"x1": 0, "y1": 0, "x2": 0, "y2": 0,
				"x3": 0, "y3": 0, "r": 10, "L": 0,
			}
			a1, a3 := rng.Float64()*2*math.Pi-math.Pi, rng.Float64()*2*math.Pi-math.Pi
			v["x1"], v["y1"] = 50*math.Cos(a1), 50*math.Sin(a1)
			v["x3"], v["y3"] = 10*math.Cos(a3), 10*math.Sin(a3)
			if fam.Check(v) != nil {
				continue
			}
			accepted++
			L, err := fam.FitLength(v)
			Expect(err).NotTo(HaveOccurred())
			v["L"] = L
			c, err := fam.Residual().Eval(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNumerically("~", 0, 1e-9))
		}
		Expect(accepted).To(BeNumerically(">", 0))
	})

	It("samples vectors on the constraint surface", func() {
		rng := rand.New(rand.NewSource(11))
		for i := 0; i < 20; i++ {
			v := fam.Sample(rng)
			Expect(fam.Check(v)).To(Succeed())
			Expect(constraints.Missing(fam, v)).To(BeEmpty())
			c, err := fam.Residual().Eval(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNumerically("~", 0, 1e-6))
		}
	})

	It("matches the reference accelerations along the motion line", func() {
		rng := rand.New(rand.NewSource(3))
		v := fam.Sample(rng)
		motion := constraints.Motion(fam)
		at := func(e symbolic.Expr, t float64) float64 {
			w := v.Clone()
			for p, vel := range motion {
				w[p] += t * v[vel]
			}
			out, err := e.Eval(w)
			Expect(err).NotTo(HaveOccurred())
			return out
		}
		const h = 1e-3
		for _, ref := range fam.References() {
			if ref.Target != constraints.AccelTarget {
				continue
			}
			of := ref.Of
			if of == nil {
				of = fam.Residual()
			}
			want := (at(of, h) - 2*at(of, 0) + at(of, -h)) / (h * h)
			got, err := ref.Expr.Eval(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNumerically("~", want, 1e-4*math.Max(1, math.Abs(want))), ref.Name)
		}
	})

	Describe("RopeDrumY", func() {
		It("shares the residual and swaps stored coordinates", func() {
			y := constraints.NewRopeDrum(constraints.YX)
			Expect(y.Name()).To(Equal("ropedrum_y"))
			Expect(symbolic.Equal(y.Residual(), fam.Residual())).To(BeTrue())
			Expect(constraints.Coordinates(y)).To(Equal([]string{"y1", "x1", "y2", "x2", "y3", "x3"}))
		})
	})
})

var _ = Describe("WrapAngle", func() {
	DescribeTable("maps into [-pi, pi]",
		func(in, want float64) {
			Expect(constraints.WrapAngle(in)).To(BeNumerically("~", want, 1e-12))
		},
		Entry("inside", 1.0, 1.0),
		Entry("above", 4.0, 4.0-2*math.Pi),
		Entry("below", -7.0, -7.0+2*math.Pi),
	)
})
