package landscape

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// SyntheticOptions shapes the demonstration landscape.
type SyntheticOptions struct {
	Size int
	// Eigenvalues are the variances along the two principal directions.
	Eigenvalues [2]float64
	// Covariance, when set, replaces Eigenvalues by its eigen-decomposition.
	Covariance mat.Symmetric
	Optimum    float64
	NoiseSigma float64
	Seed       int64
}

// DefaultSynthetic matches the demonstration plot of the whipper optimizer.
func DefaultSynthetic() SyntheticOptions {
	return SyntheticOptions{
		Size:        15,
		Eigenvalues: [2]float64{450, 180},
		Optimum:     2850,
		NoiseSigma:  30,
		Seed:        42,
	}
}

// PrincipalVariances returns the eigenvalues of a 2x2 covariance, largest first.
func PrincipalVariances(cov mat.Symmetric) ([2]float64, error) {
	if cov.SymmetricDim() != 2 {
		return [2]float64{}, fmt.Errorf("%w: covariance must be 2x2, got %dx%d", ErrInvalidData, cov.SymmetricDim(), cov.SymmetricDim())
	}
	var es mat.EigenSym
	if !es.Factorize(cov, false) {
		return [2]float64{}, fmt.Errorf("%w: eigen-decomposition of covariance failed", ErrInvalidData)
	}
	vals := es.Values(nil)
	if vals[0] < 0 {
		return [2]float64{}, fmt.Errorf("%w: covariance is not positive semi-definite (eigenvalue %g)", ErrInvalidData, vals[0])
	}
	return [2]float64{vals[1], vals[0]}, nil
}

// CovarianceScale converts principal variances into grid half-widths of
// three standard deviations.
func CovarianceScale(eig [2]float64) (s1, s2 float64) {
	return 3 * math.Sqrt(eig[0]), 3 * math.Sqrt(eig[1])
}

// Synthetic builds a quadratic bowl with a tilt term, a smooth ripple and
// seeded Gaussian noise on a Size x Size grid over [-1, 1]^2. The centre
// sample is pinned to the optimum.
func Synthetic(opts SyntheticOptions) (*Data, error) {
	n := opts.Size
	if n < 2 {
		return nil, fmt.Errorf("%w: synthetic grid needs at least 2 samples per axis, got %d", ErrInvalidData, n)
	}
	eig := opts.Eigenvalues
	if opts.Covariance != nil {
		var err error
		if eig, err = PrincipalVariances(opts.Covariance); err != nil {
			return nil, err
		}
	}
	if eig[0] <= 0 || eig[1] <= 0 {
		return nil, fmt.Errorf("%w: eigenvalues must be positive (%g, %g)", ErrInvalidData, eig[0], eig[1])
	}
	s1, s2 := CovarianceScale(eig)

	t := make([]float64, n)
	for k := range t {
		t[k] = -1 + 2*float64(k)/float64(n-1)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	d := &Data{
		Eigenvalues: []float64{eig[0], eig[1]},
		T1:          make([]float64, n*n),
		T2:          make([]float64, n*n),
		Objective:   make([]float64, n*n),
		Scale1:      s1,
		Scale2:      s2,
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k := i*n + j
			d.T1[k], d.T2[k] = t[j], t[i]
			x, y := t[j]*s1, t[i]*s2
			z := opts.Optimum - (0.4*x*x + 0.6*y*y + 0.3*x*y)
			z += 50*math.Sin(x/20)*math.Cos(y/15) + opts.NoiseSigma*rng.NormFloat64()
			d.Objective[k] = z
		}
	}
	d.Objective[(n/2)*n+n/2] = opts.Optimum

	d.MinObj, d.MaxObj = math.Inf(1), math.Inf(-1)
	for _, z := range d.Objective {
		d.MinObj = math.Min(d.MinObj, z)
		d.MaxObj = math.Max(d.MaxObj, z)
	}
	return d, nil
}
