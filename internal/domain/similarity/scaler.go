package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// scaler holds per-column parameters fitted on one prepared snapshot.
type scaler interface {
	fit(x mat.Matrix)
	transform(x mat.Matrix) *mat.Dense
}

func newScaler(kind ScalerKind) scaler {
	if kind == ScalerMinMax {
		return &minMaxScaler{}
	}
	return &standardScaler{}
}

// standardScaler centers each column on its mean and divides by the
// population standard deviation. Constant columns keep a unit scale so
// they collapse to zero.
type standardScaler struct {
	mean  []float64
	scale []float64
}

func (s *standardScaler) fit(x mat.Matrix) {
	r, c := x.Dims()
	s.mean = make([]float64, c)
	s.scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		variance := 0.0
		if r > 1 {
			variance = stat.Variance(col, nil) * float64(r-1) / float64(r)
		}
		std := math.Sqrt(variance)
		if nearZero(std, mean) {
			std = 1
		}
		s.mean[j] = mean
		s.scale[j] = std
	}
}

func (s *standardScaler) transform(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, x)
	return out
}

// minMaxScaler maps each column onto [0, 1]. Constant columns map to 0.
type minMaxScaler struct {
	min  []float64
	span []float64
}

func (s *minMaxScaler) fit(x mat.Matrix) {
	r, c := x.Dims()
	s.min = make([]float64, c)
	s.span = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		lo, hi := floats.Min(col), floats.Max(col)
		span := hi - lo
		if nearZero(span, hi) {
			span = 1
		}
		s.min[j] = lo
		s.span[j] = span
	}
}

func (s *minMaxScaler) transform(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.min[j]) / s.span[j]
	}, x)
	return out
}

// nearZero treats spreads within floating point noise of the column
// magnitude as zero.
func nearZero(spread, magnitude float64) bool {
	return spread <= 10*2.220446049250313e-16*math.Max(1, math.Abs(magnitude))
}
