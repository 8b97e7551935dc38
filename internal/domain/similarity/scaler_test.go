package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func scalerInput() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		1, 10, 0.1,
		2, 20, 0.1,
		3, 40, 0.1,
		6, 80, 0.1,
	})
}

func TestStandardScaler(t *testing.T) {
	x := scalerInput()
	sc := newScaler(ScalerStandard)
	sc.fit(x)
	out := sc.transform(x)

	col := make([]float64, 4)
	for j := 0; j < 2; j++ {
		mat.Col(col, j, out)
		mean := stat.Mean(col, nil)
		popStd := math.Sqrt(stat.Variance(col, nil) * 3 / 4)
		assert.InDelta(t, 0, mean, 1e-12)
		assert.InDelta(t, 1, popStd, 1e-12)
	}

	mat.Col(col, 2, out)
	for _, v := range col {
		assert.InDelta(t, 0, v, 1e-12)
	}
}

func TestMinMaxScaler(t *testing.T) {
	x := scalerInput()
	sc := newScaler(ScalerMinMax)
	sc.fit(x)
	out := sc.transform(x)

	col := make([]float64, 4)
	for j := 0; j < 2; j++ {
		mat.Col(col, j, out)
		for _, v := range col {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.Equal(t, 0.0, col[0])
		assert.Equal(t, 1.0, col[3])
	}

	mat.Col(col, 2, out)
	assert.Equal(t, []float64{0, 0, 0, 0}, col)
}

func TestCosineZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 2}, 0, math.Sqrt(5)))
}

func TestParseOptions(t *testing.T) {
	m, err := ParseMetric("")
	assert.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	mode, err := ParseMode("KNN")
	assert.NoError(t, err)
	assert.Equal(t, ModeIndex, mode)

	_, err = ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = ParseMode("approximate")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
