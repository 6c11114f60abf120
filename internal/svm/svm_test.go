package svm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/raster"
)

// vegetationSamples returns three well separated classes over
// (ndvi, ndwi, height); the middle class is bracketed on every axis.
func vegetationSamples() []Sample {
	var out []Sample
	for i := 0; i < 10; i++ {
		j := float64(i%5) * 0.01
		out = append(out,
			Sample{Class: 0, Features: []float64{0.30 + j, -0.30 - j, 0.2 + j*5}},
			Sample{Class: 1, Features: []float64{0.50 + j, -0.40 - j, 1.5 + j*10}},
			Sample{Class: 2, Features: []float64{0.70 + j, -0.50 - j, 8.0 + j*50}},
		)
	}
	return out
}

func trainers() map[string]Trainer {
	return map[string]Trainer{
		"svm":      LinearSVM{Seed: 7},
		"centroid": Centroid{},
	}
}

func TestFit_SeparatesClasses(t *testing.T) {
	samples := vegetationSamples()
	for name, tr := range trainers() {
		t.Run(name, func(t *testing.T) {
			m, err := tr.Fit(samples)
			require.NoError(t, err)
			assert.Equal(t, 3, m.Dim())
			for i, s := range samples {
				assert.Equal(t, s.Class, m.Predict(s.Features), "sample %d", i)
			}
			assert.Equal(t, 0, m.Predict([]float64{0.32, -0.32, 0.3}))
			assert.Equal(t, 1, m.Predict([]float64{0.52, -0.42, 1.7}))
			assert.Equal(t, 2, m.Predict([]float64{0.72, -0.52, 9}))
		})
	}
}

func TestLinearSVM_Deterministic(t *testing.T) {
	samples := vegetationSamples()
	a, err := LinearSVM{Seed: 3}.Fit(samples)
	require.NoError(t, err)
	b, err := LinearSVM{Seed: 3}.Fit(samples)
	require.NoError(t, err)
	assert.Equal(t, a.(*SVMModel).weights.RawMatrix().Data, b.(*SVMModel).weights.RawMatrix().Data)
	assert.Equal(t, []int{0, 1, 2}, a.(*SVMModel).Classes())
}

func TestFit_SingleClassAlwaysPredictsIt(t *testing.T) {
	samples := []Sample{{Class: 2, Features: []float64{0.7, -0.5, 9}}}
	for name, tr := range trainers() {
		t.Run(name, func(t *testing.T) {
			m, err := tr.Fit(samples)
			require.NoError(t, err)
			assert.Equal(t, 2, m.Predict([]float64{0, 0, 0}))
		})
	}
}

func TestFit_Errors(t *testing.T) {
	for name, tr := range trainers() {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Fit(nil)
			assert.ErrorIs(t, err, ErrNoSamples)

			_, err = tr.Fit([]Sample{{Class: 0, Features: []float64{1, 2}}, {Class: 1, Features: []float64{1}}})
			assert.Error(t, err)

			_, err = tr.Fit([]Sample{{Class: -1, Features: []float64{1}}})
			assert.Error(t, err)

			_, err = tr.Fit([]Sample{{Class: 0}})
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	m, err := Centroid{}.Fit(vegetationSamples())
	require.NoError(t, err)

	mk := func(vals []float64) *raster.Grid {
		g, err := raster.FromRows(0, 2, 5, [][]float64{vals[:2], vals[2:]})
		require.NoError(t, err)
		return g
	}
	nd := raster.DefaultNoData
	stack, err := raster.NewStack(
		[]string{"ndvi", "ndwi", "height"},
		[]*raster.Grid{
			mk([]float64{0.3, 0.5, 0.7, 0.7}),
			mk([]float64{-0.3, -0.4, -0.5, -0.5}),
			mk([]float64{0.2, 1.5, 8, nd}),
		})
	require.NoError(t, err)

	out, err := Apply(m, stack)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, nd}, out.Data)
	assert.Equal(t, 5.0, out.CellSize)

	small, err := raster.NewStack([]string{"ndvi"}, []*raster.Grid{mk([]float64{1, 1, 1, 1})})
	require.NoError(t, err)
	_, err = Apply(m, small)
	assert.Error(t, err)
}
