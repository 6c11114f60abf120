// Package svm provides the supervised pixel classifiers used to resolve
// confused objects: a one-vs-rest linear SVM trained with Pegasos over a
// standardised quadratic feature map, and a minimum-distance centroid
// classifier.
package svm

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/genburn/internal/raster"
)

// ErrNoSamples is returned when Fit receives no training data.
var ErrNoSamples = errors.New("no training samples")

// Sample is one labelled pixel.
type Sample struct {
	Class    int
	Features []float64
}

// Trainer fits a Model from labelled samples.
type Trainer interface {
	Fit(samples []Sample) (Model, error)
}

// Model predicts a class for a feature vector.
type Model interface {
	Predict(x []float64) int
	Dim() int
}

// Apply classifies every pixel of s. Pixels with any nodata band stay
// nodata in the categorical output.
func Apply(m Model, s *raster.Stack) (*raster.Grid, error) {
	if len(s.Bands) != m.Dim() {
		return nil, fmt.Errorf("svm: model expects %d bands, stack has %d", m.Dim(), len(s.Bands))
	}
	geo := s.Geometry()
	out := geo.Empty()
	px := make([]float64, 0, len(s.Bands))
	for r := 0; r < geo.Rows; r++ {
		for c := 0; c < geo.Cols; c++ {
			var ok bool
			px, ok = s.Pixel(r, c, px)
			if !ok {
				continue
			}
			out.Set(r, c, float64(m.Predict(px)))
		}
	}
	return out, nil
}

func checkSamples(samples []Sample) (dim int, classes []int, err error) {
	if len(samples) == 0 {
		return 0, nil, ErrNoSamples
	}
	dim = len(samples[0].Features)
	if dim == 0 {
		return 0, nil, fmt.Errorf("svm: samples have no features")
	}
	seen := map[int]bool{}
	for i, s := range samples {
		if len(s.Features) != dim {
			return 0, nil, fmt.Errorf("svm: sample %d has %d features, want %d", i, len(s.Features), dim)
		}
		if s.Class < 0 {
			return 0, nil, fmt.Errorf("svm: sample %d has negative class %d", i, s.Class)
		}
		if !seen[s.Class] {
			seen[s.Class] = true
			classes = append(classes, s.Class)
		}
	}
	sort.Ints(classes)
	return dim, classes, nil
}

// scaler standardises each input dimension.
type scaler struct {
	mean, std []float64
}

func fitScaler(x *mat.Dense) scaler {
	_, d := x.Dims()
	s := scaler{mean: make([]float64, d), std: make([]float64, d)}
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, x)
		m, sd := stat.MeanStdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		s.mean[j], s.std[j] = m, sd
	}
	return s
}

// expand writes [z, z², 1] for x into dst.
func (s scaler) expand(dst, x []float64) []float64 {
	d := len(x)
	dst = dst[:0]
	for j := 0; j < d; j++ {
		dst = append(dst, (x[j]-s.mean[j])/s.std[j])
	}
	for j := 0; j < d; j++ {
		dst = append(dst, dst[j]*dst[j])
	}
	return append(dst, 1)
}

// LinearSVM trains one binary Pegasos SVM per class.
type LinearSVM struct {
	Lambda float64 // regularisation; default 0.05
	Epochs int     // passes over the samples; default 50
	Seed   uint64
}

// SVMModel is a fitted LinearSVM.
type SVMModel struct {
	scaler  scaler
	classes []int
	weights *mat.Dense // one row per class
}

func (t LinearSVM) Fit(samples []Sample) (Model, error) {
	dim, classes, err := checkSamples(samples)
	if err != nil {
		return nil, err
	}
	lambda := t.Lambda
	if lambda <= 0 {
		lambda = 0.05
	}
	epochs := t.Epochs
	if epochs <= 0 {
		epochs = 50
	}

	n := len(samples)
	raw := mat.NewDense(n, dim, nil)
	for i, s := range samples {
		raw.SetRow(i, s.Features)
	}
	sc := fitScaler(raw)
	width := 2*dim + 1
	phi := make([][]float64, n)
	for i, s := range samples {
		phi[i] = sc.expand(make([]float64, 0, width), s.Features)
	}

	weights := mat.NewDense(len(classes), width, nil)
	rng := rand.New(rand.NewPCG(t.Seed, t.Seed^0x9e3779b97f4a7c15))
	steps := epochs * n
	for ci, class := range classes {
		w := make([]float64, width)
		for step := 1; step <= steps; step++ {
			i := rng.IntN(n)
			y := -1.0
			if samples[i].Class == class {
				y = 1
			}
			eta := 1 / (lambda * float64(step))
			margin := y * floats.Dot(w, phi[i])
			floats.Scale(1-eta*lambda, w)
			if margin < 1 {
				floats.AddScaled(w, eta*y, phi[i])
			}
		}
		weights.SetRow(ci, w)
	}
	return &SVMModel{scaler: sc, classes: classes, weights: weights}, nil
}

func (m *SVMModel) Dim() int { return len(m.scaler.mean) }

// Classes returns the classes the model was trained on.
func (m *SVMModel) Classes() []int { return append([]int(nil), m.classes...) }

// Predict returns the class with the highest decision value; ties go to the
// lowest class.
func (m *SVMModel) Predict(x []float64) int {
	phi := m.scaler.expand(make([]float64, 0, 2*len(x)+1), x)
	best, bestScore := m.classes[0], math.Inf(-1)
	for ci, class := range m.classes {
		score := floats.Dot(m.weights.RawRowView(ci), phi)
		if score > bestScore {
			best, bestScore = class, score
		}
	}
	return best
}

// Centroid is a minimum-distance classifier over standardised features.
type Centroid struct{}

// CentroidModel is a fitted Centroid classifier.
type CentroidModel struct {
	scaler    scaler
	classes   []int
	centroids [][]float64
}

func (Centroid) Fit(samples []Sample) (Model, error) {
	dim, classes, err := checkSamples(samples)
	if err != nil {
		return nil, err
	}
	raw := mat.NewDense(len(samples), dim, nil)
	for i, s := range samples {
		raw.SetRow(i, s.Features)
	}
	sc := fitScaler(raw)
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	sums := make([][]float64, len(classes))
	counts := make([]float64, len(classes))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	z := make([]float64, dim)
	for _, s := range samples {
		for j, v := range s.Features {
			z[j] = (v - sc.mean[j]) / sc.std[j]
		}
		k := idx[s.Class]
		floats.Add(sums[k], z)
		counts[k]++
	}
	for k := range sums {
		floats.Scale(1/counts[k], sums[k])
	}
	return &CentroidModel{scaler: sc, classes: classes, centroids: sums}, nil
}

func (m *CentroidModel) Dim() int { return len(m.scaler.mean) }

// Predict returns the class of the nearest centroid; ties go to the lowest
// class.
func (m *CentroidModel) Predict(x []float64) int {
	z := make([]float64, len(x))
	for j, v := range x {
		z[j] = (v - m.scaler.mean[j]) / m.scaler.std[j]
	}
	best, bestDist := m.classes[0], math.Inf(1)
	for k, c := range m.centroids {
		if d := floats.Distance(z, c, 2); d < bestDist {
			best, bestDist = m.classes[k], d
		}
	}
	return best
}
