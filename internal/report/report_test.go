package report

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func burned() objects.Collection {
	var objs objects.Collection
	labels := []objects.Label{objects.Tree, objects.Tree, objects.Grass, objects.Path, objects.NoLabel}
	codes := []int{10, 10, 1, 99, 0}
	for i, l := range labels {
		o := testutil.Object(i+1, 0, i, 0, i)
		o.Label = l
		if l != objects.NoLabel {
			o.Fueled = true
			o.FuelCode = codes[i]
			o.SetBurn("fli", float64(10*(i+1)))
			o.SetBurn("ros", float64(i)+0.5)
		}
		objs = append(objs, o)
	}
	objs[3].SetBurn("fml", math.NaN())
	return objs
}

func TestSummarize(t *testing.T) {
	s := Summarize(burned())
	assert.Equal(t, 5, s.Objects)
	assert.Equal(t, map[string]int{"tree": 2, "grass": 1, "path": 1, UnresolvedLabel: 1}, s.Labels)
	assert.Equal(t, map[int]int{10: 2, 1: 1, 99: 1}, s.Fuel)
	assert.Equal(t, []string{"fli", "ros"}, s.MetricNames())

	fli := s.Metrics["fli"]
	assert.Equal(t, 4, fli.Count)
	assert.Equal(t, 10.0, fli.Min)
	assert.Equal(t, 40.0, fli.Max)
	assert.InDelta(t, 25.0, fli.Mean, 1e-9)
	assert.Greater(t, fli.StdDev, 0.0)
}

func TestSummarizeSingleValue(t *testing.T) {
	o := testutil.Object(1, 0, 0, 0, 0)
	o.SetBurn("fli", 3)
	s := Summarize(objects.Collection{o})
	assert.Equal(t, MetricStats{Count: 1, Min: 3, Max: 3, Mean: 3}, s.Metrics["fli"])
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summarize(burned()).RenderHTML(&buf, "Run abc"))
	html := buf.String()
	assert.Contains(t, html, "Run abc")
	assert.Contains(t, html, "Land cover")
	assert.Contains(t, html, "Fuel models")
	assert.Contains(t, html, UnresolvedLabel)
}

func TestHistogram(t *testing.T) {
	s := Summarize(burned())
	p, err := s.Histogram("fli", 0)
	require.NoError(t, err)
	assert.Equal(t, "fli", p.Title.Text)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	_, err = s.Histogram("fml", 5)
	assert.Error(t, err)
}

func TestWriteAll(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	paths, err := WriteAll(fsys, "/out/report", "Run abc", burned())
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/report/summary.html", "/out/report/fli.png", "/out/report/ros.png"}, paths)

	for _, p := range paths[1:] {
		b, err := fsys.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(b, pngMagic), p)
	}
}

func TestWriteAllNoMetrics(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	paths, err := WriteAll(fsys, "/out", "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/summary.html"}, paths)
}
