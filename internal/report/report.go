// Package report renders run summaries: an HTML page of label and fuel
// model counts, and PNG histograms of each burn metric.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/objects"
)

// UnresolvedLabel is the bar unlabelled objects are counted under.
const UnresolvedLabel = "unresolved"

// DefaultBins is the histogram bin count.
const DefaultBins = 20

// MetricStats summarises one burn metric over the objects that carry it.
type MetricStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Summary is the tabulated content of a report.
type Summary struct {
	Objects int                    `json:"objects"`
	Labels  map[string]int         `json:"labels"`
	Fuel    map[int]int            `json:"fuel"`
	Metrics map[string]MetricStats `json:"metrics"`

	values map[string][]float64
}

// Summarize tallies objs. Non-finite metric values are ignored.
func Summarize(objs objects.Collection) *Summary {
	s := &Summary{
		Objects: len(objs),
		Labels:  make(map[string]int),
		Fuel:    make(map[int]int),
		Metrics: make(map[string]MetricStats),
		values:  make(map[string][]float64),
	}
	for _, o := range objs {
		label := string(o.Label)
		if o.Label == objects.NoLabel {
			label = UnresolvedLabel
		}
		s.Labels[label]++
		if o.Fueled {
			s.Fuel[o.FuelCode]++
		}
		for m, v := range o.Burn {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			s.values[m] = append(s.values[m], v)
		}
	}
	for m, vs := range s.values {
		mean, std := stat.MeanStdDev(vs, nil)
		if len(vs) < 2 {
			std = 0
		}
		lo, hi := vs[0], vs[0]
		for _, v := range vs[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		s.Metrics[m] = MetricStats{Count: len(vs), Min: lo, Max: hi, Mean: mean, StdDev: std}
	}
	return s
}

// MetricNames returns the metrics with at least one value, sorted.
func (s *Summary) MetricNames() []string {
	names := make([]string, 0, len(s.values))
	for m := range s.values {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

func (s *Summary) labelBar() *charts.Bar {
	names := make([]string, 0, len(s.Labels))
	for l := range s.Labels {
		names = append(names, l)
	}
	sort.Strings(names)
	data := make([]opts.BarData, len(names))
	for i, l := range names {
		data[i] = opts.BarData{Value: s.Labels[l]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Land cover", Subtitle: fmt.Sprintf("objects=%d", s.Objects)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("objects", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func (s *Summary) fuelBar() *charts.Bar {
	codes := make([]int, 0, len(s.Fuel))
	for c := range s.Fuel {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	x := make([]string, len(codes))
	data := make([]opts.BarData, len(codes))
	for i, c := range codes {
		x[i] = strconv.Itoa(c)
		data[i] = opts.BarData{Value: s.Fuel[c]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fuel models"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "code", NameLocation: "middle", NameGap: 25}),
	)
	bar.SetXAxis(x).
		AddSeries("objects", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// RenderHTML writes the label and fuel charts as one page.
func (s *Summary) RenderHTML(w io.Writer, title string) error {
	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(s.labelBar(), s.fuelBar())
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}

// Histogram plots the distribution of one metric.
func (s *Summary) Histogram(metric string, bins int) (*plot.Plot, error) {
	vs, ok := s.values[metric]
	if !ok {
		return nil, fmt.Errorf("no values for metric %q", metric)
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	p := plot.New()
	p.Title.Text = metric
	p.X.Label.Text = metric
	p.Y.Label.Text = "objects"

	h, err := plotter.NewHist(plotter.Values(vs), bins)
	if err != nil {
		return nil, fmt.Errorf("histogram %s: %w", metric, err)
	}
	p.Add(h)
	return p, nil
}

// WritePNG renders p as a PNG.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// WriteAll writes summary.html and one <metric>.png per burn metric into
// dir, returning the written paths.
func WriteAll(fsys fsutil.FileSystem, dir, title string, objs objects.Collection) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := Summarize(objs)

	var buf bytes.Buffer
	if err := s.RenderHTML(&buf, title); err != nil {
		return nil, err
	}
	htmlPath := filepath.Join(dir, "summary.html")
	if err := fsys.WriteFile(htmlPath, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}
	written := []string{htmlPath}

	for _, m := range s.MetricNames() {
		p, err := s.Histogram(m, DefaultBins)
		if err != nil {
			return written, err
		}
		buf.Reset()
		if err := WritePNG(&buf, p); err != nil {
			return written, fmt.Errorf("render %s: %w", m, err)
		}
		path := filepath.Join(dir, m+".png")
		if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
