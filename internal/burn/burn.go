// Package burn attaches simulated fire-behaviour metrics back onto
// classified objects and wraps the external fire simulator.
package burn

import (
	"fmt"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/units"
	"github.com/banshee-data/genburn/internal/zonal"
)

// Metric identifiers, also used as attribute names.
const (
	FLI = "fli" // fire-line intensity
	FML = "fml" // flame length
	ROS = "ros" // rate of spread
)

// Metrics lists the simulator outputs in join order.
var Metrics = []string{FLI, FML, ROS}

// UnitScalar returns the factor applied to a raw simulator output.
func UnitScalar(metric string) (float64, error) {
	switch metric {
	case FLI:
		return units.FireLineIntensityScalar, nil
	case FML:
		return units.FlameLengthScalar, nil
	case ROS:
		return units.SpreadRateScalar, nil
	}
	return 0, fmt.Errorf("unknown burn metric %q", metric)
}

// Outputs holds the raw simulator rasters by metric.
type Outputs map[string]*raster.Grid

// Validate checks every metric is present.
func (o Outputs) Validate() error {
	for _, m := range Metrics {
		if o[m] == nil {
			return fmt.Errorf("simulator output %s missing", m)
		}
	}
	return nil
}

// Join re-keys objs (JOIN = FID+1) and attaches the scaled maximum of each
// metric over every footprint. It returns, per metric, the join keys that
// received no value.
func Join(objs objects.Collection, outs Outputs) (map[string][]int, error) {
	if err := outs.Validate(); err != nil {
		return nil, err
	}
	objs.Rekey()
	missing := make(map[string][]int)
	for _, m := range Metrics {
		k, err := UnitScalar(m)
		if err != nil {
			return nil, err
		}
		table, err := zonal.Aggregate(objs, outs[m].Scale(k), zonal.Maximum)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		for _, o := range objs {
			v, ok := table[o.JoinKey]
			if !ok {
				missing[m] = append(missing[m], o.JoinKey)
				continue
			}
			o.SetBurn(m, v)
		}
	}
	return missing, nil
}
