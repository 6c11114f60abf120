package burn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/raster"
)

// Scenario holds the fixed simulation inputs.
type Scenario struct {
	FuelMoisturePath string
	WindSpeedMPH     float64
	WindDirection    float64
	FoliarMoisture   float64
	CalcMethod       int
}

// DefaultScenario returns the standard run conditions: 30 mph wind from
// the north, 100% foliar moisture.
func DefaultScenario() Scenario {
	return Scenario{WindSpeedMPH: 30, WindDirection: 0, FoliarMoisture: 100, CalcMethod: 0}
}

// Simulator runs fire behaviour over a landscape directory and returns the
// raw metric rasters.
type Simulator interface {
	Simulate(ctx context.Context, landscapeDir string, sc Scenario, outDir string) (Outputs, error)
}

// ExecSimulator invokes an external simulator binary. The scenario is
// passed as flags after Args; the binary must write fli.asc, fml.asc and
// ros.asc into the output directory.
type ExecSimulator struct {
	Command string
	Args    []string
	FS      fsutil.FileSystem
}

// Flags renders the scenario as command-line flags.
func (sc Scenario) Flags(landscapeDir, outDir string) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	flags := []string{
		"--landscape", landscapeDir,
		"--wind-speed", f(sc.WindSpeedMPH),
		"--wind-direction", f(sc.WindDirection),
		"--foliar-moisture", f(sc.FoliarMoisture),
		"--calc-method", strconv.Itoa(sc.CalcMethod),
	}
	if sc.FuelMoisturePath != "" {
		flags = append(flags, "--fuel-moisture", sc.FuelMoisturePath)
	}
	return append(flags, "--output", outDir)
}

func (s *ExecSimulator) Simulate(ctx context.Context, landscapeDir string, sc Scenario, outDir string) (Outputs, error) {
	if s.Command == "" {
		return nil, apperr.Config("simulator command", "", "not configured")
	}
	fsys := s.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := fsys.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	args := append(append([]string{}, s.Args...), sc.Flags(landscapeDir, outDir)...)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	monitoring.Infow("running fire simulator", "command", s.Command, "landscape", landscapeDir)
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, apperr.Service("simulator", code, err)
	}

	outs := make(Outputs, len(Metrics))
	for _, m := range Metrics {
		g, err := readGrid(fsys, filepath.Join(outDir, m+".asc"))
		if err != nil {
			return nil, apperr.Service("simulator", 0, fmt.Errorf("output %s: %w", m, err))
		}
		outs[m] = g
	}
	return outs, nil
}

func readGrid(fsys fsutil.FileSystem, path string) (*raster.Grid, error) {
	r, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return raster.ReadASCII(r)
}
