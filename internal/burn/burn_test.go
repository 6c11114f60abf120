package burn

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/testutil"
)

func outputs(t *testing.T) Outputs {
	return Outputs{
		FLI: testutil.Grid(t, [][]float64{{100, 40}, {raster.DefaultNoData, 10}}),
		FML: testutil.Grid(t, [][]float64{{2, 3}, {raster.DefaultNoData, 1}}),
		ROS: testutil.Grid(t, [][]float64{{1, 0}, {raster.DefaultNoData, 2}}),
	}
}

func TestJoin_ScalesAndTakesMaximum(t *testing.T) {
	a := testutil.Object(70, 0, 0, 0, 0) // single cell, fli 100
	b := testutil.Object(12, 0, 1, 1, 1) // fli 40 and 10
	c := testutil.Object(5, 1, 0, 1, 0)  // nodata only

	objs := objects.Collection{a, b, c}
	missing, err := Join(objs, outputs(t))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, objs.Keys(), "join keys are re-derived as FID+1")
	assert.InDelta(t, 28.8894658, a.Burn[FLI], 1e-9)
	assert.InDelta(t, 40*0.288894658, b.Burn[FLI], 1e-9)
	assert.Equal(t, 3.0, b.Burn[FML])
	assert.InDelta(t, 2*3.28084, b.Burn[ROS], 1e-12)

	_, ok := c.Burn[FLI]
	assert.False(t, ok)
	assert.Equal(t, map[string][]int{FLI: {3}, FML: {3}, ROS: {3}}, missing)
}

func TestJoin_MissingOutput(t *testing.T) {
	outs := outputs(t)
	delete(outs, ROS)
	_, err := Join(objects.Collection{testutil.Object(1, 0, 0, 0, 0)}, outs)
	assert.Error(t, err)
}

func TestUnitScalar(t *testing.T) {
	for m, want := range map[string]float64{FLI: 0.288894658, FML: 1, ROS: 3.28084} {
		got, err := UnitScalar(m)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := UnitScalar("heat")
	assert.Error(t, err)
}

func TestScenario_Flags(t *testing.T) {
	sc := DefaultScenario()
	sc.FuelMoisturePath = "/in/fms"
	assert.Equal(t, []string{
		"--landscape", "/ls",
		"--wind-speed", "30",
		"--wind-direction", "0",
		"--foliar-moisture", "100",
		"--calc-method", "0",
		"--fuel-moisture", "/in/fms",
		"--output", "/out",
	}, sc.Flags("/ls", "/out"))
}

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("simulator stub needs a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

const grid = "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 99\ncellsize 1\nNODATA_value -9999\n"

func TestExecSimulator_ReadsOutputs(t *testing.T) {
	sh := requireShell(t)
	script := `for a; do out=$a; done
for m in fli fml ros; do printf '` + grid + `%s\n' 7 > "$out/$m.asc"; done`
	sim := &ExecSimulator{Command: sh, Args: []string{"-c", script, "sim"}}

	outDir := filepath.Join(t.TempDir(), "burn")
	outs, err := sim.Simulate(context.Background(), "/ls", DefaultScenario(), outDir)
	require.NoError(t, err)
	for _, m := range Metrics {
		require.NotNil(t, outs[m], m)
		assert.Equal(t, []float64{7}, outs[m].Data)
	}
	_, err = os.Stat(filepath.Join(outDir, "fli.asc"))
	assert.NoError(t, err)
}

func TestExecSimulator_ExitCodeIsServiceError(t *testing.T) {
	sh := requireShell(t)
	sim := &ExecSimulator{Command: sh, Args: []string{"-c", "echo bad landscape >&2; exit 3", "sim"}}

	_, err := sim.Simulate(context.Background(), "/ls", DefaultScenario(), t.TempDir())
	s, ok := apperr.AsService(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "simulator", s.Service)
	assert.Equal(t, 3, s.Code)
	assert.Contains(t, err.Error(), "bad landscape")
}

func TestExecSimulator_MissingOutput(t *testing.T) {
	sh := requireShell(t)
	sim := &ExecSimulator{Command: sh, Args: []string{"-c", "true", "sim"}}
	_, err := sim.Simulate(context.Background(), "/ls", DefaultScenario(), t.TempDir())
	_, ok := apperr.AsService(err)
	assert.True(t, ok)
}

func TestExecSimulator_Unconfigured(t *testing.T) {
	_, err := (&ExecSimulator{}).Simulate(context.Background(), "/ls", DefaultScenario(), t.TempDir())
	assert.True(t, apperr.IsConfig(err))
}
