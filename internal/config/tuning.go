package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/burn"
	"github.com/banshee-data/genburn/internal/fuel"
	"github.com/banshee-data/genburn/internal/segment"
	"github.com/banshee-data/genburn/internal/svm"
	"github.com/banshee-data/genburn/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for a classification and
// burn run. Every field is optional; Get* accessors supply the defaults.
type TuningConfig struct {
	// Study area
	Location   *string `json:"location,omitempty"` // threshold region, e.g. "Tahoe"
	UnitSystem *string `json:"unit_system,omitempty"`
	FuelModel  *string `json:"fuel_model,omitempty"`

	// Raster handling
	CoarseningSize *float64 `json:"coarsening_size,omitempty"` // classifier composite cell size
	TileSize       *int     `json:"tile_size,omitempty"`       // zone edge in cells; 0 keeps one zone

	// Segmentation params
	SpectralDetail *float64 `json:"spectral_detail,omitempty"`
	SpatialDetail  *float64 `json:"spatial_detail,omitempty"`
	MinSegmentSize *int     `json:"min_segment_size,omitempty"`

	// Confusion resolver params
	MaxSamplesPerClass *int     `json:"max_samples_per_class,omitempty"`
	SVMLambda          *float64 `json:"svm_lambda,omitempty"`
	SVMEpochs          *int     `json:"svm_epochs,omitempty"`
	SVMSeed            *uint64  `json:"svm_seed,omitempty"`

	ZoneConcurrency *int `json:"zone_concurrency,omitempty"`

	// Burn scenario
	WindSpeedMPH     *float64 `json:"wind_speed_mph,omitempty"`
	WindDirection    *float64 `json:"wind_direction,omitempty"`
	FoliarMoisture   *float64 `json:"foliar_moisture,omitempty"`
	FuelMoisturePath *string  `json:"fuel_moisture_path,omitempty"`
	CalcMethod       *int     `json:"calc_method,omitempty"`

	// Simulator
	SimulatorCommand *string  `json:"simulator_command,omitempty"`
	SimulatorArgs    []string `json:"simulator_args,omitempty"`
	SimulatorTimeout *string  `json:"simulator_timeout,omitempty"` // duration string like "30m"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Unit system and
// fuel model problems are reported as *apperr.ConfigError.
func (c *TuningConfig) Validate() error {
	if c.UnitSystem != nil {
		if !units.IsValid(units.Normalize(*c.UnitSystem)) {
			return apperr.Config("unit system", *c.UnitSystem, "supported: "+units.GetValidUnitsString())
		}
	}
	if c.FuelModel != nil {
		if _, err := fuel.CanonicalScheme(*c.FuelModel); err != nil {
			return err
		}
	}
	if c.CoarseningSize != nil && *c.CoarseningSize <= 0 {
		return fmt.Errorf("coarsening_size must be positive, got %f", *c.CoarseningSize)
	}
	if c.TileSize != nil && *c.TileSize < 0 {
		return fmt.Errorf("tile_size must be non-negative, got %d", *c.TileSize)
	}
	if c.SpectralDetail != nil && *c.SpectralDetail < 0 {
		return fmt.Errorf("spectral_detail must be non-negative, got %f", *c.SpectralDetail)
	}
	if c.MinSegmentSize != nil && *c.MinSegmentSize < 1 {
		return fmt.Errorf("min_segment_size must be at least 1, got %d", *c.MinSegmentSize)
	}
	if c.MaxSamplesPerClass != nil && *c.MaxSamplesPerClass < 1 {
		return fmt.Errorf("max_samples_per_class must be at least 1, got %d", *c.MaxSamplesPerClass)
	}
	if c.ZoneConcurrency != nil && *c.ZoneConcurrency < 1 {
		return fmt.Errorf("zone_concurrency must be at least 1, got %d", *c.ZoneConcurrency)
	}
	if c.WindSpeedMPH != nil && *c.WindSpeedMPH < 0 {
		return fmt.Errorf("wind_speed_mph must be non-negative, got %f", *c.WindSpeedMPH)
	}
	if c.WindDirection != nil && (*c.WindDirection < 0 || *c.WindDirection >= 360) {
		return fmt.Errorf("wind_direction must be in [0, 360), got %f", *c.WindDirection)
	}
	if c.SimulatorTimeout != nil && *c.SimulatorTimeout != "" {
		if _, err := time.ParseDuration(*c.SimulatorTimeout); err != nil {
			return fmt.Errorf("invalid simulator_timeout '%s': %w", *c.SimulatorTimeout, err)
		}
	}
	return nil
}

// GetLocation returns the threshold region or the default.
func (c *TuningConfig) GetLocation() string {
	if c.Location == nil || *c.Location == "" {
		return "Tahoe"
	}
	return *c.Location
}

// GetUnitSystem returns the canonical unit system name or the default.
func (c *TuningConfig) GetUnitSystem() string {
	if c.UnitSystem == nil {
		return units.Meters
	}
	return units.Normalize(*c.UnitSystem)
}

// GetFuelModel returns the fuel model scheme or the default.
func (c *TuningConfig) GetFuelModel() string {
	if c.FuelModel == nil || *c.FuelModel == "" {
		return fuel.SchemeAnderson13
	}
	return *c.FuelModel
}

// GetCoarseningSize returns the classifier composite cell size or the default.
func (c *TuningConfig) GetCoarseningSize() float64 {
	if c.CoarseningSize == nil {
		return 5.0
	}
	return *c.CoarseningSize
}

// GetTileSize returns the zone edge in cells or the default (single zone).
func (c *TuningConfig) GetTileSize() int {
	if c.TileSize == nil {
		return 0
	}
	return *c.TileSize
}

// SegmentParams returns the segmentation controls with defaults applied.
func (c *TuningConfig) SegmentParams() segment.Params {
	p := segment.Params{SpectralDetail: 0.1, SpatialDetail: 15, MinSegmentSize: 20}
	if c.SpectralDetail != nil {
		p.SpectralDetail = *c.SpectralDetail
	}
	if c.SpatialDetail != nil {
		p.SpatialDetail = *c.SpatialDetail
	}
	if c.MinSegmentSize != nil {
		p.MinSegmentSize = *c.MinSegmentSize
	}
	return p
}

// GetMaxSamplesPerClass returns the training sample cap or the default.
func (c *TuningConfig) GetMaxSamplesPerClass() int {
	if c.MaxSamplesPerClass == nil {
		return 100
	}
	return *c.MaxSamplesPerClass
}

// Trainer returns the supervised classifier configured for confusion
// resolution.
func (c *TuningConfig) Trainer() *svm.LinearSVM {
	t := &svm.LinearSVM{Lambda: 0.05, Epochs: 50, Seed: 1}
	if c.SVMLambda != nil {
		t.Lambda = *c.SVMLambda
	}
	if c.SVMEpochs != nil {
		t.Epochs = *c.SVMEpochs
	}
	if c.SVMSeed != nil {
		t.Seed = *c.SVMSeed
	}
	return t
}

// GetZoneConcurrency returns how many zones may run at once or the default.
func (c *TuningConfig) GetZoneConcurrency() int {
	if c.ZoneConcurrency == nil {
		return 4
	}
	return *c.ZoneConcurrency
}

// Scenario returns the burn scenario with defaults applied.
func (c *TuningConfig) Scenario() burn.Scenario {
	sc := burn.DefaultScenario()
	if c.WindSpeedMPH != nil {
		sc.WindSpeedMPH = *c.WindSpeedMPH
	}
	if c.WindDirection != nil {
		sc.WindDirection = *c.WindDirection
	}
	if c.FoliarMoisture != nil {
		sc.FoliarMoisture = *c.FoliarMoisture
	}
	if c.FuelMoisturePath != nil {
		sc.FuelMoisturePath = *c.FuelMoisturePath
	}
	if c.CalcMethod != nil {
		sc.CalcMethod = *c.CalcMethod
	}
	return sc
}

// GetSimulatorCommand returns the simulator binary, empty when unset.
func (c *TuningConfig) GetSimulatorCommand() string {
	if c.SimulatorCommand == nil {
		return ""
	}
	return *c.SimulatorCommand
}

// GetSimulatorTimeout parses and returns the SimulatorTimeout as a time.Duration.
func (c *TuningConfig) GetSimulatorTimeout() time.Duration {
	if c.SimulatorTimeout == nil || *c.SimulatorTimeout == "" {
		return 30 * time.Minute // default
	}
	d, err := time.ParseDuration(*c.SimulatorTimeout)
	if err != nil {
		return 30 * time.Minute // default on parse error
	}
	return d
}
