package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no costmap.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "counties", cfg.Boundary.Object)
	assert.Equal(t, "auto", cfg.Boundary.Format)
	assert.Equal(t, 30, cfg.Boundary.TimeoutSecs)
	assert.Equal(t, "cost.regions", cfg.Dataset.Table)
	assert.Equal(t, "51760", cfg.Map.DefaultRegion)
	assert.Equal(t, "Richmond city", cfg.Map.DefaultRegionName)
	assert.Equal(t, 40, cfg.Map.HoverDebounceMs)
	assert.InDelta(t, 768, cfg.Map.MobileBreakpoint, 0.001)
	assert.InDelta(t, 0.5, cfg.Map.HoverDimOpacity, 0.001)
	assert.Len(t, cfg.Map.Palette, 5)
	assert.Equal(t, "#d9d9d9", cfg.Map.NeutralColor)
	assert.Equal(t, []float64{37, 39.5}, cfg.Projection.Parallels)
	assert.Equal(t, []float64{79.5, 0, 0}, cfg.Projection.Rotate)
	assert.Equal(t, []float64{0, 37.9}, cfg.Projection.Center)
	assert.InDelta(t, 6500, cfg.Projection.DesktopScale, 0.001)
	assert.InDelta(t, 5000, cfg.Projection.MobileScale, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Server.CacheEntries)
	assert.Empty(t, cfg.Annotations)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
boundary:
  url: https://example.com/va-counties.json
dataset:
  path: data/costs.csv
map:
  hover_debounce_ms: 80
  palette: ["#fee5d9", "#fcae91", "#fb6a4a"]
annotations:
  - text: To D.C.
    lon: -77.1
    lat: 38.9
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "costmap.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "https://example.com/va-counties.json", cfg.Boundary.URL)
	assert.Equal(t, "data/costs.csv", cfg.Dataset.Path)
	assert.Equal(t, 80, cfg.Map.HoverDebounceMs)
	assert.Equal(t, []string{"#fee5d9", "#fcae91", "#fb6a4a"}, cfg.Map.Palette)
	require.Len(t, cfg.Annotations, 1)
	assert.Equal(t, Annotation{Text: "To D.C.", Lon: -77.1, Lat: 38.9}, cfg.Annotations[0])
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "counties", cfg.Boundary.Object)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
boundary:
  object: state
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "costmap.yaml"), []byte(yaml), 0644))

	t.Setenv("COSTMAP_BOUNDARY_OBJECT", "counties2020")
	t.Setenv("COSTMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "counties2020", cfg.Boundary.Object)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("COSTMAP_SERVER_PORT", "3000")
	t.Setenv("COSTMAP_MAP_DEFAULT_REGION", "51087")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "51087", cfg.Map.DefaultRegion)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "costmap.yaml"), []byte("log: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func validDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Boundary.URL = "https://example.com/va.json"
	cfg.Dataset.Path = "costs.json"
	return cfg
}

func TestValidateMap_Valid(t *testing.T) {
	cfg := validDefaults(t)
	assert.NoError(t, cfg.Validate("map"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateMap_MissingSources(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Boundary.URL = ""
	cfg.Dataset.Path = ""

	err := cfg.Validate("map")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary.url or boundary.path is required")
	assert.Contains(t, err.Error(), "dataset.path is required")
}

func TestValidateDatabaseFormats(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Boundary.Format = "postgis"
	cfg.Dataset.Format = "postgres"

	err := cfg.Validate("map")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgis boundary format")
	assert.Contains(t, err.Error(), "postgres dataset format")

	cfg.Database.URL = "postgres://localhost/costmap"
	assert.NoError(t, cfg.Validate("map"))
}

func TestValidateProjection(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Projection.Parallels = []float64{37}
	cfg.Projection.Center = nil
	cfg.Projection.MobileScale = 0
	cfg.Map.HoverDimOpacity = 1.5

	err := cfg.Validate("map")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "projection.parallels needs 2 values")
	assert.Contains(t, err.Error(), "projection.center needs 2 values")
	assert.Contains(t, err.Error(), "projection scales must be > 0")
	assert.Contains(t, err.Error(), "map.hover_dim_opacity")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("map"), "port only matters when serving")
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
