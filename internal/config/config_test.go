package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	t.Setenv("TERRAIN_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg, "Без файла должна использоваться конфигурация по умолчанию")
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terrain.yaml")

	yml := `
world:
  name: island
  seed: 42
terrain:
  iso_level: 300
  interpolate: true
streaming:
  view_distance: 4
  loads_per_tick: 0
storage:
  backend: badger
  compression: gzip
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "island", cfg.World.Name)
	assert.Equal(t, int64(42), cfg.World.Seed)
	assert.Equal(t, 128, cfg.Terrain.IsoLevel, "Недопустимый iso_level должен замениться значением по умолчанию")
	assert.True(t, cfg.Terrain.Interpolate)
	assert.Equal(t, 4, cfg.Streaming.ViewDistance)
	assert.Equal(t, 1, cfg.Streaming.LoadsPerTick)
	assert.Equal(t, 0.3, cfg.Streaming.MaintainMargin)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, "gzip", cfg.Storage.Compression)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMetricsPortFallback(t *testing.T) {
	m := MetricsConfig{}

	t.Setenv("TERRAIN_METRICS_PORT", "9100")
	assert.Equal(t, 9100, m.GetMetricsPort(), "Порт должен браться из переменной окружения")

	t.Setenv("TERRAIN_METRICS_PORT", "abc")
	assert.Equal(t, 2112, m.GetMetricsPort(), "Некорректное значение окружения игнорируется")

	m.Port = 8000
	assert.Equal(t, 8000, m.GetMetricsPort(), "Порт из конфига имеет приоритет")
}
