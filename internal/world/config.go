package world

import (
	"github.com/google/uuid"

	"github.com/annel0/voxel-terrain/internal/noise"
	"github.com/annel0/voxel-terrain/internal/world/biome"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// WorldConfig параметры генерации мира. Сохраняется один раз при создании
// мира и меняется только через ReconfigureWorld.
type WorldConfig struct {
	ID           uuid.UUID       `yaml:"id"`
	Seed         int64           `yaml:"seed"`
	BiomeScale   float64         `yaml:"biome_scale"`
	DiffToMerge  float64         `yaml:"diff_to_merge"`
	SurfaceLevel int             `yaml:"surface_level"`
	Octaves      int             `yaml:"octaves"`
	Persistence  float64         `yaml:"persistence"`
	Lacunarity   float64         `yaml:"lacunarity"`
	Noise        noise.Algorithm `yaml:"noise"`

	// Compression кодек регионов, выбранный при создании мира.
	// Не влияет на рельеф и сохраняется при смене настроек приложения.
	Compression string `yaml:"compression,omitempty"`

	// Biomes упорядочены от верхнего порога появления к нижнему.
	// Пустой список означает набор по умолчанию.
	Biomes []biome.Biome `yaml:"biomes,omitempty"`
}

// DefaultWorldConfig конфигурация мира по умолчанию
func DefaultWorldConfig(seed int64) *WorldConfig {
	return &WorldConfig{
		Seed:         seed,
		BiomeScale:   150,
		DiffToMerge:  0.025,
		SurfaceLevel: voxel.MaxHeight / 8,
		Octaves:      5,
		Persistence:  0.1,
		Lacunarity:   9,
		Noise:        noise.Perlin,
	}
}

// Normalize зажимает параметры в допустимые диапазоны
func (c *WorldConfig) Normalize() {
	if c.BiomeScale < 1 {
		c.BiomeScale = 1
	}
	c.DiffToMerge = clampFloat(c.DiffToMerge, 0.01, 0.5)
	c.SurfaceLevel = clampInt(c.SurfaceLevel, 1, voxel.MaxHeight)
	c.Octaves = clampInt(c.Octaves, 1, 5)
	c.Persistence = clampFloat(c.Persistence, 0.001, 1)
	c.Lacunarity = clampFloat(c.Lacunarity, 1, 20)
	if c.Noise == "" {
		c.Noise = noise.Perlin
	}
}

// SameGeneration совпадают ли параметры, влияющие на рельеф
func (c *WorldConfig) SameGeneration(other *WorldConfig) bool {
	return c.Seed == other.Seed &&
		c.BiomeScale == other.BiomeScale &&
		c.DiffToMerge == other.DiffToMerge &&
		c.SurfaceLevel == other.SurfaceLevel &&
		c.Octaves == other.Octaves &&
		c.Persistence == other.Persistence &&
		c.Lacunarity == other.Lacunarity &&
		c.Noise == other.Noise &&
		len(c.Biomes) == len(other.Biomes)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
