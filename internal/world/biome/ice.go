package biome

import (
	"math"

	"github.com/annel0/voxel-terrain/internal/noise"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// IceConfig настройки ледяного биома
type IceConfig struct {
	MaxHeightDifference int `yaml:"max_height_difference"`
	// SnowDepth число вершин снега над скалой
	SnowDepth int `yaml:"snow_depth"`

	// Ледяные столбы появляются там, где шум льда выше Appear
	IceNoise     noise.Params `yaml:"ice_noise"`
	IceAppear    float64      `yaml:"ice_appear"`
	IceMaxHeight int          `yaml:"ice_max_height"`
}

func DefaultIce() *IceConfig {
	return &IceConfig{
		MaxHeightDifference: voxel.MaxHeight / 5,
		SnowDepth:           voxel.MaxHeight / 5,
		IceNoise:            noise.Params{Scale: 40, Octaves: 2, Persistence: 0.5, Lacunarity: 2},
		IceAppear:           0.8,
		IceMaxHeight:        5,
	}
}

// columnHeight высота ледяного столба для значения шума
func (c *IceConfig) columnHeight(v float64) int {
	if v <= c.IceAppear || c.IceAppear <= 0 {
		return 0
	}
	return int(math.Ceil((1 - v) / c.IceAppear * float64(c.IceMaxHeight)))
}

func (b Biome) generateIce(ctx Context, chunk vec.Vec2, merge []float32) voxel.Grid {
	cfg := b.Ice
	grid := voxel.NewGrid()
	heights := ctx.Sampler.Sample(b.Noise, chunk, false)
	iceNoise := ctx.Sampler.Sample(cfg.IceNoise, chunk, false)

	for n := 0; n < voxel.ChunkVertexArea; n++ {
		target := (b.HeightCurve.Evaluate(float64(heights[n]))*2 - 1) * float64(cfg.MaxHeightDifference)
		top, weight := surface(relief(ctx.SurfaceLevel, target, merge[n]), ctx.IsoLevel)

		column := top + cfg.columnHeight(float64(iceNoise[n]))
		if column > voxel.MaxHeight-1 {
			column = voxel.MaxHeight - 1
		}

		for y := 0; y < voxel.ChunkVertexHeight; y++ {
			i := n + y*voxel.ChunkVertexArea
			if y < top-cfg.SnowDepth {
				grid[i] = solid(voxel.MaterialRock)
				continue
			}
			if y > column {
				grid[i] = air
				continue
			}

			mat := voxel.MaterialSnow
			if y > top {
				mat = voxel.MaterialIce
			}
			density := uint8(255)
			if y == column {
				density = weight
			}
			grid[i] = voxel.Voxel{Density: density, Material: mat}
		}
	}

	return grid
}
