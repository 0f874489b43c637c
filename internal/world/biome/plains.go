package biome

import (
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// PlainsConfig настройки равнин
type PlainsConfig struct {
	// MaxHeightDifference максимальное отклонение поверхности от уровня мира
	MaxHeightDifference int `yaml:"max_height_difference"`
	// DirtDepth толщина слоя земли под травой
	DirtDepth int `yaml:"dirt_depth"`
}

func DefaultPlains() *PlainsConfig {
	return &PlainsConfig{MaxHeightDifference: voxel.MaxHeight / 5, DirtDepth: 5}
}

func (b Biome) generatePlains(ctx Context, chunk vec.Vec2, merge []float32) voxel.Grid {
	cfg := b.Plains
	grid := voxel.NewGrid()
	heights := ctx.Sampler.Sample(b.Noise, chunk, false)

	for n := 0; n < voxel.ChunkVertexArea; n++ {
		target := (b.HeightCurve.Evaluate(float64(heights[n]))*2 - 1) * float64(cfg.MaxHeightDifference)
		top, weight := surface(relief(ctx.SurfaceLevel, target, merge[n]), ctx.IsoLevel)

		for y := 0; y < voxel.ChunkVertexHeight; y++ {
			i := n + y*voxel.ChunkVertexArea
			switch {
			case y < top-cfg.DirtDepth:
				grid[i] = solid(voxel.MaterialRock)
			case y < top:
				grid[i] = solid(voxel.MaterialDirt)
			case y == top:
				grid[i] = voxel.Voxel{Density: weight, Material: voxel.MaterialGrass}
			default:
				grid[i] = air
			}
		}
	}

	return grid
}
