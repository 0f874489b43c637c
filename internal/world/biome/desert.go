package biome

import (
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// DesertConfig настройки пустыни
type DesertConfig struct {
	MaxHeightDifference int `yaml:"max_height_difference"`
	// SandDepth число вершин песка над скалой
	SandDepth int `yaml:"sand_depth"`
	// Дюны: однооктавный шум, добавляющий до ±DuneHeight к высоте поверхности
	DuneScale  float64 `yaml:"dune_scale"`
	DuneHeight float64 `yaml:"dune_height"`
}

func DefaultDesert() *DesertConfig {
	return &DesertConfig{
		MaxHeightDifference: voxel.MaxHeight / 5,
		SandDepth:           voxel.MaxHeight / 5,
		DuneScale:           12,
		DuneHeight:          1.5,
	}
}

func (b Biome) generateDesert(ctx Context, chunk vec.Vec2, merge []float32) voxel.Grid {
	cfg := b.Desert
	grid := voxel.NewGrid()
	heights := ctx.Sampler.Sample(b.Noise, chunk, false)

	var dunes []float32
	if cfg.DuneHeight > 0 {
		dunes = ctx.Sampler.SampleSimple(cfg.DuneScale, chunk)
	}

	for n := 0; n < voxel.ChunkVertexArea; n++ {
		target := (b.HeightCurve.Evaluate(float64(heights[n]))*2 - 1) * float64(cfg.MaxHeightDifference)
		if dunes != nil {
			target += (float64(dunes[n])*2 - 1) * cfg.DuneHeight
		}
		top, weight := surface(relief(ctx.SurfaceLevel, target, merge[n]), ctx.IsoLevel)

		for y := 0; y < voxel.ChunkVertexHeight; y++ {
			i := n + y*voxel.ChunkVertexArea
			switch {
			case y < top-cfg.SandDepth:
				grid[i] = solid(voxel.MaterialRock)
			case y < top:
				grid[i] = solid(voxel.MaterialSand)
			case y == top:
				grid[i] = voxel.Voxel{Density: weight, Material: voxel.MaterialSand}
			default:
				grid[i] = air
			}
		}
	}

	return grid
}
