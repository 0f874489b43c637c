package biome

import (
	"github.com/annel0/voxel-terrain/internal/noise"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// MountainsConfig настройки гор. Материал поверхности зависит от уклона.
type MountainsConfig struct {
	MaxSurfaceHeight int `yaml:"max_surface_height"`
	// HeightMatOffset усиливает множитель HeightMatMult
	HeightMatOffset float64 `yaml:"height_mat_offset"`
	// HeightMatMult множитель уклона в зависимости от высоты
	HeightMatMult Curve   `yaml:"height_mat_mult"`
	SnowHeight    int     `yaml:"snow_height"`
	RockLevel     float64 `yaml:"rock_level"`
	DirtLevel     float64 `yaml:"dirt_level"`
}

func DefaultMountains() *MountainsConfig {
	return &MountainsConfig{
		MaxSurfaceHeight: voxel.MaxHeight - 1,
		HeightMatOffset:  10,
		HeightMatMult:    Identity(),
		SnowHeight:       35,
		RockLevel:        0.6,
		DirtLevel:        0.25,
	}
}

func (b Biome) generateMountains(ctx Context, chunk vec.Vec2, merge []float32) voxel.Grid {
	cfg := b.Mountains
	grid := voxel.NewGrid()
	heights := ctx.Sampler.Sample(b.Noise, chunk, true)
	span := float64(cfg.MaxSurfaceHeight - ctx.SurfaceLevel)

	for n := 0; n < voxel.ChunkVertexArea; n++ {
		x, z := n%voxel.ChunkVertexSize, n/voxel.ChunkVertexSize

		target := b.HeightCurve.Evaluate(float64(heights[noise.PaddedIndex(x, z)])) * span
		top, weight := surface(relief(ctx.SurfaceLevel, target, merge[n]), ctx.IsoLevel)
		slope := b.slope(x, z, heights)

		for y := 0; y < voxel.ChunkVertexHeight; y++ {
			i := n + y*voxel.ChunkVertexArea
			switch {
			case y < top:
				mat := voxel.MaterialDirt
				if y < top-5 || slope > cfg.RockLevel {
					mat = voxel.MaterialRock
				} else if slope < cfg.DirtLevel && y > cfg.SnowHeight {
					mat = voxel.MaterialSnow
				}
				grid[i] = solid(mat)
			case y == top:
				mat := voxel.MaterialGrass
				switch {
				case slope > cfg.RockLevel:
					mat = voxel.MaterialRock
				case slope > cfg.DirtLevel:
					mat = voxel.MaterialDirt
				case y > cfg.SnowHeight:
					mat = voxel.MaterialSnow
				}
				grid[i] = voxel.Voxel{Density: weight, Material: mat}
			default:
				grid[i] = air
			}
		}
	}

	return grid
}

// slope оценивает крутизну в вершине по минимуму высоты среди 3x3 соседей
func (b Biome) slope(x, z int, heights []float32) float64 {
	minValue := 1000.0
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			v := b.HeightCurve.Evaluate(float64(heights[noise.PaddedIndex(x+dx, z+dz)]))
			if v < minValue {
				minValue = v
			}
		}
	}

	point := b.HeightCurve.Evaluate(float64(heights[noise.PaddedIndex(x, z)]))
	if point <= 0 {
		return 0
	}
	cfg := b.Mountains
	return (1 - minValue/point) * (cfg.HeightMatMult.Evaluate(point) * cfg.HeightMatOffset)
}
