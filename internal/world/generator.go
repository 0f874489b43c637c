package world

import (
	"fmt"

	"github.com/annel0/voxel-terrain/internal/noise"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/biome"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// WorldGenerator генерирует данные чанков: карта биомов, смешивание на
// границах и генерация колонн каждым биомом
type WorldGenerator struct {
	cfg     *WorldConfig
	sampler *noise.Sampler
	ctx     biome.Context

	biomes []biome.Biome
	// appear порог появления каждого биома, по убыванию
	appear []float64
}

// NewWorldGenerator создаёт генератор мира
func NewWorldGenerator(cfg *WorldConfig, sampler *noise.Sampler, isoLevel uint8) (*WorldGenerator, error) {
	biomes := cfg.Biomes
	if len(biomes) == 0 {
		biomes = biome.Defaults()
	}

	out := make([]biome.Biome, len(biomes))
	appear := make([]float64, len(biomes))
	for i, b := range biomes {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("ошибка настройки биома %d: %w", i, err)
		}
		out[i] = b
		appear[i] = float64(len(biomes)-i) / float64(len(biomes))
	}

	return &WorldGenerator{
		cfg:     cfg,
		sampler: sampler,
		ctx: biome.Context{
			Sampler:      sampler,
			IsoLevel:     isoLevel,
			SurfaceLevel: cfg.SurfaceLevel,
		},
		biomes: out,
		appear: appear,
	}, nil
}

// Biomes биомы генератора в порядке порогов
func (wg *WorldGenerator) Biomes() []biome.Biome {
	return wg.biomes
}

// biomeNoise параметры шума карты биомов
func (wg *WorldGenerator) biomeNoise() noise.Params {
	return noise.Params{
		Scale:       wg.cfg.BiomeScale * float64(len(wg.biomes)),
		Octaves:     wg.cfg.Octaves,
		Persistence: wg.cfg.Persistence,
		Lacunarity:  wg.cfg.Lacunarity,
	}
}

// Classify выбирает биом каждой колонны и вес смешивания (1 = без смешивания,
// 0 = полное смешивание с соседним биомом на уровне поверхности мира)
func (wg *WorldGenerator) Classify(values []float32) ([]int, []float32) {
	index := make([]int, len(values))
	merge := make([]float32, len(values))
	diff := wg.cfg.DiffToMerge
	last := len(wg.biomes) - 1

	for n, v := range values {
		value := float64(v)

		// Наибольший номер биома, порог которого выше значения
		i := last
		for i > 0 && value >= wg.appear[i] {
			i--
		}

		switch {
		case i != 0 && wg.appear[i]-value < diff:
			merge[n] = float32((wg.appear[i] - value) / diff)
		case i != last && value-wg.appear[i+1] < diff:
			merge[n] = float32((value - wg.appear[i+1]) / diff)
		default:
			merge[n] = 1
		}
		index[n] = i
	}

	return index, merge
}

// GenerateChunkData строит сетку вершин чанка. Каждый встреченный биом
// генерирует чанк один раз, колонны копируются из биома своей колонны.
func (wg *WorldGenerator) GenerateChunkData(chunk vec.Vec2) voxel.Grid {
	values := wg.sampler.Sample(wg.biomeNoise(), chunk, false)
	index, merge := wg.Classify(values)

	generated := make([]voxel.Grid, len(wg.biomes))
	out := make(voxel.Grid, voxel.ChunkTotalVertices)

	for n := 0; n < voxel.ChunkVertexArea; n++ {
		b := index[n]
		if generated[b] == nil {
			generated[b] = wg.biomes[b].Generate(wg.ctx, chunk, merge)
		}
		src := generated[b]
		for y := 0; y < voxel.ChunkVertexHeight; y++ {
			i := n + y*voxel.ChunkVertexArea
			out[i] = src[i]
		}
	}

	return out
}
