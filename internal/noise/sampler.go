package noise

import (
	"fmt"
	"math/rand"

	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Algorithm алгоритм когерентного шума
type Algorithm string

const (
	Perlin      Algorithm = "perlin"
	OpenSimplex Algorithm = "opensimplex"
)

const (
	// PaddedSize сторона карты с дополнительной вершиной с каждой стороны (для расчёта уклонов)
	PaddedSize = voxel.ChunkVertexSize + 2
	PaddedArea = PaddedSize * PaddedSize

	minScale     = 0.0001
	offsetRange  = 100000
	heightFactor = 0.99 // максимум суммы октав почти недостижим
)

// Params параметры многооктавного шума
type Params struct {
	Scale       float64 `yaml:"scale" json:"scale"`
	Octaves     int     `yaml:"octaves" json:"octaves"`
	Persistence float64 `yaml:"persistence" json:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity" json:"lacunarity"`
}

// Sampler детерминированный генератор карт шума для чанков.
// Результат зависит только от сида, параметров и координаты чанка.
type Sampler struct {
	seed      int64
	algorithm Algorithm
	source    func(x, y float64) float64
}

// NewSampler создаёт генератор с указанным сидом и алгоритмом
func NewSampler(seed int64, algorithm Algorithm) (*Sampler, error) {
	s := &Sampler{seed: seed, algorithm: algorithm}

	switch algorithm {
	case Perlin, "":
		// alpha=2, beta=2, одна октава: октавы складываются в Sample
		p := perlin.NewPerlin(2, 2, 1, seed)
		s.source = p.Noise2D
		s.algorithm = Perlin
	case OpenSimplex:
		n := opensimplex.New(seed)
		s.source = n.Eval2
	default:
		return nil, fmt.Errorf("неизвестный алгоритм шума: %s", algorithm)
	}

	return s, nil
}

// Seed возвращает сид генератора
func (s *Sampler) Seed() int64 {
	return s.seed
}

// Algorithm возвращает используемый алгоритм
func (s *Sampler) Algorithm() Algorithm {
	return s.algorithm
}

// Sample возвращает карту шума в диапазоне примерно [0,1] для вершин чанка.
// При padded карта больше на одну вершину с каждой стороны, индекс через PaddedIndex.
func (s *Sampler) Sample(p Params, chunk vec.Vec2, padded bool) []float32 {
	p = p.normalized()

	size := voxel.ChunkVertexSize
	shift := 0.0
	if padded {
		size = PaddedSize
		shift = -1
	}

	offsets, maxPossibleHeight := s.octaveOffsets(p, chunk, shift)
	half := float64(voxel.ChunkVertexSize) / 2

	out := make([]float32, size*size)
	for n := range out {
		x := float64(n % size)
		z := float64(n / size)

		amplitude, frequency := 1.0, 1.0
		height := 0.0
		for i := 0; i < p.Octaves; i++ {
			sx := frequency * (x + offsets[i].X - half) / p.Scale
			sz := frequency * (z + offsets[i].Z - half) / p.Scale
			height += amplitude * (s.source(sx, sz) + 1) / 2

			amplitude *= p.Persistence
			frequency *= p.Lacunarity
		}

		out[n] = float32(height / (maxPossibleHeight * heightFactor))
	}

	return out
}

// SampleSimple однооктавная карта [0,1] размера ChunkVertexArea
func (s *Sampler) SampleSimple(scale float64, chunk vec.Vec2) []float32 {
	if scale <= 0 {
		scale = minScale
	}

	rng := rand.New(rand.NewSource(s.seed))
	off := vec.Vec2Float{
		X: float64(rng.Intn(2*offsetRange)-offsetRange) + float64(chunk.X*voxel.ChunkSize),
		Z: float64(rng.Intn(2*offsetRange)-offsetRange) + float64(chunk.Z*voxel.ChunkSize),
	}
	half := float64(voxel.ChunkVertexSize) / 2

	out := make([]float32, voxel.ChunkVertexArea)
	for n := range out {
		x := float64(n % voxel.ChunkVertexSize)
		z := float64(n / voxel.ChunkVertexSize)
		out[n] = float32((s.source((x+off.X-half)/scale, (z+off.Z-half)/scale) + 1) / 2)
	}
	return out
}

// PaddedIndex индекс вершины (x,z) чанка в расширенной карте; x,z в [-1, ChunkVertexSize]
func PaddedIndex(x, z int) int {
	return (x + 1) + (z+1)*PaddedSize
}

func (s *Sampler) octaveOffsets(p Params, chunk vec.Vec2, shift float64) ([]vec.Vec2Float, float64) {
	// Новый источник на каждый вызов: смещения октав одинаковы для всех чанков мира
	rng := rand.New(rand.NewSource(s.seed))

	offsets := make([]vec.Vec2Float, p.Octaves)
	maxPossibleHeight := 0.0
	amplitude := 1.0

	for i := range offsets {
		offsets[i] = vec.Vec2Float{
			X: float64(rng.Intn(2*offsetRange)-offsetRange) + float64(chunk.X*voxel.ChunkSize) + shift,
			Z: float64(rng.Intn(2*offsetRange)-offsetRange) + float64(chunk.Z*voxel.ChunkSize) + shift,
		}
		maxPossibleHeight += amplitude
		amplitude *= p.Persistence
	}

	return offsets, maxPossibleHeight
}

func (p Params) normalized() Params {
	if p.Scale <= 0 {
		p.Scale = minScale
	}
	if p.Octaves < 1 {
		p.Octaves = 1
	}
	if p.Lacunarity <= 0 {
		p.Lacunarity = 1
	}
	if p.Persistence < 0 {
		p.Persistence = 0
	}
	return p
}
