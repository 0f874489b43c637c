package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/voxel-terrain/internal/config"
	"github.com/annel0/voxel-terrain/internal/logging"
	"github.com/annel0/voxel-terrain/internal/mesh"
	"github.com/annel0/voxel-terrain/internal/noise"
	"github.com/annel0/voxel-terrain/internal/region"
	"github.com/annel0/voxel-terrain/internal/storage"
	"github.com/annel0/voxel-terrain/internal/vec"
)

// Options параметры сессии мира
type Options struct {
	Name  string
	Store storage.BlobStore
	// Defaults конфигурация для нового мира; nil даёт значения по умолчанию со случайным сидом
	Defaults *WorldConfig
	// Compression кодек регионов для новых миров; существующий мир сохраняет свой
	Compression string

	IsoLevel    uint8
	Interpolate bool
	MeshWorkers int

	Streaming StreamingOptions
	TickRate  time.Duration
	AutoSave  time.Duration

	// Registerer для метрик; nil оставляет метрики незарегистрированными
	Registerer prometheus.Registerer
}

// OptionsFromConfig собирает параметры сессии из конфигурации приложения
func OptionsFromConfig(cfg *config.Config, store storage.BlobStore) Options {
	hz := cfg.Streaming.TickRateHz
	if hz <= 0 {
		hz = 30
	}
	// Нулевой сид означает случайный мир
	seed := cfg.World.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	defaults := DefaultWorldConfig(seed)
	defaults.Noise = noise.Algorithm(cfg.World.Noise)
	defaults.Compression = cfg.Storage.Compression

	return Options{
		Name:        cfg.World.Name,
		Store:       store,
		Defaults:    defaults,
		Compression: cfg.Storage.Compression,
		IsoLevel:    uint8(cfg.Terrain.IsoLevel),
		Interpolate: cfg.Terrain.Interpolate,
		MeshWorkers: cfg.Terrain.MeshWorkers,
		Streaming: StreamingOptions{
			ViewDistance:        cfg.Streaming.ViewDistance,
			MaintainMargin:      cfg.Streaming.MaintainMargin,
			LoadsPerTick:        cfg.Streaming.LoadsPerTick,
			SaveGeneratedChunks: cfg.Streaming.SaveGeneratedChunks,
		},
		TickRate: time.Second / time.Duration(hz),
		AutoSave: time.Duration(cfg.Streaming.AutoSaveSeconds) * time.Second,
	}
}

// Session владеет всеми подсистемами одного открытого мира:
// генератором шума, генератором чанков, построителем сеток, регионами и чанками
type Session struct {
	name    string
	config  *WorldConfig
	created bool

	sampler   *noise.Sampler
	generator *WorldGenerator
	builder   *mesh.Builder
	regions   *RegionManager
	chunks    *ChunkManager
	metrics   *Metrics

	tickRate time.Duration
	autoSave time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewSession открывает мир opts.Name (создавая его при отсутствии) и собирает сессию
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("не задано хранилище мира")
	}
	if opts.IsoLevel == 0 {
		opts.IsoLevel = 128
	}
	if opts.TickRate <= 0 {
		opts.TickRate = time.Second / 30
	}

	configured, err := region.NewCodec(opts.Compression)
	if err != nil {
		return nil, err
	}

	defaults := DefaultWorldConfig(rand.Int63())
	if opts.Defaults != nil {
		copied := *opts.Defaults
		defaults = &copied
	}
	if defaults.Compression == "" {
		defaults.Compression = configured.Name()
	}

	cfg, created, err := OpenOrCreateWorld(ctx, opts.Store, opts.Name, defaults)
	if err != nil {
		return nil, err
	}

	// Мир пишется кодеком, с которым создан; миры без записанного кодека используют настроенный
	codec := configured
	if cfg.Compression != "" && cfg.Compression != configured.Name() {
		if codec, err = region.NewCodec(cfg.Compression); err != nil {
			return nil, err
		}
		logging.GetStorageLogger().Warn("Мир %s сжат %s, настройка %s игнорируется", opts.Name, cfg.Compression, configured.Name())
	}

	sampler, err := noise.NewSampler(cfg.Seed, cfg.Noise)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания генератора шума: %w", err)
	}

	generator, err := NewWorldGenerator(cfg, sampler, opts.IsoLevel)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(opts.Registerer)
	builder := mesh.NewBuilder(mesh.Options{
		IsoLevel:    opts.IsoLevel,
		Interpolate: opts.Interpolate,
		Workers:     opts.MeshWorkers,
	})
	regions := NewRegionManager(opts.Name, opts.Store, codec, metrics)

	s := &Session{
		name:      opts.Name,
		config:    cfg,
		created:   created,
		sampler:   sampler,
		generator: generator,
		builder:   builder,
		regions:   regions,
		chunks:    NewChunkManager(opts.Streaming, generator, regions, builder, metrics),
		metrics:   metrics,
		tickRate:  opts.TickRate,
		autoSave:  opts.AutoSave,
	}

	logging.GetTerrainLogger().Info("🌍 Мир %s открыт (seed=%d, noise=%s, биомов: %d)",
		opts.Name, cfg.Seed, cfg.Noise, len(generator.Biomes()))
	return s, nil
}

// Name имя мира
func (s *Session) Name() string { return s.name }

// Config конфигурация мира
func (s *Session) Config() *WorldConfig { return s.config }

// Created был ли мир создан при открытии сессии
func (s *Session) Created() bool { return s.created }

// Generator генератор чанков мира
func (s *Session) Generator() *WorldGenerator { return s.generator }

// Builder построитель сеток
func (s *Session) Builder() *mesh.Builder { return s.builder }

// Chunks менеджер чанков
func (s *Session) Chunks() *ChunkManager { return s.chunks }

// Tick один шаг стриминга
func (s *Session) Tick(ctx context.Context, viewpoint vec.Vec3Float) error {
	return s.chunks.Tick(ctx, viewpoint)
}

// Run вызывает Tick с частотой tickRate, пока ctx не отменён.
// viewpoint опрашивается перед каждым тиком.
func (s *Session) Run(ctx context.Context, viewpoint func() vec.Vec3Float) error {
	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	var autoSave <-chan time.Time
	if s.autoSave > 0 {
		saveTicker := time.NewTicker(s.autoSave)
		defer saveTicker.Stop()
		autoSave = saveTicker.C
	}

	logger := logging.GetStreamingLogger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-autoSave:
			if err := s.chunks.SaveAll(ctx); err != nil {
				logger.Warn("Автосохранение завершилось с ошибкой: %v", err)
			}
		case <-ticker.C:
			if err := s.Tick(ctx, viewpoint()); err != nil {
				logger.Warn("Ошибка тика: %v", err)
			}
		}
	}
}

// ModifyTerrain изменяет рельеф кистью, см. ChunkManager.ModifyTerrain
func (s *Session) ModifyTerrain(point vec.Vec3Float, radius, delta float64, material int) int {
	return s.chunks.ModifyTerrain(point, radius, delta, material)
}

// GetMaterialAt материал рельефа в точке
func (s *Session) GetMaterialAt(point vec.Vec3Float) uint8 {
	return s.chunks.GetMaterialAt(point)
}

// SaveAll сохраняет все изменения мира
func (s *Session) SaveAll(ctx context.Context) error {
	return s.chunks.SaveAll(ctx)
}

// Close сохраняет мир и останавливает пул построения сеток. Повторный вызов возвращает первый результат.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		err := s.chunks.SaveAll(ctx)
		s.builder.Close()
		if err != nil {
			s.closeErr = errors.Join(fmt.Errorf("ошибка сохранения мира %s", s.name), err)
		}
		logging.GetTerrainLogger().Info("Мир %s закрыт", s.name)
	})
	return s.closeErr
}
