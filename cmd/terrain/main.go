package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/annel0/voxel-terrain/internal/config"
	"github.com/annel0/voxel-terrain/internal/logging"
	"github.com/annel0/voxel-terrain/internal/observability"
	"github.com/annel0/voxel-terrain/internal/storage"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

var components = []string{"storage", "terrain", "streaming", "mesh"}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (default: $TERRAIN_CONFIG)")
		command    = flag.String("cmd", "info", "Command: create, delete, info, walk, export, run")
		worldName  = flag.String("world", "", "World name (overrides config)")
		seed       = flag.Int64("seed", 0, "Seed for a new world, 0 means random")
		noiseAlg   = flag.String("noise", "", "Noise algorithm for a new world: perlin, opensimplex")
		steps      = flag.Int("steps", 200, "Ticks for the walk command")
		speed      = flag.Float64("speed", 4, "Viewpoint speed per tick for the walk command")
		chunkX     = flag.Int("cx", 0, "Chunk X for the export command")
		chunkZ     = flag.Int("cz", 0, "Chunk Z for the export command")
		out        = flag.String("out", "chunk.obj", "Output file for the export command")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *worldName != "" {
		cfg.World.Name = *worldName
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *noiseAlg != "" {
		cfg.World.Noise = *noiseAlg
	}

	if err := setupLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("OpenTelemetry недоступен: %v", err)
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}
	defer store.Close()

	switch *command {
	case "create":
		err = createWorld(ctx, store, cfg)
	case "delete":
		err = deleteWorld(ctx, store, cfg.World.Name)
	case "info":
		err = showInfo(ctx, store, cfg.World.Name)
	case "walk":
		err = withSession(ctx, store, cfg, func(s *world.Session) error {
			return walk(ctx, s, *steps, *speed)
		})
	case "export":
		err = withSession(ctx, store, cfg, func(s *world.Session) error {
			return exportChunk(ctx, s, vec.Vec2{X: *chunkX, Z: *chunkZ}, *out)
		})
	case "run":
		err = withSession(ctx, store, cfg, func(s *world.Session) error {
			return orbit(ctx, s)
		})
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: create, delete, info, walk, export, run")
		os.Exit(1)
	}

	if err != nil {
		logging.Error("❌ Команда %s завершилась с ошибкой: %v", *command, err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.LoggingConfig) error {
	level := logging.ParseLevel(cfg.Level)
	if err := logging.InitDefaultLogger("terrain", cfg.Dir, level); err != nil {
		return err
	}

	manager := logging.GetLoggerManager()
	manager.SetDirectory(cfg.Dir)
	for _, c := range components {
		if err := manager.SetLogLevel(c, level, logging.DEBUG); err != nil {
			return err
		}
	}
	return nil
}

func newWorldConfig(cfg *config.Config) *world.WorldConfig {
	opts := world.OptionsFromConfig(cfg, nil)
	return opts.Defaults
}

func createWorld(ctx context.Context, store storage.BlobStore, cfg *config.Config) error {
	created, err := world.CreateWorld(ctx, store, cfg.World.Name, newWorldConfig(cfg))
	if err != nil {
		return err
	}
	fmt.Printf("🌍 World %q created: id=%s seed=%d noise=%s\n", cfg.World.Name, created.ID, created.Seed, created.Noise)
	return nil
}

func deleteWorld(ctx context.Context, store storage.BlobStore, name string) error {
	removed, err := world.DeleteWorld(ctx, store, name)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("World %q not found\n", name)
		return nil
	}
	fmt.Printf("🗑️ World %q deleted\n", name)
	return nil
}

func showInfo(ctx context.Context, store storage.BlobStore, name string) error {
	cfg, err := world.LoadWorldConfig(ctx, store, name)
	if errors.Is(err, world.ErrWorldNotFound) {
		fmt.Printf("World %q not found\n", name)
		return nil
	}
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("ошибка сериализации конфигурации: %w", err)
	}
	fmt.Printf("World %q:\n%s", name, data)
	return nil
}

func withSession(ctx context.Context, store storage.BlobStore, cfg *config.Config, fn func(*world.Session) error) error {
	opts := world.OptionsFromConfig(cfg, store)
	if cfg.Metrics.Enabled {
		opts.Registerer = prometheus.DefaultRegisterer
		world.ServeMetrics(fmt.Sprintf(":%d", cfg.Metrics.GetMetricsPort()), prometheus.DefaultGatherer)
	}

	s, err := world.NewSession(ctx, opts)
	if err != nil {
		return err
	}

	runErr := fn(s)
	// Сохранение не должно прерываться отменой контекста по сигналу
	closeErr := s.Close(context.WithoutCancel(ctx))
	return errors.Join(runErr, closeErr)
}

// walk ведёт точку обзора по прямой и копает тоннель у поверхности каждые 10 тиков
func walk(ctx context.Context, s *world.Session, steps int, speed float64) error {
	viewpoint := vec.Vec3Float{X: voxel.ChunkSide / 2, Y: float64(s.Config().SurfaceLevel), Z: voxel.ChunkSide / 2}

	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := s.Tick(ctx, viewpoint); err != nil {
			logging.Warn("Ошибка тика %d: %v", i, err)
		}
		if i%10 == 9 {
			changed := s.ModifyTerrain(viewpoint, 3, -60, -1)
			logging.Debug("Тоннель в %v: изменено вершин %d, материал %d", viewpoint, changed, s.GetMaterialAt(viewpoint))
		}
		viewpoint.X += speed
	}

	stats := s.Chunks().Stats()
	fmt.Printf("Walked to (%.1f, %.1f): active=%d hidden=%d queued=%d regions=%d\n",
		viewpoint.X, viewpoint.Z, stats.Active, stats.Hidden, stats.Queued, stats.Regions)
	return nil
}

// exportChunk стримит мир вокруг чанка до его загрузки и пишет сетку в OBJ
func exportChunk(ctx context.Context, s *world.Session, key vec.Vec2, path string) error {
	center := vec.Vec3Float{
		X: float64(key.X)*voxel.ChunkSide + voxel.ChunkSide/2,
		Z: float64(key.Z)*voxel.ChunkSide + voxel.ChunkSide/2,
	}

	var chunk *world.Chunk
	for chunk == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Tick(ctx, center); err != nil {
			return err
		}
		if c, ok := s.Chunks().Chunk(key); ok {
			chunk = c
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла %s: %w", path, err)
	}
	defer f.Close()

	m := chunk.Mesh()
	origin := mgl32.Vec3{float32(key.X) * voxel.ChunkSide, 0, float32(key.Z) * voxel.ChunkSide}
	if err := m.WriteOBJ(f, origin); err != nil {
		return fmt.Errorf("ошибка записи OBJ: %w", err)
	}

	fmt.Printf("💾 Chunk %v exported to %s: %d triangles\n", key, path, m.TriangleCount())
	return nil
}

// orbit крутит точку обзора по кругу вокруг начала мира до сигнала завершения
func orbit(ctx context.Context, s *world.Session) error {
	tick := 0
	radius := 4 * voxel.ChunkSide
	return s.Run(ctx, func() vec.Vec3Float {
		tick++
		angle := float64(tick) / 300
		return vec.Vec3Float{X: radius * math.Cos(angle), Y: float64(s.Config().SurfaceLevel), Z: radius * math.Sin(angle)}
	})
}
