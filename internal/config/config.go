package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Streaming StreamingConfig `yaml:"streaming"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorldConfig выбирает мир, с которым работает сессия.
// Параметры генерации хранятся в документе самого мира, а не здесь.
type WorldConfig struct {
	Name string `yaml:"name"`
	Seed int64  `yaml:"seed"`
	// Noise выбирает алгоритм когерентного шума для новых миров: perlin | opensimplex
	Noise string `yaml:"noise"`
}

type TerrainConfig struct {
	IsoLevel    int  `yaml:"iso_level"`
	Interpolate bool `yaml:"interpolate"`
	MeshWorkers int  `yaml:"mesh_workers"`
}

type StreamingConfig struct {
	ViewDistance        int     `yaml:"view_distance"`
	MaintainMargin      float64 `yaml:"maintain_margin"`
	LoadsPerTick        int     `yaml:"loads_per_tick"`
	SaveGeneratedChunks bool    `yaml:"save_generated_chunks"`
	TickRateHz          int     `yaml:"tick_rate_hz"`
	// AutoSaveSeconds период автосохранения в Run, 0 отключает
	AutoSaveSeconds int `yaml:"autosave_seconds"`
}

type StorageConfig struct {
	// Backend: file | memory | badger | leveldb | redis
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	// Compression: zstd | gzip | none
	Compression string `yaml:"compression"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Endpoint адрес OTLP HTTP коллектора; пусто означает переменные окружения OTEL_* или localhost:4318
	Endpoint string `yaml:"endpoint"`
	// SampleRatio доля трассируемых тиков, 0 означает все
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Name:  "default",
			Noise: "perlin",
		},
		Terrain: TerrainConfig{
			IsoLevel:    128,
			Interpolate: false,
		},
		Streaming: StreamingConfig{
			ViewDistance:    10,
			MaintainMargin:  0.3,
			LoadsPerTick:    1,
			TickRateHz:      30,
			AutoSaveSeconds: 60,
		},
		Storage: StorageConfig{
			Backend:     "file",
			Path:        "worlds",
			Compression: "zstd",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "terrain:",
		},
		Metrics: MetricsConfig{
			Port: 2112,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "voxel-terrain",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(m.Port, "TERRAIN_METRICS_PORT", 2112)
}

// GetRedisAddr возвращает адрес Redis: config -> env -> default
func (s *StorageConfig) GetRedisAddr() string {
	if s.RedisAddr != "" {
		return s.RedisAddr
	}
	if env := os.Getenv("TERRAIN_REDIS_ADDR"); env != "" {
		return env
	}
	return "localhost:6379"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Normalize подставляет значения по умолчанию вместо нулевых и ограничивает диапазоны
func (c *Config) Normalize() {
	def := Default()

	if c.World.Name == "" {
		c.World.Name = def.World.Name
	}
	if c.World.Noise == "" {
		c.World.Noise = def.World.Noise
	}
	if c.Terrain.IsoLevel <= 0 || c.Terrain.IsoLevel > 255 {
		c.Terrain.IsoLevel = def.Terrain.IsoLevel
	}
	if c.Streaming.ViewDistance <= 0 {
		c.Streaming.ViewDistance = def.Streaming.ViewDistance
	}
	if c.Streaming.MaintainMargin <= 0 {
		c.Streaming.MaintainMargin = def.Streaming.MaintainMargin
	}
	if c.Streaming.LoadsPerTick <= 0 {
		c.Streaming.LoadsPerTick = def.Streaming.LoadsPerTick
	}
	if c.Streaming.TickRateHz <= 0 {
		c.Streaming.TickRateHz = def.Streaming.TickRateHz
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.Compression == "" {
		c.Storage.Compression = def.Storage.Compression
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV TERRAIN_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TERRAIN_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}
