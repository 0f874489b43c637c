package world

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxel-terrain/internal/logging"
)

// Источники данных загруженного чанка
const (
	sourceRegion    = "region"
	sourceGenerated = "generated"
)

// Metrics Prometheus-метрики стриминга мира
type Metrics struct {
	chunks        *prometheus.GaugeVec
	regions       prometheus.Gauge
	loads         *prometheus.CounterVec
	evictions     prometheus.Counter
	droppedEdits  prometheus.Counter
	droppedLoads  prometheus.Counter
	flushFailures prometheus.Counter
	meshDuration  prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// nil reg оставляет метрики незарегистрированными (тесты, несколько сессий в процессе).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "terrain",
			Name:      "chunks_resident",
			Help:      "Число чанков в памяти по состоянию.",
		}, []string{"state"}),
		regions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terrain",
			Name:      "regions_resident",
			Help:      "Число регионов в окне вокруг точки обзора.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terrain",
			Name:      "chunk_loads_total",
			Help:      "Загруженные чанки по источнику данных.",
		}, []string{"source"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrain",
			Name:      "chunk_evictions_total",
			Help:      "Чанки, выгруженные из памяти.",
		}),
		droppedEdits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrain",
			Name:      "edits_dropped_total",
			Help:      "Изменения вершин, попавшие в незагруженные чанки.",
		}),
		droppedLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrain",
			Name:      "chunk_loads_dropped_total",
			Help:      "Ключи из очереди загрузки, отброшенные вне окна регионов или радиуса обзора.",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrain",
			Name:      "region_flush_failures_total",
			Help:      "Неудачные записи регионов в хранилище.",
		}),
		meshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "terrain",
			Name:      "mesh_build_seconds",
			Help:      "Время построения сетки одного чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if !errors.As(err, &already) {
					logging.Warn("Не удалось зарегистрировать метрику: %v", err)
				}
			}
		}
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.chunks, m.regions, m.loads, m.evictions,
		m.droppedEdits, m.droppedLoads, m.flushFailures, m.meshDuration,
	}
}

func (m *Metrics) observeMesh(start time.Time) {
	m.meshDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) setStats(s Stats) {
	m.chunks.WithLabelValues(Active.String()).Set(float64(s.Active))
	m.chunks.WithLabelValues(Hidden.String()).Set(float64(s.Hidden))
	m.chunks.WithLabelValues(Loading.String()).Set(float64(s.Queued))
	m.regions.Set(float64(s.Regions))
}

// ServeMetrics запускает HTTP-эндпоинт /metrics на addr (например, ":2112").
// Метод неблокирующий, сервер останавливается вместе с процессом.
func ServeMetrics(addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
}
