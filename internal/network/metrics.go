package network

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/gemworld/internal/eventbus"
	"github.com/annel0/gemworld/internal/logging"
	"github.com/annel0/gemworld/internal/world"
)

// Метрики Prometheus игрового сервера.
var (
	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gemworld_active_sessions",
		Help: "Количество активных клиентских сессий",
	})

	metricModificationsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gemworld_modifications_published_total",
		Help: "Количество изменений мира, опубликованных на шине",
	})

	metricResidentChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gemworld_resident_chunks",
		Help: "Количество резидентных чанков игрового мира",
	})

	metricWorldEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gemworld_world_entities",
		Help: "Количество сущностей в игровом мире",
	})

	metricBusDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gemworld_bus_dropped_events",
		Help: "Количество событий, потерянных отстающими подписчиками шины",
	})
)

// ServeMetrics запускает HTTP-сервер метрик Prometheus и фоновую горутину,
// периодически обновляющую показатели мира и шины. Контекста не принимает:
// горутина обновления и http-сервер работают до завершения процесса.
func ServeMetrics(addr string, gameMap *world.Map, bus *eventbus.Bus) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			metricResidentChunks.Set(float64(gameMap.ResidentChunkCount()))
			metricWorldEntities.Set(float64(gameMap.EntityCount()))
			metricBusDropped.Set(float64(bus.Metrics().Dropped))
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		if err := http.ListenAndServe(addr, mux); err != nil {
			logging.Warn("Сервер метрик завершился: %v", err)
		}
	}()

	logging.Info("Метрики Prometheus доступны на %s/metrics", addr)
}
