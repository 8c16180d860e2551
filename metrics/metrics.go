package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GeofenceEntersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vau_geofence_enter_total",
		Help: "Total number of first-time POI radius entries",
	})
	HitsLoggedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vau_hits_logged_total",
		Help: "Total hits persisted, by kind",
	}, []string{"kind"})
	HitsRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vau_hits_rate_limited_total",
		Help: "Total hits rejected by the per-IP rate limit",
	})
	LocationErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vau_location_errors_total",
		Help: "Location failures reported by tracking clients, by code",
	}, []string{"code"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vau_active_sessions",
		Help: "Tracking sessions currently held in memory",
	})
)

func init() {
	prometheus.MustRegister(GeofenceEntersTotal)
	prometheus.MustRegister(HitsLoggedTotal)
	prometheus.MustRegister(HitsRateLimitedTotal)
	prometheus.MustRegister(LocationErrorsTotal)
	prometheus.MustRegister(ActiveSessions)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
