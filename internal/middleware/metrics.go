package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matehub_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MateAdvances counts mate progression actions by outcome
	// (created, advanced, promoted, cooldown, already_mates, at_threshold).
	MateAdvances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matehub_mate_advances_total",
		Help: "Total number of mate advance actions by outcome",
	}, []string{"outcome"})

	// NotificationEmits counts emitted notifications by type and result.
	NotificationEmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matehub_notification_emits_total",
		Help: "Total number of emitted notifications by type and result",
	}, []string{"type", "result"})
)

var (
	promOnce sync.Once
	promInst *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the fiberprometheus middleware for the given service
// name. The instance is shared: fiberprometheus registers its collectors
// globally, so constructing more than one would panic.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInst = fiberprometheus.New(serviceName)
	})
	return promInst
}

// MetricsMiddleware returns a Fiber handler that records HTTP metrics.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
