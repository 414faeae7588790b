// Package metrics - Prometheus-метрики платежей, escrow и фоновых задач.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "amhang"

var (
	// HTTPRequestsTotal считает запросы по методу, шаблону пути и классу статуса.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status class.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GatewayRequestsTotal - вызовы платёжного шлюза по операции и результату.
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Payment gateway calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// MissionPaymentsTotal - итог оркестрации оплаты миссии.
	MissionPaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mission_payments_total",
			Help:      "Mission payment orchestrations by result.",
		},
		[]string{"result"},
	)

	// RollbacksTotal - компенсирующие отмены платежей.
	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Compensating payment cancellations by outcome.",
		},
		[]string{"outcome"},
	)

	SettlementEscrowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_escrows_total",
			Help:      "Escrows handled by the settlement engine by result.",
		},
		[]string{"result"},
	)

	ExpiredMissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_missions_total",
			Help:      "Missions handled by the expiry reaper by result.",
		},
		[]string{"result"},
	)

	PublishedReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_reviews_total",
			Help:      "Reviews handled by the auto-publish timer by result.",
		},
		[]string{"result"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by type and result.",
		},
		[]string{"type", "result"},
	)

	// JobRunsTotal - запуски фоновых задач.
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		},
		[]string{"job", "result"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"job"},
	)

	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GatewayRequestsTotal,
		MissionPaymentsTotal,
		RollbacksTotal,
		SettlementEscrowsTotal,
		ExpiredMissionsTotal,
		PublishedReviewsTotal,
		NotificationsTotal,
		JobRunsTotal,
		JobDuration,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector периодически снимает статистику пула. Запускать в горутине.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware пишет метрики каждого HTTP запроса.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// FullPath - шаблон маршрута, а не реальный путь: иначе взрыв кардинальности
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(c.Request.Method, c.FullPath()))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), statusBucket(c.Writer.Status())).Inc()
	}
}

// Handler отдаёт /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
