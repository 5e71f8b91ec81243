package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	remoteCallHistogram   *prometheus.HistogramVec
	loginCounter          *prometheus.CounterVec
	rootKeyFetchCounter   *prometheus.CounterVec
	activeSessionsGauge   prometheus.Gauge
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		remoteCallHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remote_call_duration_seconds",
			Help:    "Latency of canister calls issued through an actor",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "kind", "outcome"})

		loginCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts per provider and outcome",
		}, []string{"provider", "outcome"})

		rootKeyFetchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "root_key_fetch_total",
			Help: "Trust bootstrap attempts against local replicas",
		}, []string{"result"})

		activeSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_sessions",
			Help: "Sessions currently held by the gateway",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			remoteCallHistogram,
			loginCounter,
			rootKeyFetchCounter,
			activeSessionsGauge,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveRemoteCall records one proxy call. kind is "query" or "update".
func ObserveRemoteCall(method, kind, outcome string, duration time.Duration) {
	if remoteCallHistogram == nil {
		return
	}
	remoteCallHistogram.WithLabelValues(method, kind, outcome).Observe(duration.Seconds())
}

func IncrementLogin(provider, outcome string) {
	if loginCounter == nil {
		return
	}
	loginCounter.WithLabelValues(provider, outcome).Inc()
}

func IncrementRootKeyFetch(result string) {
	if rootKeyFetchCounter == nil {
		return
	}
	rootKeyFetchCounter.WithLabelValues(result).Inc()
}

func SetActiveSessions(n int) {
	if activeSessionsGauge == nil {
		return
	}
	activeSessionsGauge.Set(float64(n))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
