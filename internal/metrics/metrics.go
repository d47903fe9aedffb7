// Package metrics exposes Prometheus collectors for HTTP traffic, database
// latency, Steam API calls and sync runs.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamarena_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "steamarena_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "steamarena_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	steamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamarena_steam_requests_total",
		Help: "Steam Web API requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamarena_sync_runs_total",
		Help: "Sync runs by type and status.",
	}, []string{"type", "status"})

	syncItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamarena_sync_items_total",
		Help: "Items written by sync runs.",
	}, []string{"type"})

	resyncLastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "steamarena_resync_last_run_users",
		Help: "Users synced and failed by the last scheduled resync.",
	}, []string{"outcome"})

	snapshotRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "steamarena_playtime_snapshot_rows_total",
		Help: "Playtime history rows written by snapshots.",
	})
)

// Middleware records request counts and latencies labelled by chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// The pattern is only complete once chi has routed the request.
			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDB returns a func that records the latency of operation when called.
//
//	defer metrics.ObserveDB(ctx, "add_members")()
func ObserveDB(_ context.Context, operation string) func() {
	start := time.Now()
	return func() {
		dbLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// SteamRequest counts one Steam Web API call.
func SteamRequest(endpoint string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	steamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// SyncRun counts one finished sync run and the items it wrote.
func SyncRun(syncType, status string, items int) {
	syncRunsTotal.WithLabelValues(syncType, status).Inc()
	if items > 0 {
		syncItemsTotal.WithLabelValues(syncType).Add(float64(items))
	}
}

// ResyncRun records the outcome of one scheduled full resync.
func ResyncRun(synced, failed int) {
	resyncLastRun.WithLabelValues("synced").Set(float64(synced))
	resyncLastRun.WithLabelValues("failed").Set(float64(failed))
}

// SnapshotRecorded counts the rows one playtime snapshot wrote.
func SnapshotRecorded(rows int) {
	snapshotRowsTotal.Add(float64(rows))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
