package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector counts HTTP traffic alongside engine-level events so the
// metrics endpoint can report both from one place.
type MetricsCollector struct {
	requestCount atomic.Int64
	errorCount   atomic.Int64

	sweepCount   atomic.Int64
	sessionCount atomic.Int64
	rescueCount  atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
	Sweeps   int64 `json:"sweeps"`
	Sessions int64 `json:"sessions"`
	Rescues  int64 `json:"rescues"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

func (mc *MetricsCollector) RecordSweep()   { mc.sweepCount.Add(1) }
func (mc *MetricsCollector) RecordSession() { mc.sessionCount.Add(1) }
func (mc *MetricsCollector) RecordRescue()  { mc.rescueCount.Add(1) }

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests: mc.requestCount.Load(),
		Errors:   mc.errorCount.Load(),
		Sweeps:   mc.sweepCount.Load(),
		Sessions: mc.sessionCount.Load(),
		Rescues:  mc.rescueCount.Load(),
	}
}

// Middleware returns middleware that counts requests and errors.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
	})
}
