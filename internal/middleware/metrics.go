package middleware

import (
	"net/http"
	"time"

	"github.com/raakeshmj/socialplane/internal/metrics"
)

func MetricsMiddleware(collector *metrics.Collector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newInterceptor(w)

			next.ServeHTTP(rw, r)

			collector.Record(r.Method, routePattern(r), rw.statusCode, time.Since(start))
		})
	}
}
