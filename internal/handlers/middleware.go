package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID keeps an incoming X-Request-ID or assigns a fresh one, and
// echoes it back on the response.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

const unmatchedRoute = "unmatched"

// routeLabel is the mux pattern that served r. Requests no pattern matched
// share one label so arbitrary paths cannot mint new series.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return unmatchedRoute
	}
	return r.Pattern
}

// WithMetrics records request durations labelled by route pattern.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		metrics.APIRequestDuration.WithLabelValues(
			routeLabel(r),
			r.Method,
			strconv.Itoa(rec.status),
		).Observe(time.Since(start).Seconds())

		logger.Debug.Printf("[%s] %s %s -> %d", RequestID(r.Context()), r.Method, r.URL.Path, rec.status)
	})
}
