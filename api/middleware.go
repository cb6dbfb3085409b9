package api

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/metrics"
)

type contextKey string

// RequestIDContextKey holds the uuid.UUID assigned to each request.
const RequestIDContextKey = contextKey("request_id")

// RequestID returns the id MetricsMiddleware assigned to the request of ctx.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(uuid.UUID); ok {
		return id.String()
	}
	return ""
}

// normalizeEndpoint removes wallet addresses from the URL in order to
// make it possible to group the Prometheus metrics nicely.
func normalizeEndpoint(url string) string {
	var nels []string
	for _, e := range strings.Split(url, "/") {
		// Addresses are 56 characters long; route names are short.
		if len(e) >= 32 {
			nels = append(nels, "*")
		} else {
			nels = append(nels, e)
		}
	}
	return strings.Join(nels, "/")
}

// MetricsMiddleware is a middleware that measures the start and end of each request,
// as well as other useful request information.
// It should be used as the outermost middleware, so it can
// - set a requestID and make it available to all handlers and
// - observe the final HTTP status code at the end of the request.
func MetricsMiddleware(m metrics.RequestMetrics, logger *log.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New()
			logger.Debug("starting request",
				"endpoint", r.URL.Path,
				"request_id", requestID,
			)
			t := time.Now()
			metricName := normalizeEndpoint(r.URL.Path)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(
				context.WithValue(r.Context(), RequestIDContextKey, requestID),
			))

			httpStatus := ww.Status()
			if httpStatus == 0 {
				httpStatus = http.StatusOK
			}
			latency := time.Since(t)
			logger.Info("ending request",
				"method", r.Method,
				"query_path", r.URL.Path,
				"request_id", requestID,
				"latency", latency,
				"latency_bin", binQueryLatency(latency),
				"status_code", httpStatus,
			)

			statusTxt := "failure"
			if httpStatus >= 200 && httpStatus < 400 {
				statusTxt = "success"
			} else if httpStatus >= 400 && httpStatus < 500 {
				// Unknown wallets and malformed bodies are not interesting per endpoint.
				statusTxt = "failure_4xx"
				metricName = "ignored"
			}
			if !utf8.ValidString(metricName) {
				metricName = "ignored"
				statusTxt = "non_utf8_path"
			}
			m.RequestCounter(metricName, statusTxt, r.Method).Inc()
			m.RequestLatencies.WithLabelValues(metricName).Observe(latency.Seconds())
		})
	}
}

// Bin request durations to make it easier to search for slow queries in logs.
func binQueryLatency(t time.Duration) string {
	switch {
	case t < 100*time.Millisecond:
		return "<100ms"
	case t < 300*time.Millisecond:
		return "100-300ms"
	case t < 500*time.Millisecond:
		return "300-500ms"
	case t < 1000*time.Millisecond:
		return "500-1000ms"
	default:
		return ">1000ms"
	}
}

// CorsMiddleware answers preflight requests and sets CORS headers for the
// directory's two methods. An empty origin list allows any origin.
func CorsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}).Handler
}
