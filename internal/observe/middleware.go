package observe

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// statusRecorder wraps [http.ResponseWriter] to capture the status code
// written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and delegates to the wrapped writer.
func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so [http.ResponseController] can reach
// Hijack and Flush. Without it the WebSocket upgrade on the session endpoint
// fails behind this middleware.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// isWebSocketUpgrade reports whether r is an HTTP/1.1 WebSocket handshake.
func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// Middleware returns an [http.Handler] that wraps every gateway route with
// tracing, metrics, and a completion log.
//
// Incoming W3C Trace Context headers are honoured, so a mobile client that
// already carries a trace keeps its trace ID through the voice session. The
// trace ID is echoed back in the X-Correlation-ID response header.
//
// WebSocket upgrades are carried as long-lived traffic: the span covers the
// whole voice session, is named after the stream rather than the HTTP verb,
// and the completion log reports the session lifetime instead of a request
// duration.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			stream := isWebSocketUpgrade(r)
			name := "HTTP " + r.Method + " " + r.URL.Path
			kind := "http"
			if stream {
				name = "SESSION " + r.URL.Path
				kind = "stream"
			}

			ctx, span := StartSpan(ctx, name,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					attribute.String("ledgervoice.request.kind", kind),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set("X-Correlation-ID", sc.TraceID().String())
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", r.URL.Path),
					attribute.String("kind", kind),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.statusCode))

			msg := "request completed"
			durKey := "duration"
			if stream {
				msg = "session stream closed"
				durKey = "session_lifetime"
			}
			Logger(ctx).Info(msg,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				durKey, elapsed,
			)
		})
	}
}
