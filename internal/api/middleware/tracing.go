package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ukair/ukair/internal/api/middleware"

// Span attributes for collections served by a request.
const (
	attrRangeStart       = attribute.Key("ukair.range.start")
	attrRangeEnd         = attribute.Key("ukair.range.end")
	attrRunID            = attribute.Key("ukair.run.id")
	attrOperator         = attribute.Key("ukair.operator")
	attrQueriesAttempted = attribute.Key("ukair.collection.attempted")
	attrQueriesSucceeded = attribute.Key("ukair.collection.succeeded")
	attrQueriesFailed    = attribute.Key("ukair.collection.failed")
)

// Tracing returns a middleware that creates a server span per request. The
// span is named after the matched chi route and carries the requested date
// range and the outcome of any collection the handler ran.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			attrs := []attribute.KeyValue{
				attribute.String("service.name", serviceName),
				attribute.String("http.request.method", r.Method),
				attribute.String("url.scheme", scheme(r)),
				attribute.String("url.path", r.URL.Path),
				attribute.String("server.address", r.Host),
				attribute.String("user_agent.original", r.UserAgent()),
				attribute.String("client.address", r.RemoteAddr),
			}
			q := r.URL.Query()
			if start := q.Get("start"); start != "" {
				attrs = append(attrs, attrRangeStart.String(start))
			}
			if end := q.Get("end"); end != "" {
				attrs = append(attrs, attrRangeEnd.String(end))
			}

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			if requestID := GetRequestID(ctx); requestID != "" {
				span.SetAttributes(attribute.String("request.id", requestID))
			}

			r, notes := withNotes(r.WithContext(ctx))
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", wrapped.statusCode),
				attribute.Int64("http.response.body.size", wrapped.written),
			)
			span.SetAttributes(notes.attributes()...)

			if wrapped.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
			}
		})
	}
}

func (n *requestNotes) attributes() []attribute.KeyValue {
	n.mu.Lock()
	defer n.mu.Unlock()
	var attrs []attribute.KeyValue
	if n.operator != "" {
		attrs = append(attrs, attrOperator.String(n.operator))
	}
	if n.runID != "" {
		attrs = append(attrs, attrRunID.String(n.runID))
	}
	if n.collected {
		attrs = append(attrs,
			attrQueriesAttempted.Int(n.attempted),
			attrQueriesSucceeded.Int(n.succeeded),
			attrQueriesFailed.Int(n.failed),
		)
	}
	return attrs
}

// scheme returns the request scheme.
func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
