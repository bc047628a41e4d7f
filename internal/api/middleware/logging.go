package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ukair/ukair/internal/airquality"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// requestNotes holds what handlers learned while serving a request. It is
// shared by pointer so outer middleware sees values set by inner handlers.
type requestNotes struct {
	mu        sync.Mutex
	operator  string
	runID     string
	collected bool
	attempted int
	succeeded int
	failed    int
}

type requestNotesKey struct{}

// withNotes returns r carrying request notes, reusing any already attached.
func withNotes(r *http.Request) (*http.Request, *requestNotes) {
	if n, ok := r.Context().Value(requestNotesKey{}).(*requestNotes); ok {
		return r, n
	}
	n := &requestNotes{}
	return r.WithContext(context.WithValue(r.Context(), requestNotesKey{}, n)), n
}

func notesFrom(ctx context.Context) *requestNotes {
	n, _ := ctx.Value(requestNotesKey{}).(*requestNotes)
	return n
}

// RecordCollection notes a collection's outcome on the request, so the
// request log line and span carry it. It is a no-op outside Logger or Tracing.
func RecordCollection(ctx context.Context, result *airquality.Result) {
	n := notesFrom(ctx)
	if n == nil || result == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.collected = true
	n.attempted = result.Attempted
	n.succeeded = result.Succeeded
	n.failed = result.Failed
}

// RecordRun notes the ID of the run a request archived or read.
func RecordRun(ctx context.Context, runID string) {
	if n := notesFrom(ctx); n != nil {
		n.mu.Lock()
		n.runID = runID
		n.mu.Unlock()
	}
}

func recordOperator(ctx context.Context, operator string) {
	if n := notesFrom(ctx); n != nil {
		n.mu.Lock()
		n.operator = operator
		n.mu.Unlock()
	}
}

func (n *requestNotes) addTo(e *zerolog.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.operator != "" {
		e.Str("operator", n.operator)
	}
	if n.runID != "" {
		e.Str("run_id", n.runID)
	}
	if n.collected {
		e.Int("attempted", n.attempted).
			Int("succeeded", n.succeeded).
			Int("failed", n.failed)
	}
}

// routePattern returns the chi route that matched r, or its path outside a router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// Logger returns a middleware that logs one line per request. Handlers reach
// the request-scoped logger through zerolog.Ctx and add collection details
// with RecordCollection and RecordRun.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, notes := withNotes(r)

			reqLog := log.With().Str("request_id", GetRequestID(r.Context())).Logger()
			if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
				reqLog = reqLog.With().
					Str("trace_id", spanCtx.TraceID().String()).
					Str("span_id", spanCtx.SpanID().String()).
					Logger()
			}

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(reqLog.WithContext(r.Context())))

			var event *zerolog.Event
			switch {
			case wrapped.statusCode >= 500:
				event = reqLog.Error()
			case wrapped.statusCode >= 400:
				event = reqLog.Warn()
			default:
				event = reqLog.Info()
			}
			notes.addTo(event)

			event.
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}
