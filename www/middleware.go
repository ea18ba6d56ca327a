package www

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"wmscore/logging"
)

const (
	headerTraceID       = "X-Trace-Id"
	headerRequestSource = "X-Request-Source"
	headerReplayed      = "Idempotency-Replayed"
)

var tracer = otel.Tracer("wmscore/www")

// requestMeta puts the caller's trace id and request source on the
// context, generating a trace id when none was sent, and echoes the trace
// id back.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := logging.RequestMeta{
			TraceID: r.Header.Get(headerTraceID),
			Source:  r.Header.Get(headerRequestSource),
		}
		if meta.TraceID == "" {
			meta.TraceID = uuid.NewString()
		}
		if meta.Source == "" {
			meta.Source = "api"
		}
		w.Header().Set(headerTraceID, meta.TraceID)

		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		span.SetAttributes(
			attribute.String("wms.trace_id", meta.TraceID),
			attribute.String("wms.request_source", meta.Source),
		)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestMeta(ctx, meta)))
	})
}

// accessLog logs each request and feeds the request metrics.
func (h *Handlers) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveRequest(r.Method, route, status, elapsed)

		ev := logging.Info(r.Context())
		if status >= 500 {
			ev = logging.Error(r.Context())
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Msg("http request")
	})
}

// newRateLimiter builds a per-client-IP limiter from a formatted rate
// such as "10-M".
func newRateLimiter(formatted string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), rate)
	mw := stdlib.NewMiddleware(instance, stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Kind: "RateLimited"})
	}))
	return mw.Handler, nil
}
