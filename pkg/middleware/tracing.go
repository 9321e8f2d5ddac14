package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/RentMarket/pkg/logger"
)

// RouteParamPrefix prefixes the span attribute recorded for each chi URL
// parameter, e.g. "http.route.param.kind".
const RouteParamPrefix = "http.route.param."

// Tracing opens a server span per request, continuing any W3C trace context
// sent by the caller and returning it in the response headers. Once routing
// is done the span is renamed to the route pattern and tagged with the URL
// parameters, the correlation id and whether a bearer token was sent. The
// token itself is never recorded. Only 5xx responses mark the span failed.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/utafrali/RentMarket/services/" + serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			propagator := otel.GetTextMapPropagator()
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			attrs := []attribute.KeyValue{
				semconv.HTTPMethod(r.Method),
				semconv.HTTPTarget(r.URL.RequestURI()),
				semconv.HTTPScheme(scheme(r)),
				semconv.UserAgentOriginal(r.UserAgent()),
				attribute.String("http.client_ip", r.RemoteAddr),
				attribute.Bool("http.authenticated", BearerToken(r.Header.Get("Authorization")) != ""),
			}
			if id := logger.CorrelationIDFromContext(ctx); id != "" {
				attrs = append(attrs, attribute.String("correlation_id", id))
			}

			ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			sw := wrapWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			// chi fills the route context in place while routing.
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					span.SetName(r.Method + " " + pattern)
					span.SetAttributes(attribute.String("http.route", pattern))
				}
				for i, key := range rc.URLParams.Keys {
					if key == "*" || i >= len(rc.URLParams.Values) {
						continue
					}
					span.SetAttributes(attribute.String(RouteParamPrefix+key, rc.URLParams.Values[i]))
				}
			}

			span.SetAttributes(semconv.HTTPStatusCode(sw.statusCode))
			if sw.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.statusCode))
			}
		})
	}
}

// scheme honors X-Forwarded-Proto from the ingress when the request is not TLS.
func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}
