package router

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
)

const maxLoggedBody = 16 << 10

// recorder captures status, size, a prefix of the body and the handler error.
type recorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
	err    error
}

func (w *recorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if room := maxLoggedBody - w.body.Len(); room > 0 {
		w.body.Write(p[:min(len(p), room)])
	}

	n, err := w.ResponseWriter.Write(p)
	w.size += n

	return n, err
}

func (w *recorder) SetError(err error) { w.err = err }

func (w *recorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *recorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}

// loggable renders a body for the log line. JSON bodies are passed as strings
// so the masking log handler can redact sensitive keys inside them.
func loggable(b []byte) any {
	switch {
	case len(b) == 0:
		return nil
	case !utf8.Valid(b):
		return "<binary>"
	default:
		return string(bytes.TrimSpace(b))
	}
}

func flatHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}

	return out
}

func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	return head
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	if ins == nil {
		ins = instrument.NewNoop()
	}

	tracer := ins.Tracer("http.server")
	meter := ins.Meter("http.server")

	requests, err := meter.Int64Counter("http.server.requests", metric.WithDescription("HTTP requests served"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}
	latency, err := meter.Float64Histogram("http.server.duration", metric.WithUnit("ms"), metric.WithDescription("HTTP request latency"))
	if err != nil {
		slog.Error("failed to create http latency histogram", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := matchedRoutePath(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			logBodies := cfg == nil || cfg.GetBool("app.server.http.log_bodies")

			attrs := []any{"method", r.Method, "path", route, "uri", r.RequestURI, "headers", flatHeaders(r.Header)}
			if logBodies {
				attrs = append(attrs, "body", loggable(peekBody(r)))
			}
			slog.InfoContext(ctx, "request received", attrs...)

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusCode()
			elapsed := time.Since(start)

			kv := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}
			span.SetAttributes(kv...)
			span.SetAttributes(attribute.String("http.user_agent", r.UserAgent()), attribute.Int("http.response_size", rec.size))

			if rec.err != nil {
				span.RecordError(rec.err)
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}

			if requests != nil {
				requests.Add(ctx, 1, metric.WithAttributes(kv...))
			}
			if latency != nil {
				latency.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(kv...))
			}

			attrs = []any{"method", r.Method, "path", route, "status", status, "bytes", rec.size, "latency_ms", elapsed.Milliseconds()}
			if logBodies {
				attrs = append(attrs, "body", loggable(rec.body.Bytes()))
			}
			slog.InfoContext(ctx, "response sent", attrs...)
		})
	}
}
