package instrument

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogOptions configures the slog handler chain.
type LogOptions struct {
	ServiceName    string
	Level          slog.Level
	MaskFields     []string
	LoggerProvider *sdklog.LoggerProvider
}

// ParseLevel maps "debug", "warn" and "error" to slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InstallLogger makes NewLogHandler the slog default.
func InstallLogger(w io.Writer, opts LogOptions) {
	slog.SetDefault(slog.New(NewLogHandler(w, opts)))
}

// NewLogHandler builds: correlation -> masking -> (JSON to w, OTLP bridge).
func NewLogHandler(w io.Writer, opts LogOptions) slog.Handler {
	var out slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       opts.Level,
		AddSource:   true,
		ReplaceAttr: renameAttr,
	})

	if opts.LoggerProvider != nil {
		out = fanout{out, otelslog.NewHandler(opts.ServiceName, otelslog.WithLoggerProvider(opts.LoggerProvider))}
	}

	if keys := maskKeySet(opts.MaskFields); len(keys) > 0 {
		out = &maskHandler{next: out, keys: keys}
	}

	return &correlationHandler{Handler: out, service: opts.ServiceName}
}

func renameAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}

	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		_, rel, found := strings.Cut(src.File, "/internal/")
		if !found {
			return slog.Attr{}
		}
		return slog.String("file", fmt.Sprintf("internal/%s:%d", rel, src.Line))
	}

	return a
}

type correlationHandler struct {
	slog.Handler
	service string
}

func (h *correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetCorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String("_cID", id))
	}
	if h.service != "" {
		r.AddAttrs(slog.String("service", h.service))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithAttrs(attrs), service: h.service}
}

func (h *correlationHandler) WithGroup(name string) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithGroup(name), service: h.service}
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}

	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}

	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}

	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}

	return out
}
