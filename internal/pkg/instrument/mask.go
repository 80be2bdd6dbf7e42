package instrument

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const maskedValue = "***"

type maskHandler struct {
	next slog.Handler
	keys map[string]struct{}
}

func maskKeySet(fields []string) map[string]struct{} {
	keys := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			keys[f] = struct{}{}
		}
	}

	return keys
}

func (h *maskHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *maskHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.mask(a))
		return true
	})

	return h.next.Handle(ctx, out)
}

func (h *maskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}

	return &maskHandler{next: h.next.WithAttrs(masked), keys: h.keys}
}

func (h *maskHandler) WithGroup(name string) slog.Handler {
	return &maskHandler{next: h.next.WithGroup(name), keys: h.keys}
}

func (h *maskHandler) sensitive(key string) bool {
	_, ok := h.keys[strings.ToLower(key)]
	return ok
}

func (h *maskHandler) mask(a slog.Attr) slog.Attr {
	if h.sensitive(a.Key) {
		return slog.String(a.Key, maskedValue)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = h.mask(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}

	case slog.KindString:
		if s, ok := h.maskJSON([]byte(a.Value.String())); ok {
			return slog.String(a.Key, s)
		}

	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any:
			return slog.Any(a.Key, h.walk(v))
		case map[string]string:
			m := make(map[string]any, len(v))
			for k, s := range v {
				m[k] = s
			}
			return slog.Any(a.Key, h.walk(m))
		case []byte:
			if s, ok := h.maskJSON(v); ok {
				return slog.String(a.Key, s)
			}
		}
	}

	return a
}

func (h *maskHandler) maskJSON(b []byte) (string, bool) {
	if len(b) == 0 || (b[0] != '{' && b[0] != '[') {
		return "", false
	}

	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", false
	}

	out, err := json.Marshal(h.walk(doc))
	if err != nil {
		return "", false
	}

	return string(out), true
}

func (h *maskHandler) walk(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if h.sensitive(k) {
				out[k] = maskedValue
				continue
			}
			out[k] = h.walk(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = h.walk(item)
		}
		return out
	default:
		return v
	}
}
