package router

import (
	"log/slog"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
	"github.com/bloodsync/bloodsync/internal/pkg/stacktrace"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
)

const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that mws[0] is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}

	return h
}

func matchedRoutePath(r *http.Request) string {
	if p := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); p != "" {
		return p
	}

	return r.URL.Path
}

func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:errorlint // sentinel must pass through untouched
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(r.Context(), "panic while serving request", "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(r.Context(), "panic while serving request", "panic", rvr, "stack", string(stack))
			}

			writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// parseTrustedProxies accepts CIDRs or bare addresses; anything else is skipped.
func parseTrustedProxies(items []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(items))
	for _, item := range items {
		if p, err := netip.ParsePrefix(item); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(item); err == nil {
			out = append(out, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		slog.Warn("ignoring invalid trusted proxy", "value", item)
	}

	return out
}

func isTrusted(trusted []netip.Prefix, a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range trusted {
		if p.Contains(a) {
			return true
		}
	}

	return false
}

// middlewareIP rewrites RemoteAddr to the client address. Forwarding headers
// count only when the socket peer is a trusted proxy.
func middlewareIP(trusted []netip.Prefix) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := realIP(r, trusted); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

func realIP(r *http.Request, trusted []netip.Prefix) string {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		a, aerr := netip.ParseAddr(r.RemoteAddr)
		if aerr != nil {
			return ""
		}
		peer = netip.AddrPortFrom(a, 0)
	}

	if !isTrusted(trusted, peer.Addr()) {
		return peer.Addr().Unmap().String()
	}

	for _, h := range []string{"True-Client-IP", "X-Real-IP"} {
		if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get(h))); err == nil {
			return a.Unmap().String()
		}
	}

	// The right-most hop that is not one of ours is the client.
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		a, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		if !isTrusted(trusted, a) {
			return a.Unmap().String()
		}
	}

	return peer.Addr().Unmap().String()
}

func cleanCorrelationID(v string) string {
	v = strings.TrimSpace(v)
	if strings.ContainsAny(v, "\r\n") {
		return ""
	}

	return v[:min(len(v), 128)]
}

func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := cleanCorrelationID(r.Header.Get(HeaderCorrelationID))
			if cid == "" {
				cid = cleanCorrelationID(r.Header.Get(HeaderRequestID))
			}
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}

			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cid))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// middlewareMaintenance answers 503 for routes listed in app.maintenance.endpoints.
// The list is read per request so a config reload takes effect immediately.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg != nil {
				route := matchedRoutePath(r)
				for _, blocked := range cfg.GetArray("app.maintenance.endpoints") {
					if blocked == route {
						writeJSON(w, errorResponse{Message: "Service is under maintenance"}, http.StatusServiceUnavailable)
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func middlewareAuthentication(verifier jwt.JWT, isPublic func(method, route string) bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.Method, matchedRoutePath(r)) {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeJSON(w, errorResponse{Message: "Authentication required"}, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				writeJSON(w, errorResponse{Message: "Invalid or expired token"}, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.SetAuth(r.Context(), claims)))
		})
	}
}
