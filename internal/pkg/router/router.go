// Package router is the HTTP front door: httprouter for matching, a fixed
// middleware chain, and a JSON envelope for every response.
package router

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
)

// Handler returns a payload to encode or an error to map onto a status code.
// A nil payload with a nil error answers 204.
type Handler func(r *Request) (any, error)

// Config holds the router dependencies.
type Config struct {
	Config     config.Config
	UUID       uid.StringID
	JWT        jwt.JWT
	Instrument instrument.Instrumentation

	// TrustedProxies lists the CIDRs or addresses whose forwarding headers
	// are believed. Empty means the socket peer is always the client.
	TrustedProxies []string
}

// Router implements http.Handler.
type Router struct {
	hr     *httprouter.Router
	mws    []Middleware
	public map[string]map[string]struct{}
}

// publicEndpoints skip bearer authentication.
var publicEndpoints = map[string][]string{
	http.MethodGet: {
		"/",
		"/health",
		"/api/v1/account/password/reset/:flow_token",
	},
	http.MethodPost: {
		"/api/v1/account/login",
		"/api/v1/account/organizations",
		"/api/v1/account/verify",
		"/api/v1/account/password/reset",
		"/api/v1/account/password/reset/:flow_token/resend",
		"/api/v1/account/password/reset/:flow_token/redeem",
	},
}

func NewRouter(cfg Config) *Router {
	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "Endpoint not found"}, http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "Method not allowed"}, http.StatusMethodNotAllowed)
		}),
	}

	ro := &Router{hr: hr, public: make(map[string]map[string]struct{})}
	for method, paths := range publicEndpoints {
		for _, p := range paths {
			ro.markPublic(method, p)
		}
	}

	ro.mws = []Middleware{
		middlewareRecoverer,
		middlewareIP(parseTrustedProxies(cfg.TrustedProxies)),
		middlewareCorrelationID(cfg.UUID),
		middlewareObservability(cfg.Config, cfg.Instrument),
		middlewareMaintenance(cfg.Config),
		middlewareAuthentication(cfg.JWT, ro.isPublic),
	}

	ro.GET("/", func(*Request) (any, error) { return welcome{}, nil })
	ro.GET("/health", func(*Request) (any, error) { return health{Status: "ok"}, nil })

	return ro
}

type welcome struct{}

func (welcome) Message() string { return "Welcome to BloodSync API" }

type health struct {
	Status string `json:"status"`
}

func (r *Router) markPublic(method, path string) {
	if r.public[method] == nil {
		r.public[method] = make(map[string]struct{})
	}
	r.public[method][path] = struct{}{}
}

func (r *Router) isPublic(method, route string) bool {
	_, ok := r.public[method][route]
	return ok
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

func (r *Router) PUT(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPut, path, h, mws...)
}

func (r *Router) PATCH(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPatch, path, h, mws...)
}

func (r *Router) DELETE(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodDelete, path, h, mws...)
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	final := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err != nil {
			if rec, ok := w.(interface{ SetError(error) }); ok {
				rec.SetError(err)
			}
			writeError(w, err)
			return
		}
		writeSuccess(w, resp)
	})

	chain := make([]Middleware, 0, len(r.mws)+len(mws))
	chain = append(append(chain, r.mws...), mws...)
	r.hr.Handler(method, path, Chain(final, chain...))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}
