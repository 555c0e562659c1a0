package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig controls cross-origin access. The viewer page is usually served
// from a different host than the control API.
type CORSConfig struct {
	// AllowOrigins lists permitted origins; "*" or an empty list allows any.
	AllowOrigins  []string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Authorization", RequestIDHeader, "Accept", "Origin"},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        86400,
	}
}

type corsHeaders struct {
	config  CORSConfig
	methods string
	headers string
	expose  string
	maxAge  string
}

func newCORSHeaders(config CORSConfig) corsHeaders {
	return corsHeaders{
		config:  config,
		methods: strings.Join(config.AllowMethods, ", "),
		headers: strings.Join(config.AllowHeaders, ", "),
		expose:  strings.Join(config.ExposeHeaders, ", "),
		maxAge:  strconv.Itoa(config.MaxAge),
	}
}

// origin returns the Access-Control-Allow-Origin value for a request origin,
// or "" when the origin is not allowed.
func (c corsHeaders) origin(requestOrigin string) string {
	if len(c.config.AllowOrigins) == 0 || slices.Contains(c.config.AllowOrigins, "*") {
		return "*"
	}
	if slices.Contains(c.config.AllowOrigins, requestOrigin) {
		return requestOrigin
	}
	return ""
}

func (c corsHeaders) apply(set func(name, value string), requestOrigin string) {
	origin := c.origin(requestOrigin)
	if origin == "" {
		return
	}
	set("Access-Control-Allow-Origin", origin)
	if origin != "*" {
		set("Vary", "Origin")
	}
	set("Access-Control-Allow-Methods", c.methods)
	set("Access-Control-Allow-Headers", c.headers)
	if c.expose != "" {
		set("Access-Control-Expose-Headers", c.expose)
	}
	set("Access-Control-Max-Age", c.maxAge)
}

// NewCORSMiddleware adds CORS headers to every huma operation.
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	c := newCORSHeaders(config)
	return func(ctx huma.Context, next func(huma.Context)) {
		c.apply(ctx.SetHeader, ctx.Header("Origin"))
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests. Huma routes only the methods an
// operation declares, so OPTIONS never reaches the middleware.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	c := newCORSHeaders(config)
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		c.apply(w.Header().Set, r.Header.Get("Origin"))
		w.WriteHeader(http.StatusNoContent)
	})
}
