package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type compiledCORS struct {
	origins     []string
	wildcard    bool
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func compileCORS(p CORSPolicy) compiledCORS {
	c := compiledCORS{credentials: p.AllowCredentials}
	for _, o := range trimAll(p.AllowedOrigins) {
		if o == "*" {
			c.wildcard = true
			continue
		}
		c.origins = append(c.origins, strings.ToLower(o))
	}
	methods := trimAll(p.AllowedMethods)
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	c.methods = strings.Join(methods, ", ")
	c.headers = strings.Join(trimAll(p.AllowedHeaders), ", ")
	exposed := trimAll(p.ExposedHeaders)
	if len(exposed) == 0 {
		exposed = []string{RequestIDHeader}
	}
	c.exposed = strings.Join(exposed, ", ")
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		c.maxAge = strconv.Itoa(secs)
	}
	return c
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, if any.
// A wildcard policy echoes the origin when credentials are allowed.
func (c compiledCORS) allowOrigin(origin string) (string, bool) {
	lower := strings.ToLower(origin)
	for _, o := range c.origins {
		if o == lower {
			return origin, true
		}
	}
	if c.wildcard {
		if c.credentials {
			return origin, true
		}
		return "*", true
	}
	return "", false
}

// WithCORS adds CORS handling. With no allowed origins it is a no-op.
func WithCORS(p CORSPolicy) Middleware {
	c := compileCORS(p)
	if len(c.origins) == 0 && !c.wildcard {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed, ok := c.allowOrigin(origin)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", allowed)
			if c.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				h.Set("Access-Control-Expose-Headers", c.exposed)
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			h.Set("Access-Control-Allow-Methods", c.methods)
			if c.headers != "" {
				h.Set("Access-Control-Allow-Headers", c.headers)
			}
			if c.maxAge != "" {
				h.Set("Access-Control-Max-Age", c.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
