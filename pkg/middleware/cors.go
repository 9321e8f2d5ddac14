package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSConfig describes which browser origins may call the API.
type CORSConfig struct {
	// AllowedOrigins lists exact origins such as "https://rentmarket.example".
	// "*" matches any origin. With credentials on it is honored only in
	// development, and the caller's origin is echoed instead of "*".
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	// MaxAge is how long browsers may cache a preflight answer.
	MaxAge time.Duration

	// AllowCredentials lets pages send the viewer's Authorization header
	// and cookies.
	AllowCredentials bool

	Environment string
}

// DefaultCORSConfig is the storefront policy: bearer-authenticated calls from
// explicitly listed origins, limited to the methods the rating routes use.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID", "Traceparent"},
		MaxAge:           10 * time.Minute,
		AllowCredentials: true,
		Environment:      "development",
	}
}

type corsPolicy struct {
	origins     map[string]struct{}
	anyOrigin   bool
	credentials bool
	methods     []string
	allowMethod string
	allowHeader string
	exposed     string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	def := DefaultCORSConfig()
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = def.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = def.AllowedHeaders
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}

	p := corsPolicy{
		origins:     make(map[string]struct{}, len(cfg.AllowedOrigins)),
		credentials: cfg.AllowCredentials,
		allowMethod: strings.Join(cfg.AllowedMethods, ", "),
		allowHeader: strings.Join(cfg.AllowedHeaders, ", "),
		exposed:     strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:      strconv.Itoa(int(cfg.MaxAge.Seconds())),
	}
	for _, m := range cfg.AllowedMethods {
		p.methods = append(p.methods, strings.ToUpper(m))
	}
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			p.anyOrigin = !cfg.AllowCredentials || cfg.Environment == "development"
			continue
		}
		if o != "" {
			p.origins[o] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	if _, ok := p.origins[origin]; ok {
		return true
	}
	return p.anyOrigin
}

// allowOrigin is the Access-Control-Allow-Origin value for an allowed origin.
func (p corsPolicy) allowOrigin(origin string) string {
	if _, ok := p.origins[origin]; !ok && p.anyOrigin && !p.credentials {
		return "*"
	}
	return origin
}

// CORS answers preflight requests and decorates cross-origin responses.
// Requests without an Origin header pass through untouched. A preflight
// from an origin outside the policy is refused with 403; other requests
// from such origins are served without CORS headers, so browsers hide the
// response.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !p.allows(origin) {
				if preflight {
					writeJSONError(w, http.StatusForbidden, "CORS_ORIGIN_DENIED", "origin not allowed")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", p.allowOrigin(origin))
			if p.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if preflight {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				method := strings.ToUpper(r.Header.Get("Access-Control-Request-Method"))
				if !slices.Contains(p.methods, method) {
					writeJSONError(w, http.StatusMethodNotAllowed, "CORS_METHOD_DENIED", "method not allowed")
					return
				}
				h.Set("Access-Control-Allow-Methods", p.allowMethod)
				h.Set("Access-Control-Allow-Headers", p.allowHeader)
				h.Set("Access-Control-Max-Age", p.maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if p.exposed != "" {
				h.Set("Access-Control-Expose-Headers", p.exposed)
			}
			next.ServeHTTP(w, r)
		})
	}
}
