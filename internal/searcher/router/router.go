// Package router wires the searcher's HTTP routes and applies the middleware
// chain (RequestID → CORS → Metrics → RateLimit → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/ratelimit"
)

// Deps are the handlers the router dispatches to. Analytics, Metrics and
// Limiter may be nil.
type Deps struct {
	Search    *handler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
}

// New builds the searcher HTTP handler.
//
// Route table:
//
//	GET    /api/v1/proximity?q=&mode=     → proximity query
//	GET    /api/v1/index/stats            → index statistics
//	GET    /api/v1/index/terms/{term}     → postings of one term
//	POST   /api/v1/index/reload           → rebuild the index
//	GET    /api/v1/cache/stats            → cache counters
//	POST   /api/v1/cache/invalidate       → drop cached results
//	GET    /api/v1/analytics              → in-process query analytics
//	GET    /health/live, /health/ready    → health checks
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → RateLimit → Timeout → mux
func New(deps Deps, cfg config.ServerConfig, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", deps.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", deps.Health.ReadyHandler())

	mux.HandleFunc("GET /api/v1/proximity", deps.Search.Proximity)

	mux.HandleFunc("GET /api/v1/index/stats", deps.Search.IndexStats)
	mux.HandleFunc("GET /api/v1/index/terms/{term}", deps.Search.TermPostings)
	mux.HandleFunc("POST /api/v1/index/reload", deps.Search.Reload)

	mux.HandleFunc("GET /api/v1/cache/stats", deps.Search.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", deps.Search.CacheInvalidate)

	if deps.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", deps.Analytics.Stats)
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSOrigins
	}

	// Applied inside-out.
	var chain http.Handler = mux
	if requestTimeout > 0 {
		chain = middleware.Timeout(requestTimeout)(chain)
	}
	if deps.Limiter != nil {
		// Load already validated the list; a parse failure here trusts nobody.
		trusted, err := cfg.RateLimit.TrustedPrefixes()
		if err != nil {
			trusted = nil
		}
		chain = middleware.RateLimit(deps.Limiter, trusted)(chain)
	}
	if deps.Metrics != nil {
		chain = middleware.Metrics(deps.Metrics)(chain)
	}
	chain = middleware.CORS(cors)(chain)
	chain = middleware.RequestID(chain)

	return chain
}
