package app

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/handlers"
	"github.com/openlis/lis-api/internal/appointments"
	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/catalog"
	"github.com/openlis/lis-api/internal/inventory"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/oidc"
	"github.com/openlis/lis-api/internal/orders"
	"github.com/openlis/lis-api/internal/patients"
	"github.com/openlis/lis-api/internal/reports"
	"github.com/openlis/lis-api/internal/tokens"
	"github.com/openlis/lis-api/internal/users"
	"github.com/openlis/lis-api/pkg/logger"
	"github.com/openlis/lis-api/pkg/metrics"
	"github.com/openlis/lis-api/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRouter(a *App) *gin.Engine {
	cfg := a.Config
	s := a.Services

	r := gin.New()
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	r.Use(middleware.RequestID(), middleware.RequestLogger(), middleware.Metrics(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", a.ready)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterSwagger(r)

	// limits apply per client IP on public routes and per user once authenticated
	limit := a.rateLimiter()
	api := r.Group("/api/v1")
	public := api.Group("", limit...)
	protected := api.Group("", append([]gin.HandlerFunc{middleware.AuthMiddleware(a.verifier(), s.Blacklist)}, limit...)...)

	handlers.NewAuthHandler(cfg, s.Users, s.Sessions, s.Blacklist).Register(public, protected)
	patients.NewHandler(s.Patients).Register(protected)
	catalog.NewHandler(s.Catalog).Register(protected)
	appointments.NewHandler(s.Appointments).Register(protected)
	orders.NewHandler(s.Orders).Register(protected)
	inventory.NewHandler(s.Inventory).Register(protected)
	users.NewHandler(s.Users).Register(protected)
	reports.NewHandler(s.Reports).Register(protected)
	auditlog.NewHandler(s.Audit).Register(protected.Group("", middleware.RequireRoles(models.RoleLabManager)))

	return r
}

func (a *App) rateLimiter() []gin.HandlerFunc {
	rl := a.Config.RateLimit
	if !rl.Enabled {
		return nil
	}
	if rl.UseRedis && a.redis != nil {
		win := time.Duration(rl.WindowSeconds) * time.Second
		return []gin.HandlerFunc{middleware.RedisRateLimitMiddleware(a.redis, rl.RPS, rl.Burst, win)}
	}
	return []gin.HandlerFunc{middleware.RateLimitMiddleware(rl.RPS, rl.Burst)}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// verifier accepts the API's own HS256 tokens and, when a Keycloak realm is
// configured, tokens issued by it.
func (a *App) verifier() middleware.Verifier {
	chain := middleware.MultiVerifier{tokens.NewJWTVerifier(a.Config)}
	kc := a.Config.Keycloak
	if issuer := kc.Issuer(); issuer != "" && kc.ClientID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		v, err := oidc.NewVerifier(ctx, issuer, kc.ClientID)
		if err != nil {
			logger.Warnf("OIDC verifier for %s unavailable, accepting local tokens only: %v", issuer, err)
		} else {
			chain = append(chain, v)
		}
	}
	return chain
}

func (a *App) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, err := range a.Ping(ctx) {
		if err != nil {
			logger.Warnf("readiness: %s: %v", name, err)
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}
	body := gin.H{"status": "ready", "deps": deps, "uptime": time.Since(a.startedAt).Round(time.Second).String()}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	c.JSON(status, body)
}
