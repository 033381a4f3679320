package main

import (
	"context"
	"log/slog"
	"net/http"

	"member-portal/internal/httpapi"
	"member-portal/internal/rbac"
	"member-portal/internal/routes"
	"member-portal/pkg/logger"
	"member-portal/pkg/respond"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	health    func(ctx context.Context) error
	handlers  httpapi.Handlers
	limiter   *httpapi.ClientLimiter
	staticDir string
}

// newEngine builds the gin engine with recovery and request logging.
// Only the listed proxies may set X-Forwarded-For; with none, the client IP
// is the TCP peer.
func newEngine(log *slog.Logger, trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	return r, nil
}

// registerRoutes builds the route table and freezes it.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, mgr *routes.Manager, d routeDeps) error {
	h := d.handlers
	limited := d.limiter.Middleware()

	err := mgr.AddInsecureRoutes(
		routes.NewInsecureRoute("/healthz", healthz(d.health)).WithAjax(false),
		routes.NewInsecureRoute("/api/login", h.Login).WithMethod(http.MethodPost).Use(limited),
		routes.NewInsecureRoute("/api/register", h.Register).WithMethod(http.MethodPost).Use(limited),
	)
	if err != nil {
		return err
	}

	err = mgr.AddSecureRoutes(
		routes.NewSecureRoute("/api/profile", h.Profile, rbac.AllPermissions...),
		routes.NewSecureRoute("/api/session", h.Session, rbac.AllPermissions...).WithAPIKeyAccess(),
	)
	if err != nil {
		return err
	}
	mgr.Freeze()

	if d.staticDir != "" {
		files := http.FileServer(gin.Dir(d.staticDir, false))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				respond.Error(c, http.StatusNotFound, respond.NotFound)
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}
	return nil
}

func healthz(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(c.Request.Context()); err != nil {
			logger.FromGin(c).Error("health check failed", "err", err)
			respond.Error(c, http.StatusInternalServerError, respond.DBError)
			return
		}
		respond.JSON(c, gin.H{"status": "ok"})
	}
}
