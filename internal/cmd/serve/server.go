package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/brokerdesk/whatsapp-service/internal/config"
	"github.com/brokerdesk/whatsapp-service/internal/plugin/route/contacts"
	"github.com/brokerdesk/whatsapp-service/internal/plugin/route/conversations"
	routesystem "github.com/brokerdesk/whatsapp-service/internal/plugin/route/system"
	registrymigrate "github.com/brokerdesk/whatsapp-service/internal/registry/migrate"
	registryroute "github.com/brokerdesk/whatsapp-service/internal/registry/route"
	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/brokerdesk/whatsapp-service/internal/security"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// Server holds the running HTTP server and its subsystems.
type Server struct {
	Config *config.Config
	Store  registrystore.ChatStore
	Router *gin.Engine
	Addr   net.Addr

	httpServer *http.Server
}

// Shutdown gracefully shuts down the server, letting in-flight requests
// (including partially applied purge cascades) finish naturally.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// StartServer initializes all subsystems and starts the HTTP server.
// Use cfg.Port=0 for an OS-assigned port; the bound address is Server.Addr.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting whatsapp service",
		"port", cfg.Port,
		"db", cfg.DatastoreType,
		"oidc", cfg.OIDCIssuer != "",
	)

	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	// Run migrations
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// Initialize store
	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.AccessLog {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	// Mount registered route plugins (health, ready, metrics).
	for _, loader := range registryroute.Loaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	// Create shared token resolver and auth middleware.
	resolver := security.NewTokenResolver(cfg)
	auth := security.AuthMiddleware(resolver)

	conversations.MountRoutes(router, store, cfg, auth)
	contacts.MountRoutes(router, store, cfg, auth)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen failed: %w", err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	go func() {
		if err := httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "err", err)
		}
	}()

	routesystem.MarkReady()
	log.Info("Listening", "addr", lis.Addr())

	return &Server{
		Config:     cfg,
		Store:      store,
		Router:     router,
		Addr:       lis.Addr(),
		httpServer: httpServer,
	}, nil
}

func maxBodySizeMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()
	}
}
