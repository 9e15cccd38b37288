package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"hotelchat/internal/config"
	"hotelchat/internal/observability"
)

// BuildInfo is reported by /health and /version
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes groups the handlers mounted by NewRouter. A nil handler leaves its
// routes unmounted.
type Routes struct {
	Search   *SearchHandler
	Rooms    *RoomHandler
	Chat     *ChatHandler
	Catalog  Pinger
	Registry *prometheus.Registry
}

// NewRouter builds the gin engine with middleware, health and API routes
func NewRouter(cfg config.ServerConfig, build BuildInfo, routes Routes, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), observability.GinMetrics(), observability.GinLogger(logger))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if origins := splitList(cfg.AllowedOrigins); len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	if methods := splitList(cfg.AllowedMethods); len(methods) > 0 {
		corsConfig.AllowMethods = methods
	}
	if headers := splitList(cfg.AllowedHeaders); len(headers) > 0 {
		corsConfig.AllowHeaders = headers
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if routes.Catalog != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := routes.Catalog.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    "hotelchat",
			"version":    build.Version,
			"build_time": build.BuildTime,
			"git_commit": build.GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    build.Version,
			"build_time": build.BuildTime,
			"git_commit": build.GitCommit,
		})
	})

	if routes.Registry != nil {
		router.GET("/metrics", gin.WrapH(observability.MetricsHandler(routes.Registry)))
	}

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		if routes.Search != nil {
			apiV1.POST("/search", routes.Search.Search)
			apiV1.GET("/locations", routes.Search.Locations)
		}
		if routes.Rooms != nil {
			apiV1.POST("/rooms/batch", routes.Rooms.BatchInsert)
			apiV1.POST("/rooms/reembed", routes.Rooms.Reembed)
		}
		if routes.Chat != nil {
			apiV1.POST("/chat", routes.Chat.Chat)
			apiV1.DELETE("/chat/:session_id", routes.Chat.Reset)
		}
	}

	return router
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
