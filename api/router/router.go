package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"ai-letter/api/handlers"
	"ai-letter/metrics"
)

// Deps wires the API to the pipeline.
type Deps struct {
	Digests handlers.DigestReader
	Runner  handlers.RunTrigger
	// Health, when set, is checked by /health (e.g. a MongoDB ping).
	Health func(ctx context.Context) error
	// HistoryDegraded reports whether the last history load failed.
	HistoryDegraded func() bool
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if d.HistoryDegraded != nil && d.HistoryDegraded() {
			body["history"] = "degraded"
		}
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				body["status"] = "degraded"
				body["error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/digests", handlers.ListDigestsHandler(d.Digests))
		api.GET("/digests/latest", handlers.LatestDigestHandler(d.Digests))
		api.POST("/runs", handlers.TriggerRunHandler(d.Runner))
		api.GET("/runs/status", handlers.RunStatusHandler(d.Runner))
	}

	return r
}

// Handler returns the engine wrapped with CORS for browser clients.
func Handler(d Deps, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(New(d))
}
