package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spigell/jobradar/internal/metrics"
	"go.uber.org/zap"
)

// NewRouter mounts the handler routes and the metrics endpoint.
func NewRouter(h *Handler, m *metrics.Collector, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), m.Middleware())

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/stats", h.GetStats)

	postings := r.Group("/postings")
	postings.GET("", h.ListPostings)
	postings.GET("/:id", h.GetPosting)
	postings.PATCH("/:id/status", h.UpdateStatus)

	return r
}

// NewServer wraps the router in an http.Server with bounded timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("api")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
