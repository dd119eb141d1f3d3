package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parkmap-service/internal/config"
	"parkmap-service/internal/metrics"
)

// NewRouter builds the gin engine with every route of the service.
func NewRouter(h *Handler, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.HTTP.AllowedOrigins
	if len(corsCfg.AllowOrigins) == 0 || (len(corsCfg.AllowOrigins) == 1 && corsCfg.AllowOrigins[0] == "*") {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	corsCfg.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	h.Register(r, AuthMiddleware(cfg.Auth.JWTSecret, log))
	return r
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
