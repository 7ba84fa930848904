package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"comet-radar/internal/config"
	"comet-radar/internal/db"
	"comet-radar/internal/redis"
	"comet-radar/internal/security"
)

type Server struct {
	log      *slog.Logger
	db       *db.DB
	store    *db.Store
	redis    *redis.Client
	cfg      config.Config
	router   *gin.Engine
	limiters *security.LimiterStore
}

func NewServer(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, cfg config.Config) *Server {
	s := &Server{
		log:      log,
		db:       dbConn,
		store:    db.NewStore(dbConn),
		redis:    redisClient,
		cfg:      cfg,
		router:   gin.New(),
		limiters: security.NewLimiterStore(rate.Limit(10), 20, 10*time.Minute),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/creators", s.listCreators)
		v1.GET("/creators/:user_id", s.getCreator)
		v1.GET("/trends", s.listTrends)
		v1.GET("/health", s.health)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
