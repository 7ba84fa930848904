package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"comet-radar/internal/db"
)

const creatorCacheTTL = 60 * time.Second

func (s *Server) listCreators(c *gin.Context) {
	limit := intQuery(c, "limit", 50, 1, 200)
	offset := intQuery(c, "offset", 0, 0, 100_000)

	ctx, cancel := s.ctx(c)
	defer cancel()

	cacheKey := fmt.Sprintf("creators:%d:%d", limit, offset)
	if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
		return
	}

	creators, err := s.store.ListCreators(ctx, limit, offset)
	if err != nil {
		s.log.Error("list_creators_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to list creators"},
		})
		return
	}

	body := gin.H{"creators": creators, "limit": limit, "offset": offset}
	if raw, err := json.Marshal(body); err == nil {
		_ = s.redis.Set(ctx, cacheKey, string(raw), creatorCacheTTL)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) getCreator(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_user_id", "message": "user_id is required"},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cacheKey := "creator:" + userID
	if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
		return
	}

	summary, history, err := s.store.GetCreator(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "not_found", "message": "creator not found"},
		})
		return
	}
	if err != nil {
		s.log.Error("get_creator_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to load creator"},
		})
		return
	}

	body := gin.H{"creator": summary, "history": history}
	if raw, err := json.Marshal(body); err == nil {
		_ = s.redis.Set(ctx, cacheKey, string(raw), creatorCacheTTL)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) listTrends(c *gin.Context) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "invalid_date", "message": "date must be YYYY-MM-DD"},
			})
			return
		}
		day = parsed
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	trends, err := s.store.ListTrends(ctx, day)
	if err != nil {
		s.log.Error("list_trends_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to list trends"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": day.Format("2006-01-02"), "trends": trends})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	status := http.StatusOK
	overall := "healthy"
	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"database": dbStatus,
		"redis":    redisStatus,
	})
}

func intQuery(c *gin.Context, name string, def, min, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return def
	}
	if v > max {
		return max
	}
	return v
}
