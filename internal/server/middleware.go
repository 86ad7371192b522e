package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/tracing"
)

const (
	headerRequestID = "X-Request-ID"
	ctxKeyRequestID = "req_id"
)

func requestID(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(headerRequestID))
		if rid == "" || len(rid) > 128 {
			rid = uuid.New().String()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Header(headerRequestID, rid)
		ctx := common.WithRequestID(c.Request.Context(), rid)
		c.Request = c.Request.WithContext(common.WithLogger(ctx, logger.With("req_id", rid)))
		c.Next()
	}
}

func reqID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"req_id", reqID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("http.request", attrs...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("http.request", attrs...)
		default:
			s.logger.Info("http.request", attrs...)
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		s.logger.Error("http.panic", "req_id", reqID(c), "path", c.Request.URL.Path, "panic", fmt.Sprint(rec))
		abortError(c, http.StatusInternalServerError, "INTERNAL", "Internal server error")
	})
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", headerRequestID},
		ExposeHeaders:   []string{headerRequestID, "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	})
}

// rateLimit applies a token bucket per client IP. A non-positive RateLimitRPS disables it.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.RateLimitRPS <= 0 {
			c.Next()
			return
		}
		if !s.limiterFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			abortError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	if v, ok := s.limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	burst := s.cfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	v, _ := s.limiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), burst))
	return v.(*rate.Limiter)
}

// limitUploads caps concurrent extractions. Saturation is reported at once instead of queueing.
func (s *Server) limitUploads() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.uploads.TryAcquire(1) {
			abortError(c, http.StatusServiceUnavailable, "BUSY", "Server is at capacity, retry shortly")
			return
		}
		defer s.uploads.Release(1)
		c.Next()
	}
}

// traceRequest opens one span per request and hands it to handlers through the request context.
func (s *Server) traceRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.deps.Sink.Enabled() {
			c.Next()
			return
		}
		start := time.Now()
		name := fmt.Sprintf("api_request_%s_%s", c.Request.Method, c.Request.URL.Path)
		span := s.deps.Sink.StartSpan(c.Request.Context(), name,
			map[string]any{"method": c.Request.Method, "path": c.Request.URL.Path},
			map[string]any{
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"query":      c.Request.URL.RawQuery,
				"client":     c.ClientIP(),
				"user_agent": c.Request.UserAgent(),
				"req_id":     reqID(c),
			},
		)
		c.Request = c.Request.WithContext(tracing.ContextWithSpan(c.Request.Context(), span))

		c.Next()

		span.Update(
			map[string]any{"status_code": c.Writer.Status(), "duration_ms": time.Since(start).Milliseconds()},
			nil,
		)
		span.End()
	}
}
