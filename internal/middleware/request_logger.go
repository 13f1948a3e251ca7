package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"deal_room/pkg/logger"
)

func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + redactQuery(raw)
		}

		kv := []any{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if userID := c.GetString(ContextUserID); userID != "" {
			kv = append(kv, "user_id", userID)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP request", kv...)
		default:
			log.Info("HTTP request", kv...)
		}
	}
}

const redacted = "REDACTED"

// redactQuery прячет токен из query, остальные параметры оставляет как есть.
func redactQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}
	if _, ok := values[QueryTokenParam]; !ok {
		return raw
	}
	values.Set(QueryTokenParam, redacted)
	return values.Encode()
}
