package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

// ErrorHandler превращает последнюю ошибку из c.Errors в JSON ответ.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		statusCode := apperrors.HTTPStatusFromError(err)

		// Детали внутренних ошибок наружу не отдаем
		if statusCode >= http.StatusInternalServerError {
			log.Error("Request failed", "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
			c.JSON(statusCode, gin.H{"error": apperrors.ErrInternalServer.Error()})
			return
		}

		body := gin.H{"error": err.Error()}
		var ve *apperrors.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			body["field"] = ve.Field
		}
		var te *apperrors.IllegalTransitionError
		if errors.As(err, &te) {
			body["from"] = te.From
			body["to"] = te.To
		}
		c.JSON(statusCode, body)
	}
}
