package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/pkg/middleware/requestid"
)

// Audit writes one structured audit line for every successful mutating
// request, naming the acting user and the target query.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	auditLog := logger.Named("audit")
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok && claims != nil {
				fields = append(fields,
					zap.String("actor", claims.Actor()),
					zap.String("role", string(claims.Role)),
				)
			}
		}
		if queryID := c.Param("queryId"); queryID != "" {
			fields = append(fields, zap.String("query_id", queryID))
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		auditLog.Info("audit", fields...)
	}
}
