package middleware

import (
	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorHandler renders the last error attached with c.Error. Register it
// before every other middleware. Outside production the envelope carries
// the underlying cause.
func ErrorHandler(isProduction bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := apperr.From(c.Errors.Last().Err)

		resp := ErrorResponse{Code: err.Kind.Code(), Message: err.Message}
		if err.Kind == apperr.KindInternal {
			logger.Log.Error("Request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if isProduction {
				resp.Message = "Internal Server Error"
			} else if err.Err != nil {
				resp.Detail = err.Err.Error()
			}
		}
		c.JSON(err.Kind.Status(), resp)
	}
}

// NotFound answers unknown routes.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		abortWithError(c, apperr.NotFound("Route "+c.Request.URL.Path+" not found"))
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
